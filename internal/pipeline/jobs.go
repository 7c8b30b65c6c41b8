package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/ltr"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/topics"
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/kafka"
)

// Job asks for the vectors of one query. Without DocIDs the candidates are
// picked by the pipeline's CandidateSource.
type Job struct {
	QueryID string   `json:"qid"`
	Query   string   `json:"query"`
	DocIDs  []string `json:"docids,omitempty"`
}

// HandleJob returns a Kafka MessageHandler that extracts one Job per
// message and writes the vectors to the sinks. Malformed jobs and data
// errors are logged and committed; only sink or transport failures leave
// the message for redelivery.
func (p *Pipeline) HandleJob() kafka.MessageHandler {
	log := slog.Default().With("component", "extraction-jobs")
	return func(ctx context.Context, key []byte, value []byte) error {
		job, err := kafka.DecodeJSON[Job](value)
		if err != nil || job.QueryID == "" {
			log.Error("dropping malformed extraction job", "key", string(key), "error", err)
			p.countJob("invalid")
			return nil
		}

		vectors, err := p.extractJob(ctx, job)
		if err != nil {
			if permanent(err) {
				log.Error("extraction job failed", "qid", job.QueryID, "error", err)
				p.countJob("failed")
				return nil
			}
			p.countJob("retry")
			return err
		}
		if err := p.emit(ctx, vectors); err != nil {
			p.countJob("retry")
			return err
		}
		log.Info("extraction job done", "qid", job.QueryID, "vectors", len(vectors))
		p.countJob("done")
		return nil
	}
}

func (p *Pipeline) extractJob(ctx context.Context, job Job) ([]ltr.FeatureVector, error) {
	if len(job.DocIDs) > 0 {
		return p.Extract(ctx, job.QueryID, job.Query, job.DocIDs)
	}
	return p.ExtractTopic(ctx, topics.Topic{ID: job.QueryID, Title: job.Query})
}

func (p *Pipeline) countJob(status string) {
	if p.opts.Metrics != nil {
		p.opts.Metrics.ExtractionJobsTotal.WithLabelValues(status).Inc()
	}
}

// permanent reports errors that redelivery cannot fix.
func permanent(err error) bool {
	return errors.Is(err, apperrors.ErrParse) ||
		errors.Is(err, apperrors.ErrLookup) ||
		errors.Is(err, apperrors.ErrConfiguration) ||
		errors.Is(err, apperrors.ErrInvalidInput) ||
		errors.Is(err, apperrors.ErrIndexConsistency)
}
