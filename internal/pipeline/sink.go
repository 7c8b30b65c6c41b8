package pipeline

import (
	"context"
	"os"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/ltr"
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/kafka"
)

// Sink receives the vectors of one topic at a time, in topic order.
type Sink interface {
	Write(ctx context.Context, runID string, vectors []ltr.FeatureVector) error
	Close() error
}

// FileSink writes a feature file, dense or sparse.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *ltr.Writer
}

// NewFileSink creates path. A non-nil schema selects the sparse format.
func NewFileSink(path string, schema *ltr.Schema) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, apperrors.IOf("creating feature file %s: %v", path, err)
	}
	w := ltr.NewWriter(f)
	if schema != nil {
		w = ltr.NewSparseWriter(f, *schema)
	}
	return &FileSink{file: f, writer: w}, nil
}

func (s *FileSink) Write(_ context.Context, _ string, vectors []ltr.FeatureVector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if err := s.writer.Write(v); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Flush(); err != nil {
		s.file.Close()
		return err
	}
	if err := s.file.Close(); err != nil {
		return apperrors.IOf("closing feature file: %v", err)
	}
	return nil
}

// Publisher is the producer side of pkg/kafka.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
	Close() error
}

// VectorEvent is the Kafka payload of one feature vector.
type VectorEvent struct {
	RunID  string            `json:"run_id"`
	Vector ltr.FeatureVector `json:"vector"`
	Line   string            `json:"line"`
}

// KafkaSink publishes one event per vector keyed by query id.
type KafkaSink struct {
	producer Publisher
}

func NewKafkaSink(p Publisher) *KafkaSink {
	return &KafkaSink{producer: p}
}

func (s *KafkaSink) Write(ctx context.Context, runID string, vectors []ltr.FeatureVector) error {
	events := make([]kafka.Event, len(vectors))
	for i, v := range vectors {
		events[i] = kafka.Event{
			Key:   v.QueryID,
			Value: VectorEvent{RunID: runID, Vector: v, Line: v.String()},
		}
	}
	return s.producer.PublishBatch(ctx, events)
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}

// VectorStore is the write side of the feature store.
type VectorStore interface {
	Save(ctx context.Context, runID string, vectors []ltr.FeatureVector) error
}

// StoreSink persists vectors in the feature store. Closing it does not
// close the underlying database.
type StoreSink struct {
	store VectorStore
}

func NewStoreSink(store VectorStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Write(ctx context.Context, runID string, vectors []ltr.FeatureVector) error {
	return s.store.Save(ctx, runID, vectors)
}

func (s *StoreSink) Close() error { return nil }
