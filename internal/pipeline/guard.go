package pipeline

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/ltr"
	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/resilience"
)

// GuardedSink retries transient write failures of a remote sink and stops
// calling it while its circuit is open. Data errors are not retried.
type GuardedSink struct {
	name    string
	sink    Sink
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

func Guard(name string, s Sink, retry resilience.RetryConfig, breaker resilience.BreakerConfig) *GuardedSink {
	if retry.Retryable == nil {
		retry.Retryable = func(err error) bool { return !permanent(err) }
	}
	return &GuardedSink{
		name:    name,
		sink:    s,
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(name, breaker),
	}
}

func (g *GuardedSink) Write(ctx context.Context, runID string, vectors []ltr.FeatureVector) error {
	return g.breaker.Execute(func() error {
		return resilience.Retry(ctx, g.name, g.retry, func(ctx context.Context) error {
			return g.sink.Write(ctx, runID, vectors)
		})
	})
}

func (g *GuardedSink) Close() error {
	return g.sink.Close()
}
