package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	fail bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", errors.New("connection refused")
	}
	v, ok := s.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("connection refused")
	}
	s.data[key] = value.(string)
	return nil
}

func (s *memoryStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func TestGetOrCompute(t *testing.T) {
	c := New(newMemoryStore(), time.Minute, nil)
	key := Key{Model: "bm25(k1=0.9,b=0.4)", Query: "cat^1", DocID: "DOC_1"}
	calls := 0
	compute := func(context.Context) (float64, error) {
		calls++
		return 0.1234567890123, nil
	}

	score, hit, err := c.GetOrCompute(context.Background(), key, compute)
	if err != nil || hit {
		t.Fatalf("first call: score=%v hit=%v err=%v", score, hit, err)
	}
	score, hit, err = c.GetOrCompute(context.Background(), key, compute)
	if err != nil || !hit {
		t.Fatalf("second call: hit=%v err=%v", hit, err)
	}
	if score != 0.1234567890123 {
		t.Errorf("cached score = %v lost precision", score)
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Errorf("stats = %d/%d, want 1/1", hits, misses)
	}
}

func TestKeysSeparateFeedbackAndModel(t *testing.T) {
	base := Key{Model: "tf", Query: "cat^1", DocID: "DOC_1"}
	variants := []Key{
		{Model: "tf", Feedback: true, Query: "cat^1", DocID: "DOC_1"},
		{Model: "tfidf", Query: "cat^1", DocID: "DOC_1"},
		{Model: "tf", Query: "cat^2", DocID: "DOC_1"},
		{Model: "tf", Query: "cat^1", DocID: "DOC_2"},
	}
	for _, v := range variants {
		if buildKey(v) == buildKey(base) {
			t.Errorf("key collision between %+v and %+v", v, base)
		}
	}
}

func TestComputeErrorsAreNotCached(t *testing.T) {
	c := New(newMemoryStore(), time.Minute, nil)
	key := Key{Model: "tf", Query: "cat^1", DocID: "DOC_1"}
	boom := errors.New("boom")
	if _, _, err := c.GetOrCompute(context.Background(), key, func(context.Context) (float64, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	if _, ok := c.Get(context.Background(), key); ok {
		t.Error("failed computation was cached")
	}
}

func TestStoreFailureFallsBackToCompute(t *testing.T) {
	store := newMemoryStore()
	store.fail = true
	c := New(store, time.Minute, nil)
	score, hit, err := c.GetOrCompute(context.Background(), Key{Model: "tf"}, func(context.Context) (float64, error) { return 3, nil })
	if err != nil || hit || score != 3 {
		t.Fatalf("score=%v hit=%v err=%v", score, hit, err)
	}
}

func TestSingleflightCollapsesConcurrentMisses(t *testing.T) {
	c := New(newMemoryStore(), time.Minute, nil)
	key := Key{Model: "tf", Query: "cat^1", DocID: "DOC_1"}
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrCompute(context.Background(), key, func(context.Context) (float64, error) {
				calls.Add(1)
				<-release
				return 3, nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	if got := calls.Load(); got < 1 || got > 8 {
		t.Fatalf("compute called %d times", got)
	}
	if score, ok := c.Get(context.Background(), key); !ok || score != 3 {
		t.Errorf("Get after compute = %v, %v", score, ok)
	}
}

func TestInvalidate(t *testing.T) {
	c := New(newMemoryStore(), time.Minute, nil)
	c.Set(context.Background(), Key{Model: "tf", DocID: "a"}, 1)
	c.Set(context.Background(), Key{Model: "tf", DocID: "b"}, 2)
	n, err := c.Invalidate(context.Background())
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d keys, want 2", n)
	}
}

func TestCancelledCallerDoesNotFailWaiters(t *testing.T) {
	c := New(newMemoryStore(), time.Minute, nil)
	key := Key{Model: "tf", Query: "cat^1", DocID: "DOC_1"}
	started := make(chan struct{})
	release := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(ctx, key, func(ctx context.Context) (float64, error) {
			close(started)
			<-release
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			return 3, nil
		})
		firstErr <- err
	}()
	<-started

	type result struct {
		score float64
		err   error
	}
	second := make(chan result, 1)
	go func() {
		score, _, err := c.GetOrCompute(context.Background(), key, func(context.Context) (float64, error) {
			return 3, nil
		})
		second <- result{score, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: expected context.Canceled, got %v", err)
	}
	close(release)
	got := <-second
	if got.err != nil || got.score != 3 {
		t.Fatalf("waiting caller: score=%v err=%v", got.score, got.err)
	}
	if score, ok := c.Get(context.Background(), key); !ok || score != 3 {
		t.Errorf("shared result not cached: %v %v", score, ok)
	}
}
