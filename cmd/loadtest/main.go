package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/internal/topics"
	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

// scoreRequest is one (query, document) pair drawn from the judged pool.
type scoreRequest struct {
	query string
	docID string
}

type modelStats struct {
	mu        sync.Mutex
	latencies []time.Duration
	errors    int64
	cached    int64
}

type Stats struct {
	total   atomic.Int64
	failed  atomic.Int64
	byModel map[string]*modelStats
	codesMu sync.Mutex
	codes   map[int]int64
}

func NewStats(models []string) *Stats {
	s := &Stats{byModel: make(map[string]*modelStats), codes: make(map[int]int64)}
	for _, m := range models {
		s.byModel[m] = &modelStats{latencies: make([]time.Duration, 0, 10000)}
	}
	return s
}

func (s *Stats) record(model string, d time.Duration, status int, cached bool, err error) {
	s.total.Add(1)
	ms := s.byModel[model]
	if err != nil || status != http.StatusOK {
		s.failed.Add(1)
		ms.mu.Lock()
		ms.errors++
		ms.mu.Unlock()
	} else {
		ms.mu.Lock()
		ms.latencies = append(ms.latencies, d)
		if cached {
			ms.cached++
		}
		ms.mu.Unlock()
	}
	if err == nil {
		s.codesMu.Lock()
		s.codes[status]++
		s.codesMu.Unlock()
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the scoring service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	topicsPath := flag.String("topics", "", "topic file to draw queries from")
	format := flag.String("format", "trec", "topic file format")
	qrelsPath := flag.String("qrels", "", "qrels file whose judged documents are scored")
	models := flag.String("models", "tf,tfidf,bm25,pl2,ql", "comma-separated models to rotate through")
	feedback := flag.Float64("rm3", 0, "fraction of requests sent with rm3=true")
	flag.Parse()

	pool, err := loadPool(*topicsPath, *format, *qrelsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading request pool: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
	modelList := strings.Split(*models, ",")

	fmt.Println("=== Scoring Service Load Test ===")
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Printf("Pairs:       %d judged (query, document) pairs\n", len(pool))
	fmt.Printf("Models:      %s (rm3 fraction %.2f)\n", strings.Join(modelList, ", "), *feedback)
	fmt.Println()

	stats := run(*baseURL, *concurrency, *duration, pool, modelList, *feedback)
	if !report(stats, *duration, modelList) {
		os.Exit(1)
	}
}

func loadPool(topicsPath, format, qrelsPath string) ([]scoreRequest, error) {
	if topicsPath == "" || qrelsPath == "" {
		return nil, apperrors.Configurationf("-topics and -qrels are required")
	}
	ts, err := topics.Load(format, topicsPath)
	if err != nil {
		return nil, err
	}
	qrels, err := topics.LoadQrels(qrelsPath)
	if err != nil {
		return nil, err
	}
	var pool []scoreRequest
	for _, t := range ts {
		for _, doc := range qrels.Judged(t.ID) {
			pool = append(pool, scoreRequest{query: t.Title, docID: doc})
		}
	}
	if len(pool) == 0 {
		return nil, apperrors.Lookupf("no judged documents for the loaded topics")
	}
	return pool, nil
}

func run(baseURL string, concurrency int, d time.Duration, pool []scoreRequest, models []string, feedback float64) *Stats {
	stats := NewStats(models)
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	var g errgroup.Group
	for w := 0; w < concurrency; w++ {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(w) + 1))
			for i := w; ctx.Err() == nil; i++ {
				req := pool[rng.Intn(len(pool))]
				model := models[i%len(models)]
				q := url.Values{
					"model": {model},
					"q":     {req.query},
					"docid": {req.docID},
				}
				if rng.Float64() < feedback {
					q.Set("rm3", "true")
				}
				start := time.Now()
				status, cached, err := score(ctx, client, baseURL+"/api/v1/score?"+q.Encode())
				if ctx.Err() != nil {
					return nil
				}
				stats.record(model, time.Since(start), status, cached, err)
			}
			return nil
		})
	}
	g.Wait()
	return stats
}

func score(ctx context.Context, client *http.Client, target string) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	var body struct {
		Cached bool `json:"cached"`
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return resp.StatusCode, false, err
		}
	}
	return resp.StatusCode, body.Cached, nil
}

func report(stats *Stats, d time.Duration, models []string) bool {
	total := stats.total.Load()
	failed := stats.failed.Load()
	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Failed:          %d\n", failed)
	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the scoring service running?")
		return false
	}
	fmt.Printf("Error Rate:      %.2f%%\n", float64(failed)/float64(total)*100)
	fmt.Printf("Requests/sec:    %.2f\n", float64(total)/d.Seconds())

	fmt.Println()
	fmt.Printf("%-8s %8s %8s %8s %10s %10s %10s %10s\n", "model", "ok", "errors", "cached", "p50", "p95", "p99", "stddev")
	for _, m := range models {
		ms := stats.byModel[m]
		ms.mu.Lock()
		lat := append([]time.Duration(nil), ms.latencies...)
		errs, cached := ms.errors, ms.cached
		ms.mu.Unlock()
		sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
		fmt.Printf("%-8s %8d %8d %8d %10s %10s %10s %10s\n", m, len(lat), errs, cached,
			percentile(lat, 50), percentile(lat, 95), percentile(lat, 99), stddev(lat))
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.codesMu.Lock()
	codes := make([]int, 0, len(stats.codes))
	for code := range stats.codes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.codes[code])
	}
	stats.codesMu.Unlock()
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

func stddev(lat []time.Duration) time.Duration {
	if len(lat) == 0 {
		return 0
	}
	var sum float64
	for _, l := range lat {
		sum += float64(l)
	}
	mean := sum / float64(len(lat))
	var sq float64
	for _, l := range lat {
		diff := float64(l) - mean
		sq += diff * diff
	}
	return time.Duration(math.Sqrt(sq / float64(len(lat))))
}
