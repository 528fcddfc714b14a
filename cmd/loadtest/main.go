// Command loadtest drives concurrent queries against a running searcher and
// prints throughput, latency percentiles and the outcome mix.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sync"
	"time"
)

var defaultQueries = []string{
	"chemistry teacher",
	"murder mystery",
	"stand-up comedy",
	"high school",
	"true story",
	"documentary",
	"love",
	"the",
	"zombie apocalypse",
	"serial killer",
	"anime",
	"world war",
	"cooking competition",
	"teacher lawyer",
}

type sample struct {
	latency time.Duration
	status  int
	outcome string
	hits    int
	err     error
}

type tally struct {
	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int
	outcomes  map[string]int
	zeroHits  int
	failures  int
}

func (t *tally) add(s sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.err != nil {
		t.failures++
		return
	}
	t.latencies = append(t.latencies, s.latency)
	t.statuses[s.status]++
	if s.outcome != "" {
		t.outcomes[s.outcome]++
	}
	if s.outcome == "matched" && s.hits == 0 {
		t.zeroHits++
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limit := flag.Int("limit", 10, "limit parameter sent with each query")
	flag.Parse()

	fmt.Printf("target=%s concurrency=%d duration=%s queries=%d\n",
		*baseURL, *concurrency, *duration, len(defaultQueries))

	t := run(*baseURL, *concurrency, *duration, *limit)
	if len(t.latencies) == 0 {
		fmt.Fprintln(os.Stderr, "no requests completed; is the searcher running?")
		os.Exit(1)
	}
	report(t, *duration)
}

func run(baseURL string, concurrency int, duration time.Duration, limit int) *tally {
	t := &tally{statuses: make(map[int]int), outcomes: make(map[string]int)}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; ctx.Err() == nil; i++ {
				q := defaultQueries[i%len(defaultQueries)]
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", baseURL, url.QueryEscape(q), limit)
				s := query(ctx, client, target)
				if ctx.Err() != nil {
					return
				}
				t.add(s)
			}
		}()
	}
	wg.Wait()
	return t
}

func query(ctx context.Context, client *http.Client, target string) sample {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return sample{err: err}
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return sample{err: err}
	}
	defer resp.Body.Close()

	var body struct {
		Outcome   string `json:"outcome"`
		TotalHits int    `json:"total_hits"`
	}
	// Error bodies have no outcome; the status code is still counted.
	json.NewDecoder(resp.Body).Decode(&body)
	return sample{
		latency: time.Since(start),
		status:  resp.StatusCode,
		outcome: body.Outcome,
		hits:    body.TotalHits,
	}
}

func report(t *tally, duration time.Duration) {
	slices.Sort(t.latencies)
	n := len(t.latencies)
	var sum time.Duration
	for _, l := range t.latencies {
		sum += l
	}

	fmt.Printf("\nrequests: %d (%.1f/s), transport failures: %d\n", n, float64(n)/duration.Seconds(), t.failures)
	fmt.Printf("latency: min=%s avg=%s p50=%s p95=%s p99=%s max=%s\n",
		t.latencies[0], sum/time.Duration(n),
		percentile(t.latencies, 50), percentile(t.latencies, 95), percentile(t.latencies, 99),
		t.latencies[n-1])

	fmt.Println("status codes:")
	for _, code := range sortedKeys(t.statuses) {
		fmt.Printf("  %d: %d\n", code, t.statuses[code])
	}
	fmt.Println("outcomes:")
	for _, o := range sortedKeys(t.outcomes) {
		fmt.Printf("  %s: %d\n", o, t.outcomes[o])
	}
	fmt.Printf("  matched with zero hits: %d\n", t.zeroHits)
}

func percentile(sorted []time.Duration, p int) time.Duration {
	idx := (p*len(sorted)+99)/100 - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}

func sortedKeys[K int | string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
