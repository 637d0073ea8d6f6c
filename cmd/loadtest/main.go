// Command loadtest drives the search service with concurrent paged queries
// and reports throughput, latency percentiles and status codes.
//
// Usage:
//
//	loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s]
//	         [-pages 1] [-queries file] [-api-key key]
//
// Each worker walks up to -pages pages of a query by following the returned
// cursor. The queries file holds one query per line. -api-key is sent as a
// bearer token when the target is the gateway.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

var defaultQueries = []string{
	"検索",
	"全文検索",
	"検索エンジン",
	"索引 -削除",
	"東京 大阪",
	"データベース",
	"title:仕様",
	"bigram",
	`"search engine"`,
	"カタカナ",
	"ひらがな 漢字",
	"分散 システム",
}

type options struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	pages       int
	limit       int
	apiKey      string
	queries     []string
}

// Stats accumulates per-request outcomes across workers.
type Stats struct {
	requests  atomic.Int64
	success   atomic.Int64
	failures  atomic.Int64
	timedOut  atomic.Int64
	results   atomic.Int64
	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

func (s *Stats) Record(d time.Duration, code int, err error) {
	s.requests.Add(1)
	if err != nil {
		s.failures.Add(1)
		return
	}
	if code >= 200 && code < 300 {
		s.success.Add(1)
	} else {
		s.failures.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[code]++
	s.mu.Unlock()
}

type page struct {
	Results   []json.RawMessage `json:"results"`
	TimedOut  bool              `json:"timed_out"`
	Exhausted bool              `json:"exhausted"`
	Cursor    string            `json:"cursor"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	var opts options
	var queryFile string
	fs.StringVar(&opts.baseURL, "url", "http://localhost:8080", "base URL of the search service")
	fs.IntVar(&opts.concurrency, "concurrency", 10, "number of concurrent workers")
	fs.DurationVar(&opts.duration, "duration", 30*time.Second, "test duration")
	fs.IntVar(&opts.pages, "pages", 1, "pages to walk per query")
	fs.IntVar(&opts.limit, "limit", 10, "results per page")
	fs.StringVar(&queryFile, "queries", "", "file with one query per line")
	fs.StringVar(&opts.apiKey, "api-key", os.Getenv("BG_API_KEY"), "gateway API key")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if opts.concurrency <= 0 || opts.pages <= 0 || opts.limit <= 0 {
		return fmt.Errorf("%w: concurrency, pages and limit must be positive", apperrors.ErrInvalidInput)
	}
	opts.queries = defaultQueries
	if queryFile != "" {
		qs, err := readQueries(queryFile)
		if err != nil {
			return err
		}
		opts.queries = qs
	}

	fmt.Fprintln(stdout, "=== Search Load Test ===")
	fmt.Fprintf(stdout, "Target:      %s\n", opts.baseURL)
	fmt.Fprintf(stdout, "Concurrency: %d\n", opts.concurrency)
	fmt.Fprintf(stdout, "Duration:    %s\n", opts.duration)
	fmt.Fprintf(stdout, "Pages:       %d\n", opts.pages)
	fmt.Fprintf(stdout, "Queries:     %d unique\n\n", len(opts.queries))

	start := time.Now()
	stats := NewStats()
	if err := runLoad(ctx, opts, stats); err != nil {
		return err
	}
	printReport(stdout, stats, time.Since(start))
	if stats.requests.Load() == 0 {
		return errors.New("no requests completed, is the service running?")
	}
	return nil
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	defer f.Close()
	var qs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" && !strings.HasPrefix(q, "#") {
			qs = append(qs, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("%w: %s holds no queries", apperrors.ErrInvalidInput, path)
	}
	return qs, nil
}

func runLoad(ctx context.Context, opts options, stats *Stats) error {
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        opts.concurrency * 2,
			MaxIdleConnsPerHost: opts.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				walk(ctx, client, opts, opts.queries[i%len(opts.queries)], stats)
			}
			return nil
		})
	}
	return g.Wait()
}

// walk requests successive pages of q until the result set is exhausted,
// the page budget is spent or a request fails.
func walk(ctx context.Context, client *http.Client, opts options, q string, stats *Stats) {
	cursor := ""
	for p := 0; p < opts.pages; p++ {
		v := url.Values{"q": {q}, "limit": {fmt.Sprint(opts.limit)}}
		if cursor != "" {
			v.Set("cursor", cursor)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.baseURL+"/search?"+v.Encode(), nil)
		if err != nil {
			stats.Record(0, 0, err)
			return
		}
		if opts.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+opts.apiKey)
		}
		start := time.Now()
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() == nil {
				stats.Record(time.Since(start), 0, err)
			}
			return
		}
		var pg page
		decodeErr := json.NewDecoder(resp.Body).Decode(&pg)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		stats.Record(time.Since(start), resp.StatusCode, nil)
		if resp.StatusCode != http.StatusOK || decodeErr != nil {
			return
		}
		stats.results.Add(int64(len(pg.Results)))
		if pg.TimedOut {
			stats.timedOut.Add(1)
		}
		if pg.Exhausted || pg.Cursor == "" {
			return
		}
		cursor = pg.Cursor
	}
}

func printReport(w io.Writer, stats *Stats, elapsed time.Duration) {
	total := stats.requests.Load()
	failures := stats.failures.Load()
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", stats.success.Load())
	fmt.Fprintf(w, "Errors:          %d\n", failures)
	fmt.Fprintf(w, "Timed-out pages: %d\n", stats.timedOut.Load())
	fmt.Fprintf(w, "Results served:  %d\n", stats.results.Load())
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(failures)/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/elapsed.Seconds())
	}

	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	codes := make([]int, 0, len(stats.codes))
	for code := range stats.codes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	counts := make([]int64, len(codes))
	for i, code := range codes {
		counts[i] = stats.codes[code]
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		fmt.Fprintln(w, "\n=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(w, "P%-3.0f   %s\n", p, percentile(latencies, p))
		}
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Fprintln(w, "\n=== Status Codes ===")
	for i, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, counts[i])
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
