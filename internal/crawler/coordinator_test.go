package crawler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"holocron/internal/clock/system"
	"holocron/internal/crawler"
	"holocron/internal/storage/memory"
)

// fakeAPI serves a small SWAPI-shaped resource graph over httptest.
type fakeAPI struct {
	payloads map[string]string
	statuses map[string]int
}

func (a *fakeAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code, ok := a.statuses[r.URL.Path]; ok {
			w.WriteHeader(code)
			return
		}
		body, ok := a.payloads[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

type crawlHarness struct {
	rootURL  string
	scorer   *crawler.Scorer
	frontier *memory.Frontier
	records  *memory.RecordStore
	coord    *crawler.Coordinator
}

func newCrawlHarness(t *testing.T, srv *httptest.Server, seeds []string, workers int) *crawlHarness {
	t.Helper()

	rootURL := srv.URL + "/api/"
	scorer := crawler.NewScorer(rootURL)
	frontier := memory.NewFrontier(scorer.Score)
	records := memory.NewRecordStore()
	clock := system.New()

	fetcher := crawler.NewHTTPFetcher(crawler.FetcherConfig{
		Timeout:     time.Second,
		Delay:       time.Millisecond,
		MaxRetries:  2,
		BackoffBase: 2,
		BackoffUnit: time.Millisecond,
	}, zap.NewNop())

	coord := crawler.NewCoordinator(
		frontier,
		fetcher,
		crawler.NewExtractor(rootURL),
		records,
		crawler.NewStats(clock),
		clock,
		crawler.CoordinatorConfig{
			Workers:         workers,
			SeedURLs:        seeds,
			ShutdownTimeout: 2 * time.Second,
			Worker: crawler.WorkerConfig{
				IdleTimeout:  200 * time.Millisecond,
				PollInterval: 20 * time.Millisecond,
			},
		},
		zap.NewNop(),
	)

	return &crawlHarness{
		rootURL:  rootURL,
		scorer:   scorer,
		frontier: frontier,
		records:  records,
		coord:    coord,
	}
}

func TestCrawlEndToEnd(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{payloads: map[string]string{}}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	// A references B and C; B and C reference nothing further.
	api.payloads["/api/films/1/"] = fmt.Sprintf(
		`{"title": "A New Hope", "characters": [%q, %q]}`,
		srv.URL+"/api/people/1/", srv.URL+"/api/people/2/",
	)
	api.payloads["/api/people/1/"] = `{"name": "Luke Skywalker"}`
	api.payloads["/api/people/2/"] = `{"name": "C-3PO"}`

	h := newCrawlHarness(t, srv, []string{srv.URL + "/api/films/1/"}, 2)

	report, err := h.coord.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, crawler.StateStopped, h.coord.State())

	require.EqualValues(t, 3, report.URLsScraped)
	require.EqualValues(t, 0, report.URLsFailed)
	require.Equal(t, crawler.Counts{Pending: 0, Completed: 3, Failed: 0}, report.Counts)

	n, err := h.records.Len(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestCrawlTerminalSeedFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		payloads: map[string]string{},
		statuses: map[string]int{"/api/people/99/": http.StatusNotFound},
	}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	h := newCrawlHarness(t, srv, []string{srv.URL + "/api/people/99/"}, 2)

	report, err := h.coord.Run(context.Background())
	require.NoError(t, err, "a failed URL is not a crawl failure")

	require.EqualValues(t, 0, report.URLsScraped)
	require.EqualValues(t, 1, report.URLsFailed)
	require.Equal(t, crawler.Counts{Pending: 0, Completed: 0, Failed: 1}, report.Counts)

	n, err := h.records.Len(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}

func TestCrawlSharedDiscoveryEnqueuesOnce(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{payloads: map[string]string{}}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	shared := srv.URL + "/api/planets/1/"
	api.payloads["/api/films/1/"] = fmt.Sprintf(`{"planets": [%q]}`, shared)
	api.payloads["/api/films/2/"] = fmt.Sprintf(`{"planets": [%q]}`, shared)
	api.payloads["/api/planets/1/"] = `{"name": "Tatooine"}`

	h := newCrawlHarness(t, srv, []string{
		srv.URL + "/api/films/1/",
		srv.URL + "/api/films/2/",
	}, 2)

	report, err := h.coord.Run(context.Background())
	require.NoError(t, err)

	require.EqualValues(t, 3, report.URLsScraped)
	require.Equal(t, crawler.Counts{Pending: 0, Completed: 3, Failed: 0}, report.Counts)
	require.EqualValues(t, 3, h.scorer.Sequence(),
		"the shared URL must consume exactly one sequence value despite two discoverers")
}

func TestCrawlNoProgressIsFatal(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{payloads: map[string]string{}}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	h := newCrawlHarness(t, srv, nil, 2)

	_, err := h.coord.Run(context.Background())
	require.ErrorIs(t, err, crawler.ErrNoProgress)
	require.Equal(t, crawler.StateStopped, h.coord.State())
}

func TestCrawlStopsOnExternalCancellation(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	defer close(block)

	h := newCrawlHarness(t, srv, []string{srv.URL + "/api/people/1/"}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := h.coord.Run(ctx)
	require.NoError(t, err, "operator cancellation is not a crawl failure")
	require.Equal(t, crawler.StateStopped, h.coord.State())
	require.Less(t, time.Since(start), 5*time.Second)
}
