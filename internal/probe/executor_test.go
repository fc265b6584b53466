package probe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/instasweep/instasweep/internal/sweep"
)

// fakeFetcher scripts responses per URL and records concurrency.
type fakeFetcher struct {
	mu        sync.Mutex
	pages     map[string]Page
	errs      map[string]error
	calls     map[string]int
	inFlight  atomic.Int64
	maxSeen   atomic.Int64
	fetchWait time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: make(map[string]Page),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (Page, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if cur <= seen || f.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}
	if f.fetchWait > 0 {
		time.Sleep(f.fetchWait)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[rawURL]++
	if err, ok := f.errs[rawURL]; ok {
		return Page{}, err
	}
	if page, ok := f.pages[rawURL]; ok {
		return page, nil
	}
	return Page{URL: rawURL, FinalURL: rawURL, StatusCode: 404}, nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func outcomeByCode(outcomes []sweep.ProbeOutcome, code string) (sweep.ProbeOutcome, bool) {
	for _, o := range outcomes {
		if o.Code == code {
			return o, true
		}
	}
	return sweep.ProbeOutcome{}, false
}

func TestProbeClassifiesEveryCode(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.pages["http://t/abc"] = Page{URL: "http://t/abc", FinalURL: "http://t/abc", StatusCode: 200, Body: []byte("<html>hit</html>")}
	fetcher.pages["http://t/zzz"] = Page{URL: "http://t/zzz", FinalURL: "http://t/zzz", StatusCode: 404}
	fetcher.pages["http://t/rdr"] = Page{URL: "http://t/rdr", FinalURL: "http://t/", StatusCode: 200}
	fetcher.errs["http://t/xyz"] = errors.New("connection reset")

	e := NewExecutor(fetcher,
		NewRetryPolicy(1, time.Millisecond, 2*time.Millisecond),
		Config{BaseURL: "http://t", Workers: 4},
		zap.NewNop(),
	)

	outcomes := e.Probe(context.Background(), []string{"abc", "zzz", "rdr", "xyz"})
	require.Len(t, outcomes, 4, "every code must yield exactly one outcome")

	found, ok := outcomeByCode(outcomes, "abc")
	require.True(t, ok)
	require.Equal(t, sweep.OutcomeFound, found.Class)
	require.Equal(t, []byte("<html>hit</html>"), found.Body)

	notFound, ok := outcomeByCode(outcomes, "zzz")
	require.True(t, ok)
	require.Equal(t, sweep.OutcomeNotFound, notFound.Class)
	require.Empty(t, notFound.Err)

	redirected, ok := outcomeByCode(outcomes, "rdr")
	require.True(t, ok)
	require.Equal(t, sweep.OutcomeNotFound, redirected.Class, "redirect away from probe URL means no such code")

	failed, ok := outcomeByCode(outcomes, "xyz")
	require.True(t, ok)
	require.Equal(t, sweep.OutcomeError, failed.Class)
	require.NotEmpty(t, failed.Err)
	require.Equal(t, 2, failed.Attempts)
}

func TestProbeRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	url := "http://t/aa1"
	fetcher := newFakeFetcher()
	flaky := &flakyFetcher{inner: fetcher, failFirst: 2, url: url}
	fetcher.pages[url] = Page{URL: url, FinalURL: url, StatusCode: 200, Body: []byte("ok")}

	e := NewExecutor(flaky,
		NewRetryPolicy(3, time.Millisecond, 2*time.Millisecond),
		Config{BaseURL: "http://t", Workers: 1},
		zap.NewNop(),
	)

	outcomes := e.Probe(context.Background(), []string{"aa1"})
	require.Len(t, outcomes, 1)
	require.Equal(t, sweep.OutcomeFound, outcomes[0].Class)
	require.Equal(t, 3, outcomes[0].Attempts)
}

// flakyFetcher fails the first failFirst fetches of url, then delegates.
type flakyFetcher struct {
	inner     *fakeFetcher
	url       string
	failFirst int
	count     atomic.Int64
}

func (f *flakyFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	if rawURL == f.url && f.count.Add(1) <= int64(f.failFirst) {
		return Page{}, errors.New("timeout")
	}
	return f.inner.Fetch(ctx, rawURL)
}

func TestProbeRetryBudgetExhausted(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.errs["http://t/xyz"] = errors.New("i/o timeout")

	e := NewExecutor(fetcher,
		NewRetryPolicy(2, time.Millisecond, 2*time.Millisecond),
		Config{BaseURL: "http://t", Workers: 1},
		zap.NewNop(),
	)

	outcomes := e.Probe(context.Background(), []string{"xyz"})
	require.Len(t, outcomes, 1)
	require.Equal(t, sweep.OutcomeError, outcomes[0].Class)
	require.Equal(t, "i/o timeout", outcomes[0].Err)
	require.Equal(t, 3, fetcher.callCount("http://t/xyz"))
}

func TestProbeBoundedConcurrency(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.fetchWait = 5 * time.Millisecond
	codes := make([]string, 40)
	for i := range codes {
		codes[i] = "c" + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}

	e := NewExecutor(fetcher, NewRetryPolicy(0, time.Millisecond, time.Millisecond),
		Config{BaseURL: "http://t", Workers: 3},
		zap.NewNop(),
	)

	outcomes := e.Probe(context.Background(), codes)
	require.Len(t, outcomes, len(codes))
	require.LessOrEqual(t, fetcher.maxSeen.Load(), int64(3), "worker pool must bound parallelism")
}

func TestProbeCancellationReturnsPartialBatch(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.fetchWait = 10 * time.Millisecond
	codes := make([]string, 50)
	for i := range codes {
		codes[i] = "d" + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	e := NewExecutor(fetcher, NewRetryPolicy(0, time.Millisecond, time.Millisecond),
		Config{BaseURL: "http://t", Workers: 2},
		zap.NewNop(),
	)

	outcomes := e.Probe(ctx, codes)
	require.Less(t, len(outcomes), len(codes), "cancellation must stop dispatch")
	seen := make(map[string]struct{}, len(outcomes))
	for _, o := range outcomes {
		_, dup := seen[o.Code]
		require.False(t, dup, "no code may settle twice")
		seen[o.Code] = struct{}{}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	probeURL := "http://t/abc"
	cases := []struct {
		name string
		page Page
		err  error
		want classification
	}{
		{"found", Page{FinalURL: probeURL, StatusCode: 200}, nil, classFound},
		{"not found 404", Page{FinalURL: probeURL, StatusCode: 404}, nil, classNotFound},
		{"gone 410", Page{FinalURL: probeURL, StatusCode: 410}, nil, classNotFound},
		{"redirected home", Page{FinalURL: "http://t/", StatusCode: 200}, nil, classNotFound},
		{"server error", Page{FinalURL: probeURL, StatusCode: 503}, nil, classTransient},
		{"rate limited", Page{FinalURL: probeURL, StatusCode: 429}, nil, classTransient},
		{"network error", Page{}, errors.New("reset"), classTransient},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, classify(tc.page, tc.err, probeURL))
		})
	}
}
