package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/instasweep/instasweep/internal/sweep"
)

// classification is the per-attempt verdict; transient triggers a retry
// while the other two are terminal.
type classification int

const (
	classFound classification = iota
	classNotFound
	classTransient
)

// classify maps one fetch attempt onto the outcome taxonomy. A page at
// the probed URL with status 200 exists; a 404/410, or a redirect away
// from the probed URL (the site's "no such code" shape), does not.
// Everything else - network failures, 429, 5xx, unexpected statuses -
// is transient and eligible for retry.
func classify(page Page, err error, probeURL string) classification {
	if err != nil {
		return classTransient
	}
	redirected := page.FinalURL != "" && page.FinalURL != probeURL
	switch {
	case page.StatusCode == 200 && !redirected:
		return classFound
	case page.StatusCode == 200 && redirected:
		return classNotFound
	case page.StatusCode == 404 || page.StatusCode == 410:
		return classNotFound
	default:
		return classTransient
	}
}

// Config controls Executor behavior.
type Config struct {
	BaseURL string
	Workers int
	// RatePerSecond caps outbound request rate across all workers;
	// zero means no cap beyond worker parallelism.
	RatePerSecond float64
}

// Executor resolves batches of codes using a fixed-size worker pool.
// Workers only produce outcomes on the results channel; nothing else is
// shared, so the store needs no locking on the hot path.
type Executor struct {
	fetcher Fetcher
	policy  *RetryPolicy
	limiter *rate.Limiter
	cfg     Config
	logger  *zap.Logger
}

// NewExecutor constructs an Executor.
func NewExecutor(fetcher Fetcher, policy *RetryPolicy, cfg Config, logger *zap.Logger) *Executor {
	if cfg.Workers <= 0 {
		cfg.Workers = 15
	}
	if policy == nil {
		policy = NewRetryPolicy(2, 0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Executor{
		fetcher: fetcher,
		policy:  policy,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}
}

// Probe resolves the batch. It blocks until every dispatched code has
// an outcome. On cancellation it stops handing codes to workers, lets
// in-flight probes drain, and returns only the outcomes collected; the
// undispatched remainder is re-probed by the next run.
func (e *Executor) Probe(ctx context.Context, codes []string) []sweep.ProbeOutcome {
	if len(codes) == 0 {
		return nil
	}
	jobs := make(chan string)
	results := make(chan sweep.ProbeOutcome, len(codes))

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for code := range jobs {
				if outcome, ok := e.probeOne(ctx, code); ok {
					results <- outcome
				}
			}
		}()
	}

dispatch:
	for _, code := range codes {
		select {
		case jobs <- code:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	outcomes := make([]sweep.ProbeOutcome, 0, len(codes))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// probeOne drives the retry loop for a single code. It returns ok=false
// only when the context is canceled before a terminal outcome, in which
// case the code stays unsettled.
func (e *Executor) probeOne(ctx context.Context, code string) (sweep.ProbeOutcome, bool) {
	probeURL := sweep.CodeURL(e.cfg.BaseURL, code)
	start := time.Now()
	var lastErr string

	for attempt := 1; ; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return sweep.ProbeOutcome{}, false
		}

		page, err := e.fetcher.Fetch(ctx, probeURL)
		if ctx.Err() != nil {
			return sweep.ProbeOutcome{}, false
		}

		switch classify(page, err, probeURL) {
		case classFound:
			return sweep.ProbeOutcome{
				Code:       code,
				Class:      sweep.OutcomeFound,
				StatusCode: page.StatusCode,
				Body:       page.Body,
				Attempts:   attempt,
				Dur:        time.Since(start),
			}, true
		case classNotFound:
			return sweep.ProbeOutcome{
				Code:       code,
				Class:      sweep.OutcomeNotFound,
				StatusCode: page.StatusCode,
				Attempts:   attempt,
				Dur:        time.Since(start),
			}, true
		case classTransient:
			if err != nil {
				lastErr = err.Error()
			} else {
				lastErr = fmt.Sprintf("unexpected status %d", page.StatusCode)
			}
			if !e.policy.ShouldRetry(attempt) {
				e.logger.Debug("retry budget exhausted",
					zap.String("code", code),
					zap.Int("attempts", attempt),
					zap.String("last_error", lastErr),
				)
				return sweep.ProbeOutcome{
					Code:       code,
					Class:      sweep.OutcomeError,
					StatusCode: page.StatusCode,
					Err:        lastErr,
					Attempts:   attempt,
					Dur:        time.Since(start),
				}, true
			}
			if !sleep(ctx, e.policy.Backoff(attempt)) {
				return sweep.ProbeOutcome{}, false
			}
		}
	}
}

// sleep waits for d unless the context finishes first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
