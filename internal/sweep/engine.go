package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/instasweep/instasweep/internal/progress"
)

// Config controls Engine behavior.
type Config struct {
	BaseURL         string
	BatchSize       int
	InterBatchDelay time.Duration
}

// Engine drives the sweep: pull a batch of unresolved codes, probe,
// extract, commit, pause, repeat until the space is exhausted.
//
// The engine is the single store writer. Batches are a hard barrier:
// batch N is fully committed before the polite delay starts and before
// batch N+1 is pulled.
type Engine struct {
	cfg       Config
	source    CodeSource
	executor  Executor
	extractor Extractor
	store     Store
	emitter   progress.Emitter
	logger    *zap.Logger
}

// NewEngine constructs an Engine. The emitter may be nil.
func NewEngine(
	cfg Config,
	source CodeSource,
	executor Executor,
	extractor Extractor,
	store Store,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		source:    source,
		executor:  executor,
		extractor: extractor,
		store:     store,
		emitter:   emitter,
		logger:    logger,
	}
}

// Run executes the sweep until the code space is exhausted or ctx is
// canceled. On cancellation the in-flight batch stops dispatching new
// probes, the outcomes already collected are committed as a final
// partial batch, and the remainder is left for the next run. A store
// commit failure is fatal: the engine halts without advancing, logging
// the last successfully committed batch index.
//
// The returned RunState carries the final counters even when an error
// is returned.
func (e *Engine) Run(ctx context.Context) (RunState, error) {
	runID := progress.UUIDToBytes(uuid.New())
	start := time.Now()
	state := RunState{}

	e.logger.Info("sweep starting",
		zap.String("base_url", e.cfg.BaseURL),
		zap.Int("batch_size", e.cfg.BatchSize),
		zap.Duration("inter_batch_delay", e.cfg.InterBatchDelay),
	)
	e.emit(progress.Event{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageRunStart})

	for batchIdx := 0; ; batchIdx++ {
		codes := e.source.NextBatch(e.cfg.BatchSize)
		if len(codes) == 0 {
			break
		}

		outcomes := e.executor.Probe(ctx, codes)
		canceled := ctx.Err() != nil

		if len(outcomes) > 0 {
			batch := e.assemble(runID, batchIdx, outcomes, &state)
			if err := e.store.Commit(batch); err != nil {
				e.logger.Error("batch commit failed; halting",
					zap.Int("failed_batch", batchIdx),
					zap.Int("last_committed_batch", batchIdx-1),
					zap.Error(err),
				)
				e.emit(progress.Event{
					RunID: runID, TS: time.Now().UTC(),
					Stage: progress.StageRunError,
					Dur:   time.Since(start),
					Note:  err.Error(),
				})
				return state, fmt.Errorf("commit batch %d: %w", batchIdx, err)
			}
			state.BatchesCommitted++
			e.emit(progress.Event{
				RunID: runID, TS: time.Now().UTC(),
				Stage:   progress.StageBatchCommit,
				Batch:   batchIdx,
				Records: len(batch.Records),
				Found:   state.Found, NotFound: state.NotFound, Errors: state.Errors,
			})
			e.logger.Info("batch committed",
				zap.Int("batch", batchIdx),
				zap.Int("records", len(batch.Records)),
				zap.Int("found", state.Found),
				zap.Int("not_found", state.NotFound),
				zap.Int("errors", state.Errors),
			)
		}

		if canceled {
			e.logger.Info("shutdown requested; partial batch committed",
				zap.Int("batch", batchIdx),
				zap.Int("probed", len(outcomes)),
				zap.Int("skipped", len(codes)-len(outcomes)),
			)
			e.emit(progress.Event{
				RunID: runID, TS: time.Now().UTC(),
				Stage: progress.StageRunDone,
				Dur:   time.Since(start),
				Note:  "canceled",
			})
			return state, ctx.Err()
		}

		// PAUSED-BETWEEN-BATCHES: the polite delay.
		if !pause(ctx, e.cfg.InterBatchDelay) {
			e.emit(progress.Event{
				RunID: runID, TS: time.Now().UTC(),
				Stage: progress.StageRunDone,
				Dur:   time.Since(start),
				Note:  "canceled",
			})
			return state, ctx.Err()
		}
	}

	e.logger.Info("sweep complete",
		zap.Int("probed", state.Probed),
		zap.Int("found", state.Found),
		zap.Int("not_found", state.NotFound),
		zap.Int("errors", state.Errors),
		zap.Int("batches_committed", state.BatchesCommitted),
		zap.Duration("elapsed", time.Since(start)),
	)
	e.emit(progress.Event{
		RunID: runID, TS: time.Now().UTC(),
		Stage: progress.StageRunDone,
		Dur:   time.Since(start),
	})
	return state, nil
}

// assemble turns a batch of outcomes into committed-ready records,
// running the extractor on found payloads and updating the counters.
func (e *Engine) assemble(runID [16]byte, batchIdx int, outcomes []ProbeOutcome, state *RunState) BatchResult {
	records := make([]Record, 0, len(outcomes))
	for _, o := range outcomes {
		rec := Record{
			URL:  CodeURL(e.cfg.BaseURL, o.Code),
			Code: o.Code,
		}
		outcome := progress.Outcome(o.Class)
		switch o.Class {
		case OutcomeFound:
			md, err := e.extractor.Extract(o.Body)
			if err != nil {
				rec.Status = StatusError
				rec.Error = err.Error()
				state.Errors++
				outcome = progress.OutcomeError
			} else {
				rec.Title = md.Title
				rec.Duration = md.DurationDisplay
				rec.DurationSeconds = md.DurationSeconds
				rec.Listens = md.Listens
				rec.Downloads = md.Downloads
				rec.Status = StatusOK
				state.Found++
			}
		case OutcomeNotFound:
			rec.Status = StatusNotFound
			state.NotFound++
		case OutcomeError:
			rec.Status = StatusError
			rec.Error = o.Err
			state.Errors++
		}
		state.Probed++
		records = append(records, rec)
		e.emit(progress.Event{
			RunID: runID, TS: time.Now().UTC(),
			Stage:   progress.StageProbeDone,
			Code:    o.Code,
			Outcome: outcome,
			Batch:   batchIdx,
			Dur:     o.Dur,
		})
	}
	return BatchResult{Index: batchIdx, Records: records}
}

func (e *Engine) emit(evt progress.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

// pause sleeps for delay, returning false if ctx finished first.
func pause(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
