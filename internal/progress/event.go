// Package progress defines the event stream emitted by the sweep engine.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageRunDone     Stage = "RUN_DONE"
	StageRunError    Stage = "RUN_ERROR"
	StageProbeDone   Stage = "PROBE_DONE"
	StageBatchCommit Stage = "BATCH_COMMIT"
)

// Outcome mirrors the terminal probe classification for metric labels.
type Outcome string

// Supported probe outcomes.
const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
)

// Event captures a single milestone of sweep progress.
type Event struct {
	// RunID uniquely identifies one engine run in 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Code is the probed code for PROBE_DONE events.
	Code string
	// Outcome classifies PROBE_DONE events.
	Outcome Outcome
	// Batch is the batch index for BATCH_COMMIT events.
	Batch int
	// Records is the number of records committed with the batch.
	Records int
	// Found/NotFound/Errors are the run counters at commit time.
	Found    int
	NotFound int
	Errors   int
	// Dur captures probe latency or total run time.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageProbeDone:
		if e.Code == "" {
			return errors.New("probe done requires code")
		}
		if e.Outcome == "" {
			return errors.New("probe done requires outcome")
		}
	case StageBatchCommit:
		if e.Records < 0 {
			return errors.New("records must be >= 0")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for display.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
