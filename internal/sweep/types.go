// Package sweep defines the core types and the engine driving the
// enumeration of the code space.
package sweep

import "time"

// OutcomeClass is the terminal classification of a single probe.
type OutcomeClass string

// Terminal probe classifications. Transient network failures are retried
// inside the executor and never surface here; once the retry budget is
// exhausted they arrive as OutcomeError.
const (
	OutcomeFound    OutcomeClass = "found"
	OutcomeNotFound OutcomeClass = "not_found"
	OutcomeError    OutcomeClass = "error"
)

// ProbeOutcome is the result of resolving one code. The body is retained
// only for found outcomes and only until the batch is assembled.
type ProbeOutcome struct {
	Code       string
	Class      OutcomeClass
	StatusCode int
	Body       []byte
	Err        string
	Attempts   int
	Dur        time.Duration
}

// RecordStatus is the status column persisted with each record.
type RecordStatus string

// Record status values written to the store.
const (
	StatusOK       RecordStatus = "ok"
	StatusNotFound RecordStatus = "not_found"
	StatusError    RecordStatus = "error"
)

// Record is the durable unit of output, one per settled code. Once
// committed it is never rewritten; resume treats its code as settled.
type Record struct {
	URL             string
	Code            string
	Title           string
	Duration        string
	DurationSeconds int
	Listens         int
	Downloads       int
	Status          RecordStatus
	Error           string
}

// Metadata is the structured result of extracting a found page.
type Metadata struct {
	Title           string
	DurationDisplay string
	DurationSeconds int
	Listens         int
	Downloads       int
}

// BatchResult is the unit of persistence-commit and progress reporting.
type BatchResult struct {
	Index   int
	Records []Record
}

// RunState carries the progress counters for one engine run. It is owned
// by the engine goroutine and returned from Run; workers never touch it.
type RunState struct {
	Probed           int
	Found            int
	NotFound         int
	Errors           int
	BatchesCommitted int
}

// CodeURL builds the deterministic probe URL for a code.
func CodeURL(baseURL, code string) string {
	if n := len(baseURL); n > 0 && baseURL[n-1] == '/' {
		return baseURL + code
	}
	return baseURL + "/" + code
}
