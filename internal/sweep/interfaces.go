package sweep

import "context"

// CodeSource yields unresolved codes in deterministic order. The resume
// filter is the production implementation.
type CodeSource interface {
	// NextBatch returns up to n codes, fewer only when the space is
	// nearly exhausted, empty once it is.
	NextBatch(n int) []string
}

// Executor resolves a batch of codes to outcomes with bounded
// concurrency. Every dispatched code yields exactly one outcome; when
// ctx is canceled mid-batch, dispatching stops and only the outcomes
// already resolved are returned.
type Executor interface {
	Probe(ctx context.Context, codes []string) []ProbeOutcome
}

// Extractor turns a found page body into structured metadata. An error
// marks the record as terminally errored; it never aborts the batch.
type Extractor interface {
	Extract(body []byte) (Metadata, error)
}

// Store persists committed batches and answers the settled-set question
// at startup. Single writer: only the engine calls Commit.
type Store interface {
	// LoadSettled returns the codes of all fully committed records.
	LoadSettled() (map[string]struct{}, error)
	// Commit durably appends every record of the batch as one unit.
	Commit(batch BatchResult) error
	Close() error
}
