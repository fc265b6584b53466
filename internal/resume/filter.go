// Package resume filters already-settled codes out of the sweep sequence.
package resume

// Source is the upstream code iterator, typically a codespace.Space.
type Source interface {
	Next() (string, bool)
}

// Filter lazily yields only codes absent from the settled-set snapshot,
// preserving source order. The snapshot is loaded once at startup and
// never re-read: commit ordering in the store, not in-memory re-checks,
// is what keeps resume correct.
type Filter struct {
	src     Source
	settled map[string]struct{}
}

// NewFilter wraps src with a settled-set membership test. A nil or empty
// set makes the filter an identity pass-through.
func NewFilter(src Source, settled map[string]struct{}) *Filter {
	return &Filter{src: src, settled: settled}
}

// Next returns the next unresolved code, or false once the source is
// exhausted.
func (f *Filter) Next() (string, bool) {
	for {
		code, ok := f.src.Next()
		if !ok {
			return "", false
		}
		if _, done := f.settled[code]; done {
			continue
		}
		return code, true
	}
}

// NextBatch collects up to n unresolved codes. It returns fewer than n
// only near exhaustion and an empty slice once the space is done.
func (f *Filter) NextBatch(n int) []string {
	if n <= 0 {
		return nil
	}
	batch := make([]string, 0, n)
	for len(batch) < n {
		code, ok := f.Next()
		if !ok {
			break
		}
		batch = append(batch, code)
	}
	return batch
}
