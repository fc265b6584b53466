package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/instasweep/instasweep/internal/sweep"
)

func openTemp(t *testing.T) (*CSVStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.csv")
	s, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck // test cleanup
	return s, path
}

func record(code string, status sweep.RecordStatus) sweep.Record {
	return sweep.Record{
		URL:    "https://t/" + code,
		Code:   code,
		Status: status,
	}
}

func TestOpenWritesHeaderOnce(t *testing.T) {
	t.Parallel()

	s, path := openTemp(t)
	require.NoError(t, s.Commit(sweep.BatchResult{Index: 0, Records: []sweep.Record{record("abc", sweep.StatusOK)}}))
	require.NoError(t, s.Close())

	// Reopening an existing store must not duplicate the header.
	s2, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s2.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, strings.Join(Columns, ","), lines[0])
}

func TestCommitAndLoadSettled(t *testing.T) {
	t.Parallel()

	s, _ := openTemp(t)
	batch := sweep.BatchResult{Index: 0, Records: []sweep.Record{
		{
			URL: "https://t/abc", Code: "abc", Title: "Test", Duration: "00:12",
			DurationSeconds: 12, Listens: 5, Downloads: 2, Status: sweep.StatusOK,
		},
		record("zzz", sweep.StatusNotFound),
		{URL: "https://t/xyz", Code: "xyz", Status: sweep.StatusError, Error: "i/o timeout"},
	}}
	require.NoError(t, s.Commit(batch))

	settled, err := s.LoadSettled()
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"abc": {}, "zzz": {}, "xyz": {}}, settled)
}

func TestCommitQuotesDelimiters(t *testing.T) {
	t.Parallel()

	s, path := openTemp(t)
	rec := sweep.Record{
		URL: "https://t/q01", Code: "q01",
		Title:  `Song, with "quotes"`,
		Status: sweep.StatusOK,
	}
	require.NoError(t, s.Commit(sweep.BatchResult{Records: []sweep.Record{rec}}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck // read-only handle

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, `Song, with "quotes"`, rows[1][2])
}

func TestLoadSettledEmptyStore(t *testing.T) {
	t.Parallel()

	s, _ := openTemp(t)
	settled, err := s.LoadSettled()
	require.NoError(t, err)
	require.Empty(t, settled)
}

func TestLoadSettledMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.csv")
	s, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, os.Remove(path))

	settled, err := s.LoadSettled()
	require.NoError(t, err)
	require.Empty(t, settled)
}

func TestLoadSettledStopsAtTornTail(t *testing.T) {
	t.Parallel()

	s, path := openTemp(t)
	require.NoError(t, s.Commit(sweep.BatchResult{Index: 0, Records: []sweep.Record{
		record("aa1", sweep.StatusOK),
		record("aa2", sweep.StatusNotFound),
	}}))
	require.NoError(t, s.Close())

	// Simulate a crash mid-write: a trailing half row with an open quote.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`https://t/aa3,aa3,"torn`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s2, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer s2.Close() //nolint:errcheck // test cleanup

	settled, err := s2.LoadSettled()
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"aa1": {}, "aa2": {}}, settled)
}

func TestAppendAcrossReopens(t *testing.T) {
	t.Parallel()

	s, path := openTemp(t)
	require.NoError(t, s.Commit(sweep.BatchResult{Index: 0, Records: []sweep.Record{record("b01", sweep.StatusOK)}}))
	require.NoError(t, s.Close())

	s2, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s2.Commit(sweep.BatchResult{Index: 1, Records: []sweep.Record{record("b02", sweep.StatusOK)}}))

	settled, err := s2.LoadSettled()
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"b01": {}, "b02": {}}, settled)
	require.NoError(t, s2.Close())
}

func TestCommitEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	s, path := openTemp(t)
	require.NoError(t, s.Commit(sweep.BatchResult{Index: 3}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(data), "\n"), "only the header should be present")
}
