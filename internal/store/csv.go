// Package store persists sweep records to an append-only CSV table.
package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/instasweep/instasweep/internal/sweep"
)

// Columns is the stable schema of the record store, in column order.
var Columns = []string{
	"url", "code", "title", "duration", "duration_seconds",
	"listens", "downloads", "status", "error",
}

const codeColumn = 1

// CSVStore appends committed batches to a single CSV file.
//
// Commit encodes the whole batch in memory and hands it to the kernel
// in one Write call followed by Sync, so a crash can tear at most the
// trailing batch. LoadSettled stops at the first unparsable row, which
// keeps a torn tail from ever looking committed. Single writer: only
// the engine calls Commit.
type CSVStore struct {
	path   string
	f      *os.File
	logger *zap.Logger
}

// Open creates or opens the store file, writing the header if the file
// is new or empty.
func Open(path string, logger *zap.Logger) (*CSVStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck // open failed anyway
		return nil, fmt.Errorf("stat store %s: %w", path, err)
	}
	s := &CSVStore{path: path, f: f, logger: logger}
	if info.Size() == 0 {
		if err := s.writeHeader(); err != nil {
			f.Close() //nolint:errcheck // open failed anyway
			return nil, err
		}
	}
	return s, nil
}

func (s *CSVStore) writeHeader() error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	w.Flush()
	if _, err := s.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync header: %w", err)
	}
	return nil
}

// Commit durably appends every record of the batch as one unit.
func (s *CSVStore) Commit(batch sweep.BatchResult) error {
	if len(batch.Records) == 0 {
		return nil
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, rec := range batch.Records {
		row := []string{
			rec.URL,
			rec.Code,
			rec.Title,
			rec.Duration,
			strconv.Itoa(rec.DurationSeconds),
			strconv.Itoa(rec.Listens),
			strconv.Itoa(rec.Downloads),
			string(rec.Status),
			rec.Error,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("encode record %s: %w", rec.Code, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush batch %d: %w", batch.Index, err)
	}
	if _, err := s.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write batch %d: %w", batch.Index, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync batch %d: %w", batch.Index, err)
	}
	return nil
}

// LoadSettled scans the store once and returns the set of committed
// codes. Rows after the first corrupt one are treated as uncommitted;
// the next run re-probes them.
func (s *CSVStore) LoadSettled() (map[string]struct{}, error) {
	settled := make(map[string]struct{})
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return settled, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", s.path, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Columns)
	r.ReuseRecord = true

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return settled, nil
		}
		return nil, fmt.Errorf("read store header: %w", err)
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Torn tail from an interrupted write; everything from
			// here on is uncommitted.
			s.logger.Warn("stopping settled scan at corrupt row",
				zap.String("path", s.path),
				zap.Error(err),
			)
			break
		}
		settled[row[codeColumn]] = struct{}{}
	}
	return settled, nil
}

// Close releases the underlying file.
func (s *CSVStore) Close() error {
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("close store %s: %w", s.path, err)
	}
	return nil
}
