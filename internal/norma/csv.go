package norma

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Writer writes records to a CSV stream incrementally. Each Append flushes
// the underlying writer so partially written batch files survive a crash up
// to the last completed batch.
type Writer struct {
	cw *csv.Writer
}

// NewWriter wraps w. Call WriteHeader before the first Append on a new file.
func NewWriter(w io.Writer) *Writer {
	return &Writer{cw: csv.NewWriter(w)}
}

// WriteHeader writes the fixed 17-column header.
func (w *Writer) WriteHeader() error {
	if err := w.cw.Write(Header()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	w.cw.Flush()
	return w.cw.Error()
}

// Append writes the given records as data rows and flushes.
func (w *Writer) Append(records []Record) error {
	for _, r := range records {
		if err := w.cw.Write(r.Row()); err != nil {
			return fmt.Errorf("writing record %d: %w", r.IDNorma, err)
		}
	}
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		return fmt.Errorf("flushing records: %w", err)
	}
	return nil
}

// ReadAll reads records from a CSV stream, skipping the header row.
func ReadAll(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header())

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := FromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadFile reads all records from a CSV file, skipping the header row.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, nil
}

// AppendFile appends records as data rows (no header) to an existing CSV
// file, creating it header-first when absent.
func AppendFile(path string, records []Record) error {
	_, statErr := os.Stat(path)
	create := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	w := NewWriter(f)
	if create {
		if err := w.WriteHeader(); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Append(records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
