package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"
)

// Writer writes rows of one RowFormat as CSV. The header is written first.
type Writer struct {
	format RowFormat
	csv    *csv.Writer
	closer io.Closer
	rows   int
}

// NewWriter writes the header of format to w.
func NewWriter(w io.Writer, format RowFormat) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(format.Header()); err != nil {
		return nil, fmt.Errorf("report: writing header: %w", err)
	}
	return &Writer{format: format, csv: cw}, nil
}

// Create creates the report file at path.
func Create(path string, format RowFormat) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	w, err := NewWriter(file, format)
	if err != nil {
		return nil, multierr.Append(err, file.Close())
	}
	w.closer = file
	return w, nil
}

// Write formats and writes one row.
func (w *Writer) Write(row any) error {
	record, err := w.format.Record(row)
	if err != nil {
		return err
	}
	if err := w.csv.Write(record); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	w.rows++
	return nil
}

// Rows returns the number of rows written, excluding the header.
func (w *Writer) Rows() int { return w.rows }

// Close flushes buffered rows and closes the file opened by Create.
func (w *Writer) Close() error {
	w.csv.Flush()
	err := w.csv.Error()
	if w.closer != nil {
		err = multierr.Append(err, w.closer.Close())
	}
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// WriteFile writes all rows to path in one go.
func WriteFile[T any](path string, format RowFormat, rows []T) (err error) {
	w, err := Create(path, format)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, w.Close()) }()
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
