// Package table reads and writes the CSV files exchanged between pipelines.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Table is a CSV file held in memory: a header and the rows below it.
// Every row has exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// Read loads the CSV file at path. The first record is the header.
func Read(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	t, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// Parse reads a CSV document from r. Short rows are padded with empty
// cells and long rows are truncated to the header width.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := New(header)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		t.Append(record)
	}
	return t, nil
}

// New returns an empty table with the given header.
func New(header []string) *Table {
	t := &Table{Header: append([]string(nil), header...)}
	t.index = make(map[string]int, len(header))
	for i, name := range t.Header {
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}
	return t
}

// Append adds a row, fitting it to the header width.
func (t *Table) Append(row []string) {
	t.Rows = append(t.Rows, fit(row, len(t.Header)))
}

// ColumnIndex returns the position of name in the header, or -1.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Column returns every value of the named column, in row order.
func (t *Table) Column(name string) ([]string, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found (have %s)", name, strings.Join(t.Header, ", "))
	}
	values := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		values[r] = row[i]
	}
	return values, nil
}

// Write saves the table to path, replacing any existing file.
func (t *Table) Write(path string) error {
	w, err := Create(path, t.Header)
	if err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

// Writer streams rows to a CSV file, flushing after every row so partial
// results survive an interrupted run.
type Writer struct {
	path  string
	file  *os.File
	csv   *csv.Writer
	width int
}

// Create truncates path, creating parent directories, and writes header.
func Create(path string, header []string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	w := &Writer{path: path, file: file, csv: csv.NewWriter(file), width: len(header)}
	if err := w.write(header); err != nil {
		_ = file.Close()
		return nil, err
	}
	return w, nil
}

// Write appends one row, padded or truncated to the header width.
func (w *Writer) Write(row []string) error {
	return w.write(fit(row, w.width))
}

func (w *Writer) write(row []string) error {
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	return nil
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

func fit(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}
