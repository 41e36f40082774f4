// Package csvio reads and writes the pipeline's CSV files: header-indexed
// reads, append-mode writes flushed per row, and resume-set loading.
package csvio

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/atmb-cli/internal/model"
)

// Canonical column names shared by every stage.
const (
	ColStreet    = "Street Address"
	ColCity      = "City"
	ColState     = "State Abbreviation"
	ColZip       = "Zip Code"
	ColDetailURL = "Detail Url"
	ColSuite     = "Suite/Apartment"
	ColRDI       = "RDI"
	ColCMRA      = "CMRA"
)

// BaseHeader is the column order the lister writes.
var BaseHeader = []string{ColStreet, ColCity, ColState, ColZip, ColDetailURL}

// Table is a CSV file loaded into memory with a header-index map.
type Table struct {
	Header []string
	Rows   [][]string
	colIdx map[string]int
}

// ReadTable loads a CSV file. The header row is required; a UTF-8 BOM on
// the first column is tolerated.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csvio: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "csvio: read %s", path)
	}
	if len(records) == 0 {
		return nil, eris.Errorf("csvio: %s has no header row", path)
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[strings.TrimSpace(col)] = i
	}

	return &Table{
		Header: header,
		Rows:   records[1:],
		colIdx: colIdx,
	}, nil
}

// Col safely retrieves a named column value from a row.
func (t *Table) Col(row []string, name string) string {
	idx, ok := t.colIdx[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.colIdx[name]
	return ok
}

// Record maps a row to its address record. Suite is empty when the table
// has no suite column.
func (t *Table) Record(row []string) model.Enriched {
	return model.Enriched{
		Address: model.Address{
			Street:    t.Col(row, ColStreet),
			City:      t.Col(row, ColCity),
			State:     t.Col(row, ColState),
			Zip:       t.Col(row, ColZip),
			DetailURL: t.Col(row, ColDetailURL),
		},
		Suite: t.Col(row, ColSuite),
	}
}

// WithSuiteColumn returns the header with Suite/Apartment inserted at
// index 1, matching the detailed-file layout. No-op if already present.
func WithSuiteColumn(header []string) []string {
	for _, col := range header {
		if strings.TrimSpace(col) == ColSuite {
			return header
		}
	}
	out := make([]string, 0, len(header)+1)
	if len(header) == 0 {
		return []string{ColSuite}
	}
	out = append(out, header[0], ColSuite)
	out = append(out, header[1:]...)
	return out
}

// WithVerifyColumns returns the header with RDI and CMRA positioned right
// after the zip column (appended when there is no zip column). Existing
// RDI/CMRA columns are removed first so re-verification keeps one copy.
func WithVerifyColumns(header []string) []string {
	out := make([]string, 0, len(header)+2)
	for _, col := range header {
		name := strings.TrimSpace(col)
		if name == ColRDI || name == ColCMRA {
			continue
		}
		out = append(out, col)
	}
	for i, col := range out {
		if strings.TrimSpace(col) == ColZip {
			rest := append([]string{ColRDI, ColCMRA}, out[i+1:]...)
			return append(out[:i+1:i+1], rest...)
		}
	}
	return append(out, ColRDI, ColCMRA)
}

// BuildRow projects an input row onto an output header. Values in extra
// win over input columns of the same name; columns absent from both are
// left empty.
func BuildRow(outHeader []string, t *Table, in []string, extra map[string]string) []string {
	row := make([]string, len(outHeader))
	for i, col := range outHeader {
		name := strings.TrimSpace(col)
		if v, ok := extra[name]; ok {
			row[i] = v
			continue
		}
		row[i] = t.Col(in, name)
	}
	return row
}

// LoadKeys reads an existing output file and returns the resume keys of
// every row in it. A missing file yields an empty set, not an error.
func LoadKeys(path string) (map[string]bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	t, err := ReadTable(path)
	if err != nil {
		return nil, eris.Wrap(err, "csvio: load resume keys")
	}
	keys := make(map[string]bool, len(t.Rows))
	for _, row := range t.Rows {
		keys[t.Record(row).Key()] = true
	}
	return keys, nil
}

// AppendWriter writes CSV rows in append mode, flushing after every row so
// an interrupted run leaves a valid, resumable file.
type AppendWriter struct {
	f *os.File
	w *csv.Writer
}

// OpenAppend opens path for appending. When the file is new or empty the
// header row is written first; resumed reports whether existing rows were
// found.
func OpenAppend(path string, header []string) (w *AppendWriter, resumed bool, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, false, eris.Wrapf(err, "csvio: open %s for append", path)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, false, eris.Wrapf(err, "csvio: stat %s", path)
	}

	aw := &AppendWriter{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := aw.Write(header); err != nil {
			_ = f.Close()
			return nil, false, err
		}
		return aw, false, nil
	}
	return aw, true, nil
}

// Write appends one row and flushes it to disk.
func (w *AppendWriter) Write(row []string) error {
	if err := w.w.Write(row); err != nil {
		return eris.Wrap(err, "csvio: write row")
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return eris.Wrap(err, "csvio: flush row")
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *AppendWriter) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		_ = w.f.Close()
		return eris.Wrap(err, "csvio: flush on close")
	}
	return eris.Wrap(w.f.Close(), "csvio: close")
}
