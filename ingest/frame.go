package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Frame is an in-memory tabular view of one delimited input file. Columns
// are addressed by header name; cell values stay as strings until a
// component coerces them.
type Frame struct {
	cols  []string
	index map[string]int
	rows  [][]string
}

// NewFrame creates an empty frame with the given column headers.
func NewFrame(cols []string) *Frame {
	f := &Frame{
		cols:  append([]string(nil), cols...),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		f.index[c] = i
	}
	return f
}

// ReadCSV parses a delimited file into a Frame. The first record is the
// header row. Header names are trimmed; cell values are kept verbatim.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	f := NewFrame(header)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(f.rows)+2, err)
		}
		f.rows = append(f.rows, record)
	}
	return f, nil
}

// Columns returns the header names in order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.cols...)
}

// NumRows returns the number of data rows.
func (f *Frame) NumRows() int {
	return len(f.rows)
}

// NumColumns returns the number of columns.
func (f *Frame) NumColumns() int {
	return len(f.cols)
}

// HasColumn reports whether a column with the given header exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Value returns the cell at (row, column). The second return is false when
// the column does not exist or the row is ragged at that position.
func (f *Frame) Value(row int, col string) (string, bool) {
	i, ok := f.index[col]
	if !ok || row < 0 || row >= len(f.rows) {
		return "", false
	}
	if i >= len(f.rows[row]) {
		return "", false
	}
	return f.rows[row][i], true
}

// Float coerces the cell at (row, column) to a float64.
func (f *Frame) Float(row int, col string) (float64, error) {
	v, ok := f.Value(row, col)
	if !ok {
		return 0, fmt.Errorf("column %q not present at row %d", col, row)
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("column %q row %d: %w", col, row, err)
	}
	return parsed, nil
}

// Int coerces the cell at (row, column) to an int. Values like "3.0" are
// accepted; cycler exports frequently write integer columns as floats.
func (f *Frame) Int(row int, col string) (int, error) {
	v, ok := f.Value(row, col)
	if !ok {
		return 0, fmt.Errorf("column %q not present at row %d", col, row)
	}
	s := strings.TrimSpace(v)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %q row %d: %w", col, row, err)
	}
	if parsed != float64(int(parsed)) {
		return 0, fmt.Errorf("column %q row %d: %v is not an integer", col, row, parsed)
	}
	return int(parsed), nil
}

// AppendRow adds a data row. The row must have exactly one value per column.
func (f *Frame) AppendRow(values []string) error {
	if len(values) != len(f.cols) {
		return fmt.Errorf("row has %d values, frame has %d columns", len(values), len(f.cols))
	}
	f.rows = append(f.rows, append([]string(nil), values...))
	return nil
}

// Rename changes a column header in place. It refuses to clobber an
// existing column and reports whether the rename happened.
func (f *Frame) Rename(old, new string) bool {
	i, ok := f.index[old]
	if !ok {
		return false
	}
	if _, exists := f.index[new]; exists {
		return false
	}
	f.cols[i] = new
	delete(f.index, old)
	f.index[new] = i
	return true
}

// Select returns a new frame containing only the rows whose index is in
// keep, preserving the original row order.
func (f *Frame) Select(keep map[int]bool) *Frame {
	out := NewFrame(f.cols)
	for i, row := range f.rows {
		if keep[i] {
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// MissingColumns returns the names from required that the frame lacks.
func (f *Frame) MissingColumns(required []string) []string {
	var missing []string
	for _, name := range required {
		if !f.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	return missing
}
