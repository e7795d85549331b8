// Package dataset holds the in-memory tabular event data model: loading CSV
// files into frames, session-scoped storage, and the accessors the profiler
// and execution engine operate on.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateColumn is the canonical event timestamp column for ACLED-style data.
const DateColumn = "event_date"

// EventIDColumn is the per-country event identifier used for deduplication.
const EventIDColumn = "event_id_cnty"

// Frame is a column-oriented table of string cells. Numeric and date access
// is by coercion at read time, mirroring how the analysis snippets use it.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// NewFrame builds a frame from a header and rows. Rows shorter than the
// header are padded with empty cells.
func NewFrame(columns []string, rows [][]string) *Frame {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	for i, r := range rows {
		for len(r) < len(columns) {
			r = append(r, "")
		}
		rows[i] = r[:len(columns)]
	}
	return &Frame{columns: columns, index: idx, rows: rows}
}

// Columns returns the column names in file order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// NumRows returns the number of data rows.
func (f *Frame) NumRows() int { return len(f.rows) }

// HasColumn reports whether the frame contains the named column.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Col returns all values of a column. Unknown columns yield nil.
func (f *Frame) Col(name string) []string {
	i, ok := f.index[name]
	if !ok {
		return nil
	}
	out := make([]string, len(f.rows))
	for r, row := range f.rows {
		out[r] = row[i]
	}
	return out
}

// Cell returns the value at (row, column), or "" when out of range.
func (f *Frame) Cell(row int, name string) string {
	i, ok := f.index[name]
	if !ok || row < 0 || row >= len(f.rows) {
		return ""
	}
	return f.rows[row][i]
}

// Float returns a column coerced to float64. Cells that do not parse
// become NaN-free zeros with ok=false in the parallel mask.
func (f *Frame) Float(name string) ([]float64, []bool) {
	col := f.Col(name)
	vals := make([]float64, len(col))
	ok := make([]bool, len(col))
	for i, s := range col {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil {
			vals[i] = v
			ok[i] = true
		}
	}
	return vals, ok
}

// Select returns a new frame restricted to rows where keep[i] is true.
func (f *Frame) Select(keep []bool) *Frame {
	var rows [][]string
	for i, row := range f.rows {
		if i < len(keep) && keep[i] {
			rows = append(rows, row)
		}
	}
	cols := make([]string, len(f.columns))
	copy(cols, f.columns)
	return NewFrame(cols, rows)
}

// Head returns up to n rows as column->value records, in row order.
func (f *Frame) Head(n int) []map[string]string {
	if n > len(f.rows) {
		n = len(f.rows)
	}
	out := make([]map[string]string, 0, n)
	for r := 0; r < n; r++ {
		rec := make(map[string]string, len(f.columns))
		for i, c := range f.columns {
			rec[c] = f.rows[r][i]
		}
		out = append(out, rec)
	}
	return out
}

// dateLayouts are tried in order when parsing event dates.
var dateLayouts = []string{"2006-01-02", "02 January 2006", "2006-01-02 15:04:05", time.RFC3339}

// ParseDate parses a single event-date cell.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DateBounds returns the min and max parseable event_date values.
// Both results are zero when the column is absent or empty.
func (f *Frame) DateBounds() (time.Time, time.Time) {
	var min, max time.Time
	for _, s := range f.Col(DateColumn) {
		t, ok := ParseDate(s)
		if !ok {
			continue
		}
		if min.IsZero() || t.Before(min) {
			min = t
		}
		if max.IsZero() || t.After(max) {
			max = t
		}
	}
	return min, max
}

// YearBounds returns the inclusive event-date year range, ok=false when no
// date parses.
func (f *Frame) YearBounds() (int, int, bool) {
	min, max := f.DateBounds()
	if min.IsZero() {
		return 0, 0, false
	}
	return min.Year(), max.Year(), true
}

// TopValues returns the n most frequent non-empty values of a column,
// most frequent first with ties broken lexicographically.
func (f *Frame) TopValues(name string, n int) []string {
	counts := make(map[string]int)
	for _, v := range f.Col(name) {
		v = strings.TrimSpace(v)
		if v != "" {
			counts[v]++
		}
	}
	vals := make([]string, 0, len(counts))
	for v := range counts {
		vals = append(vals, v)
	}
	sort.Slice(vals, func(i, j int) bool {
		if counts[vals[i]] != counts[vals[j]] {
			return counts[vals[i]] > counts[vals[j]]
		}
		return vals[i] < vals[j]
	})
	if n < len(vals) {
		vals = vals[:n]
	}
	return vals
}

// ReadCSV parses CSV bytes from a reader into a frame. Malformed rows are
// skipped rather than failing the whole load.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("CSV has no columns")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	var rows [][]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return NewFrame(header, rows), nil
}

// LoadPath loads a CSV file from a local path.
func LoadPath(path string) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("data file not found: %w", err)
	}
	defer fh.Close()
	return ReadCSV(fh)
}

// LoadURLs downloads and combines CSV files from multiple URLs. Individual
// failures are reported as warnings; the load fails only when nothing loads.
// Combined frames are deduplicated on event_id_cnty keeping the first row.
func LoadURLs(client *http.Client, urls []string) (*Frame, []string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	var frames []*Frame
	var warnings []string
	for _, url := range urls {
		// Dropbox share links need dl=1 to serve raw content.
		if strings.Contains(url, "dropbox.com") {
			url = strings.ReplaceAll(url, "dl=0", "dl=1")
		}
		frame, err := fetchCSV(client, url)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to load %s: %v", url, err))
			continue
		}
		frames = append(frames, frame)
	}
	if len(frames) == 0 {
		return nil, warnings, fmt.Errorf("failed to load any data files")
	}
	combined := Concat(frames)
	combined = combined.DedupeOn(EventIDColumn)
	return combined, warnings, nil
}

func fetchCSV(client *http.Client, url string) (*Frame, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return LoadPath(url)
	}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return ReadCSV(resp.Body)
}

// Concat appends frames row-wise using the first frame's column set.
// Later frames contribute only columns present in the first.
func Concat(frames []*Frame) *Frame {
	if len(frames) == 0 {
		return NewFrame(nil, nil)
	}
	base := frames[0]
	cols := base.Columns()
	var rows [][]string
	rows = append(rows, base.rows...)
	for _, f := range frames[1:] {
		for r := 0; r < f.NumRows(); r++ {
			row := make([]string, len(cols))
			for i, c := range cols {
				row[i] = f.Cell(r, c)
			}
			rows = append(rows, row)
		}
	}
	return NewFrame(cols, rows)
}

// DedupeOn removes rows with a duplicate value in the named column, keeping
// the first occurrence. Frames without the column are returned unchanged.
func (f *Frame) DedupeOn(name string) *Frame {
	if !f.HasColumn(name) {
		return f
	}
	seen := make(map[string]bool)
	keep := make([]bool, len(f.rows))
	col := f.Col(name)
	for i, v := range col {
		if v == "" || !seen[v] {
			keep[i] = true
			seen[v] = true
		}
	}
	return f.Select(keep)
}
