// Package profile derives the schema snapshot handed to the code generator:
// structure, date bounds, bounded value catalogs, and per-column value
// profiles of a loaded frame. Snapshots are recomputed per request and
// never persisted.
package profile

import (
	"sort"
	"strconv"
	"strings"

	"fcvanalyst/internal/dataset"
)

const (
	// catalogLimit bounds the per-column value catalog.
	catalogLimit = 30
	// fullProfileLimit is the largest distinct count that still gets a
	// full value-frequency table.
	fullProfileLimit = 25
	// topValueLimit is the sample size reported for high-cardinality columns.
	topValueLimit = 15
	sampleRows    = 3
)

// catalogColumns are the categorical columns that always receive a value
// catalog when present.
var catalogColumns = []string{
	"event_type", "sub_event_type", "inter1", "inter2", "interaction", "country", "admin1",
}

// CoreProfileColumns are always added to the profiled-column set when present.
var CoreProfileColumns = []string{
	"event_date", "event_id_cnty", "fatalities", "actor1", "actor2", "admin2",
}

// AuxTable describes an enrichment table attached alongside the primary frame.
type AuxTable struct {
	Description  string   `json:"description"`
	Columns      []string `json:"columns"`
	Shape        [2]int   `json:"shape"`
	JoinGuidance string   `json:"join_guidance"`
}

// ColumnProfile is the per-column value summary. Either ValueCounts is
// populated (distinct count within limit) or DistinctCount/TopValues
// summarize a high-cardinality column.
type ColumnProfile struct {
	Dtype         string         `json:"dtype"`
	ValueCounts   map[string]int `json:"value_counts,omitempty"`
	DistinctCount int            `json:"n_unique,omitempty"`
	TopValues     map[string]int `json:"top_values,omitempty"`
}

// Snapshot is the structural description of a frame used for prompt
// assembly and code validation.
type Snapshot struct {
	Shape         [2]int                   `json:"shape"`
	Columns       []string                 `json:"columns"`
	Dtypes        map[string]string        `json:"dtypes"`
	SampleData    []map[string]string      `json:"sample_data"`
	DateRange     DateRange                `json:"date_range"`
	ValueInfo     map[string][]string      `json:"value_info"`
	ColumnProfile map[string]ColumnProfile `json:"column_profile,omitempty"`
	AuxTables     map[string]AuxTable      `json:"aux_dataframes,omitempty"`
	AuxWarnings   []string                 `json:"aux_warnings,omitempty"`
}

// DateRange holds the min/max event dates as strings, empty when unknown.
type DateRange struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// AllowedColumns returns the set of column names generated code may
// reference: primary frame columns plus any attached aux table columns.
func (s *Snapshot) AllowedColumns() map[string]bool {
	allowed := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		allowed[c] = true
	}
	for _, aux := range s.AuxTables {
		for _, c := range aux.Columns {
			allowed[c] = true
		}
	}
	return allowed
}

// Build computes a snapshot of the frame: shape, inferred dtypes, sample
// rows, event-date bounds, and value catalogs for the fixed categorical set.
func Build(f *dataset.Frame) *Snapshot {
	cols := f.Columns()
	snap := &Snapshot{
		Shape:     [2]int{f.NumRows(), len(cols)},
		Columns:   cols,
		Dtypes:    make(map[string]string, len(cols)),
		ValueInfo: make(map[string][]string),
	}
	for _, c := range cols {
		snap.Dtypes[c] = inferDtype(f, c)
	}
	snap.SampleData = f.Head(sampleRows)

	min, max := f.DateBounds()
	if !min.IsZero() {
		snap.DateRange = DateRange{Min: min.Format("2006-01-02"), Max: max.Format("2006-01-02")}
	}

	for _, c := range catalogColumns {
		if !f.HasColumn(c) {
			continue
		}
		snap.ValueInfo[c] = valueCatalog(f, c)
	}
	return snap
}

// Profile computes column profiles for the requested columns and attaches
// them to the snapshot. Missing columns are skipped; a column whose values
// cannot be tabulated falls back to an empty profile.
func (s *Snapshot) Profile(f *dataset.Frame, columns []string) {
	s.ColumnProfile = make(map[string]ColumnProfile)
	for _, c := range columns {
		if !f.HasColumn(c) {
			continue
		}
		s.ColumnProfile[c] = profileColumn(f, c, s.Dtypes[c])
	}
}

// ProfiledColumns expands the requested set to the union of the snapshot's
// catalog columns, the core always-profiled columns, and extra (typically
// the planned groupby columns). Order is deterministic.
func (s *Snapshot) ProfiledColumns(f *dataset.Frame, extra []string) []string {
	set := make(map[string]bool)
	var out []string
	add := func(c string) {
		if c == "" || set[c] || !f.HasColumn(c) {
			return
		}
		set[c] = true
		out = append(out, c)
	}
	catalogued := make([]string, 0, len(s.ValueInfo))
	for c := range s.ValueInfo {
		catalogued = append(catalogued, c)
	}
	sort.Strings(catalogued)
	for _, c := range catalogued {
		add(c)
	}
	for _, c := range extra {
		add(c)
	}
	for _, c := range CoreProfileColumns {
		add(c)
	}
	return out
}

func profileColumn(f *dataset.Frame, name, dtype string) ColumnProfile {
	counts := make(map[string]int)
	for _, v := range f.Col(name) {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		counts[v]++
	}
	if len(counts) == 0 {
		return ColumnProfile{Dtype: dtype}
	}
	if len(counts) <= fullProfileLimit {
		return ColumnProfile{Dtype: dtype, ValueCounts: counts}
	}
	return ColumnProfile{
		Dtype:         dtype,
		DistinctCount: len(counts),
		TopValues:     topCounts(counts, topValueLimit),
	}
}

func topCounts(counts map[string]int, n int) map[string]int {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if n < len(keys) {
		keys = keys[:n]
	}
	out := make(map[string]int, len(keys))
	for _, k := range keys {
		out[k] = counts[k]
	}
	return out
}

func valueCatalog(f *dataset.Frame, name string) []string {
	seen := make(map[string]bool)
	for _, v := range f.Col(name) {
		v = strings.TrimSpace(v)
		if v != "" {
			seen[v] = true
		}
	}
	vals := make([]string, 0, len(seen))
	for v := range seen {
		vals = append(vals, v)
	}
	sort.Strings(vals)
	if len(vals) > catalogLimit {
		vals = vals[:catalogLimit]
	}
	return vals
}

// inferDtype classifies a column as date, int64, float64, or string from a
// bounded sample of non-empty cells.
func inferDtype(f *dataset.Frame, name string) string {
	if name == dataset.DateColumn {
		return "date"
	}
	col := f.Col(name)
	checked, ints, floats := 0, 0, 0
	for _, v := range col {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		checked++
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			ints++
		} else if _, err := strconv.ParseFloat(v, 64); err == nil {
			floats++
		}
		if checked >= 200 {
			break
		}
	}
	switch {
	case checked == 0:
		return "string"
	case ints == checked:
		return "int64"
	case ints+floats == checked:
		return "float64"
	default:
		return "string"
	}
}
