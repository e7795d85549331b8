package executor

import (
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"fcvanalyst/internal/dataset"
)

// Frame helpers exposed to analysis snippets. They operate on immutable
// input frames and return new ones, so a snippet cannot corrupt the
// session's stored dataset.

// FilterEq keeps rows where the column equals value.
func FilterEq(f *dataset.Frame, col, value string) *dataset.Frame {
	vals := f.Col(col)
	keep := make([]bool, len(vals))
	for i, v := range vals {
		keep[i] = strings.TrimSpace(v) == value
	}
	return f.Select(keep)
}

// FilterIn keeps rows where the column matches any of the values.
func FilterIn(f *dataset.Frame, col string, values ...string) *dataset.Frame {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	vals := f.Col(col)
	keep := make([]bool, len(vals))
	for i, v := range vals {
		keep[i] = set[strings.TrimSpace(v)]
	}
	return f.Select(keep)
}

// FilterContains keeps rows where the column contains the substring,
// case-insensitively. Missing values never match.
func FilterContains(f *dataset.Frame, col, substr string) *dataset.Frame {
	substr = strings.ToLower(substr)
	vals := f.Col(col)
	keep := make([]bool, len(vals))
	for i, v := range vals {
		keep[i] = v != "" && strings.Contains(strings.ToLower(v), substr)
	}
	return f.Select(keep)
}

// FilterYears keeps rows whose event_date year falls in [from, to].
func FilterYears(f *dataset.Frame, from, to int) *dataset.Frame {
	vals := f.Col(dataset.DateColumn)
	keep := make([]bool, len(vals))
	for i, v := range vals {
		t, ok := dataset.ParseDate(v)
		keep[i] = ok && t.Year() >= from && t.Year() <= to
	}
	return f.Select(keep)
}

// GroupCount groups by the given columns and counts rows per group.
// The result carries the group columns plus a "count" column, sorted by
// count descending.
func GroupCount(f *dataset.Frame, cols ...string) *dataset.Frame {
	return groupAgg(f, "", "count", cols)
}

// GroupSum groups by the given columns and sums a numeric column per
// group. Unparseable cells contribute zero. Sorted by sum descending.
func GroupSum(f *dataset.Frame, valueCol string, cols ...string) *dataset.Frame {
	return groupAgg(f, valueCol, "sum_"+valueCol, cols)
}

func groupAgg(f *dataset.Frame, valueCol, outCol string, cols []string) *dataset.Frame {
	colVals := make([][]string, len(cols))
	for i, c := range cols {
		colVals[i] = f.Col(c)
	}
	var nums []float64
	if valueCol != "" {
		nums, _ = f.Float(valueCol)
	}

	totals := make(map[string]float64)
	keys := make(map[string][]string)
	for r := 0; r < f.NumRows(); r++ {
		parts := make([]string, len(cols))
		for i := range cols {
			parts[i] = colVals[i][r]
		}
		k := strings.Join(parts, "\x1f")
		if valueCol == "" {
			totals[k]++
		} else {
			totals[k] += nums[r]
		}
		keys[k] = parts
	}

	ordered := make([]string, 0, len(totals))
	for k := range totals {
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if totals[ordered[i]] != totals[ordered[j]] {
			return totals[ordered[i]] > totals[ordered[j]]
		}
		return ordered[i] < ordered[j]
	})

	rows := make([][]string, 0, len(ordered))
	for _, k := range ordered {
		row := append([]string{}, keys[k]...)
		row = append(row, strconv.FormatFloat(totals[k], 'f', -1, 64))
		rows = append(rows, row)
	}
	return dataset.NewFrame(append(append([]string{}, cols...), outCol), rows)
}

// SortDesc sorts a frame by a numeric column, largest first.
func SortDesc(f *dataset.Frame, col string) *dataset.Frame {
	nums, _ := f.Float(col)
	idx := make([]int, len(nums))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return nums[idx[a]] > nums[idx[b]] })
	rows := make([][]string, 0, len(idx))
	for _, i := range idx {
		row := make([]string, 0, len(f.Columns()))
		for _, c := range f.Columns() {
			row = append(row, f.Cell(i, c))
		}
		rows = append(rows, row)
	}
	return dataset.NewFrame(f.Columns(), rows)
}

// Head keeps the first n rows.
func Head(f *dataset.Frame, n int) *dataset.Frame {
	keep := make([]bool, f.NumRows())
	for i := 0; i < n && i < len(keep); i++ {
		keep[i] = true
	}
	return f.Select(keep)
}

// Render formats a frame as an ASCII table for the execution output.
func Render(f *dataset.Frame) string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader(f.Columns())
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for r := 0; r < f.NumRows(); r++ {
		row := make([]string, 0, len(f.Columns()))
		for _, c := range f.Columns() {
			row = append(row, f.Cell(r, c))
		}
		table.Append(row)
	}
	table.Render()
	return b.String()
}
