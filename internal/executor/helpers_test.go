package executor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fcvanalyst/internal/dataset"
)

func helperFrame() *dataset.Frame {
	return dataset.NewFrame(
		[]string{"event_date", "event_type", "country", "fatalities"},
		[][]string{
			{"2022-03-01", "Battles", "Sudan", "10"},
			{"2023-04-02", "Battles", "Sudan", "5"},
			{"2023-05-03", "Riots", "Ethiopia", "0"},
			{"2024-06-04", "Battles", "Ethiopia", "7"},
		})
}

func TestFilterEq(t *testing.T) {
	out := FilterEq(helperFrame(), "country", "Sudan")
	assert.Equal(t, 2, out.NumRows())
}

func TestFilterIn(t *testing.T) {
	out := FilterIn(helperFrame(), "event_type", "Riots", "Protests")
	assert.Equal(t, 1, out.NumRows())
}

func TestFilterContains(t *testing.T) {
	out := FilterContains(helperFrame(), "event_type", "batt")
	assert.Equal(t, 3, out.NumRows())
}

func TestFilterYears(t *testing.T) {
	out := FilterYears(helperFrame(), 2023, 2023)
	assert.Equal(t, 2, out.NumRows())
}

func TestGroupCount(t *testing.T) {
	out := GroupCount(helperFrame(), "country")
	require.Equal(t, []string{"country", "count"}, out.Columns())
	require.Equal(t, 2, out.NumRows())
	// Tie on count 2 breaks lexicographically.
	assert.Equal(t, "Ethiopia", out.Cell(0, "country"))
	assert.Equal(t, "2", out.Cell(0, "count"))
}

func TestGroupSum(t *testing.T) {
	out := GroupSum(helperFrame(), "fatalities", "country")
	require.Equal(t, []string{"country", "sum_fatalities"}, out.Columns())
	assert.Equal(t, "Sudan", out.Cell(0, "country"))
	assert.Equal(t, "15", out.Cell(0, "sum_fatalities"))
	assert.Equal(t, "7", out.Cell(1, "sum_fatalities"))
}

func TestSortDescAndHead(t *testing.T) {
	out := Head(SortDesc(helperFrame(), "fatalities"), 2)
	require.Equal(t, 2, out.NumRows())
	assert.Equal(t, "10", out.Cell(0, "fatalities"))
	assert.Equal(t, "7", out.Cell(1, "fatalities"))
}

func TestRender(t *testing.T) {
	out := Render(GroupCount(helperFrame(), "event_type"))
	assert.True(t, strings.Contains(out, "event_type"))
	assert.True(t, strings.Contains(out, "Battles"))
	assert.True(t, strings.Contains(out, "3"))
}
