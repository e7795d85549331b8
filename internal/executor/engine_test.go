package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fcvanalyst/internal/dataset"
)

func TestExecuteSafely(t *testing.T) {
	engine := NewYaegiEngine(nil)
	res := engine.ExecuteSafely(context.Background(),
		`grouped := fcv.GroupCount(df, "country")
fmt.Println(fcv.Render(grouped))
fcv.Summary("total_rows", df.NumRows())`,
		helperFrame(), nil)

	require.True(t, res.Success, res.Error)
	assert.Contains(t, res.Output, "Sudan")
	assert.Contains(t, res.Output, "count")
	assert.Equal(t, 4, res.SummaryData["total_rows"])
}

func TestExecuteSafelyEmptyAuxFramesBound(t *testing.T) {
	engine := NewYaegiEngine(nil)
	res := engine.ExecuteSafely(context.Background(),
		`fmt.Println(dfPop.NumRows(), dfWdi.NumRows())`,
		helperFrame(), nil)

	require.True(t, res.Success, res.Error)
	assert.Contains(t, res.Output, "0 0")
}

func TestExecuteSafelyAuxFrame(t *testing.T) {
	engine := NewYaegiEngine(nil)
	pop := dataset.NewFrame([]string{"country", "year", "population"},
		[][]string{{"Sudan", "2023", "48000000"}})

	res := engine.ExecuteSafely(context.Background(),
		`vals, _ := dfPop.Float("population")
fmt.Println(vals[0])`,
		helperFrame(), map[string]*dataset.Frame{"df_pop": pop})

	require.True(t, res.Success, res.Error)
	assert.Contains(t, res.Output, "4.8e+07")
}

func TestExecuteSafelyReportsErrors(t *testing.T) {
	engine := NewYaegiEngine(nil)
	res := engine.ExecuteSafely(context.Background(),
		`results := executeSQL("SELECT 1")`, helperFrame(), nil)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestExecuteSafelyWithholdsDangerousPackages(t *testing.T) {
	engine := NewYaegiEngine(nil)
	res := engine.ExecuteSafely(context.Background(),
		`import "os/exec"
out, _ := exec.Command("ls").Output()
fmt.Println(string(out))`, helperFrame(), nil)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestExecuteSafelyCharts(t *testing.T) {
	engine := NewYaegiEngine(nil)
	res := engine.ExecuteSafely(context.Background(),
		`fcv.Chart("bar", "{\"x\":[1,2]}")`, helperFrame(), nil)

	require.True(t, res.Success, res.Error)
	require.Len(t, res.Charts, 1)
	assert.Equal(t, "bar", res.Charts[0].Type)
}
