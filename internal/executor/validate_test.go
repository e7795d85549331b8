package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fcvanalyst/internal/dataset"
	"fcvanalyst/internal/profile"
)

func testSnapshot() *profile.Snapshot {
	f := dataset.NewFrame(
		[]string{"event_id_cnty", "event_date", "event_type", "country", "fatalities"},
		[][]string{{"A1", "2023-01-05", "Battles", "Sudan", "4"}})
	return profile.Build(f)
}

func TestExtractCode(t *testing.T) {
	reply := "Here is the analysis:\n```go\nfmt.Println(df.NumRows())\n```\nDone."
	assert.Equal(t, "fmt.Println(df.NumRows())", ExtractCode(reply))

	bare := "```\ncount := 1\n```"
	assert.Equal(t, "count := 1", ExtractCode(bare))

	assert.Equal(t, "", ExtractCode("no code here"))
}

func TestExtractCodeOneLineFence(t *testing.T) {
	assert.Equal(t, "fmt.Println(1)", ExtractCode("```go fmt.Println(1)```"))
	assert.Equal(t, "x := 1", ExtractCode("``` x := 1 ```"))
}

func TestExtractCodeFirstBlockOnly(t *testing.T) {
	reply := "```go\nfirst()\n```\ntext\n```go\nsecond()\n```"
	assert.Equal(t, "first()", ExtractCode(reply))
}

func TestHasCodeBlock(t *testing.T) {
	assert.True(t, HasCodeBlock("```go\nx\n```"))
	assert.False(t, HasCodeBlock("plain refusal text"))
}

func TestValidateCodeAccepts(t *testing.T) {
	code := `
grouped := fcv.GroupCount(df, "country")
fmt.Println(fcv.Render(fcv.Head(grouped, 10)))
vals, _ := df.Float("fatalities")
_ = vals
`
	ok, reason := ValidateCode(code, testSnapshot())
	assert.True(t, ok, reason)
}

func TestValidateCodeRejectsEmpty(t *testing.T) {
	ok, reason := ValidateCode("   \n", testSnapshot())
	require.False(t, ok)
	assert.Contains(t, reason, "no code block")
}

func TestValidateCodeRejectsForbiddenOperations(t *testing.T) {
	for _, code := range []string{
		`out, _ := exec.Command("ls").Output()`,
		`resp, _ := http.Get("https://example.com")`,
		`syscall.Kill(1, 9)`,
		`os.RemoveAll("/")`,
		`v := reflect.ValueOf(df)`,
	} {
		ok, reason := ValidateCode(code, testSnapshot())
		require.False(t, ok, code)
		assert.Contains(t, reason, "forbidden operation")
	}
}

func TestValidateCodeRejectsUnknownColumn(t *testing.T) {
	ok, reason := ValidateCode(`fmt.Println(df.Col("latitude"))`, testSnapshot())
	require.False(t, ok)
	assert.Contains(t, reason, `"latitude"`)
}

func TestValidateCodeAllowsAuxColumns(t *testing.T) {
	snap := testSnapshot()
	snap.AuxTables = map[string]profile.AuxTable{
		"df_pop": {Columns: []string{"country", "year", "population"}},
	}
	ok, reason := ValidateCode(`pop, _ := dfPop.Float("population")
_ = pop`, snap)
	assert.True(t, ok, reason)
}
