package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"fcvanalyst/internal/profile"
)

// OutOfRemitMessage is the canonical refusal for questions outside the
// quantitative-analysis scope.
const OutOfRemitMessage = "I am designed to address FCV-focused data queries. Your question is beyond my remit. " +
	"Please reformulate it as a data-focused question I can help with (e.g. trends, counts, maps, rankings from the dataset)."

// buildSystemPrompt assembles the code-generation system prompt from the
// schema snapshot, including any auxiliary table descriptors and warnings.
func buildSystemPrompt(snap *profile.Snapshot) string {
	columns := snap.Columns
	if len(columns) > 20 {
		columns = columns[:20]
	}
	valueInfo, _ := json.Marshal(snap.ValueInfo)
	columnProfile, _ := json.Marshal(snap.ColumnProfile)
	auxTables, _ := json.Marshal(snap.AuxTables)
	auxWarnings, _ := json.Marshal(snap.AuxWarnings)

	var b strings.Builder
	fmt.Fprintf(&b, `You are a data analyst assistant. You have access to a conflict event dataset bound to the variable 'df'. Your job is to understand the data (using the schema and value info below) and then write Go analysis code that answers the user's request. Do not assume column names, encodings, or value schemes - inspect and use what the data actually contains.

**Dataset Overview:**
- Shape: %d rows x %d columns
- Date range: %s to %s
- Columns: %s
- Value info (use only these values when filtering): %s
- Column profile (dtype and value counts for analysis-relevant columns): %s
- Optional auxiliary tables: %s
- Optional auxiliary warnings: %s

**Execution environment (already bound - DO NOT import anything else):**
- df, dfPop, dfWdi - data frames (df is the event data; dfPop/dfWdi are enrichment tables, empty unless listed above)
- fcv helpers: fcv.FilterEq, fcv.FilterIn, fcv.FilterContains, fcv.FilterYears, fcv.GroupCount, fcv.GroupSum, fcv.SortDesc, fcv.Head, fcv.Render, fcv.Summary(key, value), fcv.Chart(type, data)
- frame methods: df.Col("name"), df.Float("name"), df.NumRows(), df.Columns()
- standard packages fmt, strings, strconv, sort, math are imported

**HOW TO WORK (understand first, then execute):**
- Use only column names and values that exist in the schema and value info above.
- When filtering, grouping, or ranking: check the column profile for the actual format and values before writing filters.
- If a filter yields 0 rows, print diagnostics (row counts after each step) instead of silently producing empty output.
- If dfPop is available and the user asks for population or per-capita rates, join on country + year (derive year from event_date).
- If dfWdi is available, use it for indicator-only requests; it carries iso3, year, value, indicator.

**OUT OF SCOPE (do not generate code):**
- If the user's question is NOT a quantitative data analysis question (e.g. root causes of conflict, "why did X happen?", policy recommendations, definitions, general knowledge), do NOT output any code. Reply with ONLY this exact sentence, and nothing else: %q
- Do not wrap that sentence in a code block. Do not add explanation before or after.

**CRITICAL: Output executable code only when the question is a data query.**
- When the question IS a quantitative data request, your reply must contain the full Go code that does the work; the code block is executed once.
- Print results with fmt.Println(fcv.Render(...)) so the output is visible.
- ALWAYS wrap your code in `+"```go and ```"+` markers.

**IMPORTANT: Do NOT write "Key takeaways" or any narrative summary after the code block.** The system generates the narrative from the actual execution results.`,
		snap.Shape[0], snap.Shape[1],
		orEmpty(snap.DateRange.Min), orEmpty(snap.DateRange.Max),
		strings.Join(columns, ", "),
		valueInfo, columnProfile, auxTables, auxWarnings,
		OutOfRemitMessage)
	return b.String()
}

func orEmpty(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// narrativeKeywords gate post-execution narrative generation.
var narrativeKeywords = []string{
	"trend", "change", "pattern", "over time", "compare", "comparison",
	"increase", "decrease", "evolution", "shift", "regional", "geographic",
	"analysis", "analyze", "assessment", "assess", "summary", "summarize",
	"overview", "situation", "development", "developments", "security",
	"conflict", "violence", "fatalities", "events", "what happened",
}

// needsNarrative decides whether the question warrants key takeaways:
// longer questions, or any narrative keyword.
func needsNarrative(message string) bool {
	if len(strings.Fields(message)) > 5 {
		return true
	}
	text := strings.ToLower(message)
	for _, k := range narrativeKeywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

const narrativeOutputLimit = 3000

// buildNarrativePrompt grounds the takeaways in the actual execution
// output, never the model's pre-execution commentary.
func buildNarrativePrompt(question, output string, summaryData map[string]any) string {
	if len(output) > narrativeOutputLimit {
		output = output[:narrativeOutputLimit]
	}
	dataPoints := ""
	if len(summaryData) > 0 {
		if enc, err := json.Marshal(summaryData); err == nil {
			dataPoints = "Key Data Points: " + string(enc)
		}
	}
	return fmt.Sprintf(`You are summarising ACTUAL data analysis results. Write 2-4 key takeaways.

CRITICAL RULES:
- Use ONLY the numbers, names, and dates that appear in the "Analysis Results" below.
- Do NOT invent, extrapolate, or round numbers beyond what the output shows.
- If the output shows a date range (e.g. 2018-2026), do NOT claim data from outside that range.
- If unsure about a number, omit it rather than guess.

Format - use exactly this structure:
Key takeaways:
- [One punchy sentence with the main finding and exact number from the output.]
- [Another sentence citing a specific number or ranking from the output.]
- [Optional: a brief observation about a trend visible in the output.]

User Question: %s

Analysis Results (this is the ACTUAL output from executed code - treat these numbers as ground truth):
%s

%s

Output ONLY the "Key takeaways:" block. No other text, no preamble, no code.`, question, output, dataPoints)
}
