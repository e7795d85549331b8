// Package planner turns a free-text question into a structured query spec.
// The spec is advisory steering input for code generation, never
// authoritative; any planning failure degrades to a nil spec.
package planner

import (
	"context"
	"encoding/json"
	"strings"

	"fcvanalyst/internal/llm"
)

// QuerySpec is the structured plan extracted from a user message. Every
// field may be absent.
type QuerySpec struct {
	Intent          string   `json:"intent,omitempty"`
	DateRange       string   `json:"date_range,omitempty"`
	EventTypeFilter string   `json:"event_type_filter,omitempty"`
	ActorFilter     string   `json:"actor_filter,omitempty"`
	GroupBy         []string `json:"groupby,omitempty"`
	RankBy          string   `json:"rank_by,omitempty"`
	TopK            int      `json:"top_k,omitempty"`
	Output          string   `json:"output,omitempty"`
}

const specSystemPrompt = `You are a query specifier for conflict event data. Given the user's request, output ONLY a single valid JSON object. No markdown, no explanation, no code block wrapper.
Use only these keys (omit or set null if not applicable):
- intent: short string summarizing what they want (e.g. "top non-state actors per country-admin1")
- date_range: string like "2020-2024" or null
- event_type_filter: "violent_only" | "all" | null
- actor_filter: "non_state" | "state" | "all" | null
- groupby: array of column names e.g. ["country","admin1"] or null
- rank_by: "event_count" | "fatalities" | null
- top_k: number (e.g. 10) or null
- output: "csv" | "chart" | "both" | null
Example: {"intent":"top 10 non-state actors per country-admin1","date_range":"2020-2024","event_type_filter":"violent_only","actor_filter":"non_state","groupby":["country","admin1"],"rank_by":"event_count","top_k":10,"output":"csv"}`

// Planner requests query specs from the text-completion capability.
type Planner struct {
	client llm.Client
}

// New creates a planner backed by the given client.
func New(client llm.Client) *Planner {
	return &Planner{client: client}
}

// Plan asks for a structured spec for the message. It returns nil on any
// completion or parse failure; retries are the orchestrator's concern, and
// it chooses not to retry planning.
func (p *Planner) Plan(ctx context.Context, message string) *QuerySpec {
	raw, err := p.client.Complete(ctx, specSystemPrompt, llm.UserTurn(message))
	if err != nil {
		return nil
	}
	return ParseSpec(raw)
}

// ParseSpec extracts the JSON object between the first '{' and the last '}'
// of a reply. Returns nil when no object parses.
func ParseSpec(raw string) *QuerySpec {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return nil
	}
	var spec QuerySpec
	if err := json.Unmarshal([]byte(raw[start:end+1]), &spec); err != nil {
		return nil
	}
	return &spec
}
