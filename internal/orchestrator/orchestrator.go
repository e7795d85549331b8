// Package orchestrator sequences a chat request through planning, schema
// profiling, optional enrichment, code generation with validation and a
// single retry, sandboxed execution, and grounded narrative generation.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"fcvanalyst/internal/dataset"
	"fcvanalyst/internal/executor"
	"fcvanalyst/internal/indicator"
	"fcvanalyst/internal/llm"
	"fcvanalyst/internal/planner"
	"fcvanalyst/internal/profile"
)

// ErrNoData is returned when the session has no dataset loaded.
var ErrNoData = errors.New("no data loaded for session")

// Request is one chat turn against a session's dataset.
type Request struct {
	Message   string        `json:"message"`
	SessionID string        `json:"session_id"`
	History   []llm.Message `json:"history"`
}

// Response is the assembled outcome of one orchestration run.
type Response struct {
	Response         string           `json:"response"`
	Code             string           `json:"code,omitempty"`
	ExecutionResult  string           `json:"execution_result,omitempty"`
	ExecutionSuccess bool             `json:"execution_success"`
	Error            string           `json:"error,omitempty"`
	Charts           []executor.Chart `json:"charts"`
	SummaryData      map[string]any   `json:"summary_data,omitempty"`
	Narrative        string           `json:"narrative,omitempty"`
}

// Orchestrator wires the collaborators together. All dependencies are
// injected; it holds no ambient global state.
type Orchestrator struct {
	client   llm.Client
	planner  *planner.Planner
	engine   executor.Engine
	store    dataset.Store
	enricher *indicator.Service
	log      *zap.Logger
}

// New creates an orchestrator.
func New(client llm.Client, engine executor.Engine, store dataset.Store, enricher *indicator.Service, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		client:   client,
		planner:  planner.New(client),
		engine:   engine,
		store:    store,
		enricher: enricher,
		log:      log,
	}
}

// Chat runs the full pipeline for one message. The only hard failures are
// a missing dataset and completion-capability errors during generation;
// planner and enrichment failures degrade, validation failures terminate
// with a reported error after one retry, and execution failures are
// reported unless recharacterized as out-of-remit.
func (o *Orchestrator) Chat(ctx context.Context, req Request) (*Response, error) {
	frame, ok := o.store.Get(req.SessionID)
	if !ok || frame == nil {
		return nil, ErrNoData
	}

	// PLAN: parse failures degrade to a nil spec.
	spec := o.planner.Plan(ctx, req.Message)
	if spec != nil {
		o.log.Debug("query spec", zap.String("intent", spec.Intent), zap.Strings("groupby", spec.GroupBy))
	}

	// PROFILE
	snap := profile.Build(frame)
	var groupBy []string
	if spec != nil {
		groupBy = spec.GroupBy
	}
	snap.Profile(frame, snap.ProfiledColumns(frame, groupBy))

	// ENRICH: population table only when the vocabulary asks for it.
	aux := make(map[string]*dataset.Frame)
	if indicator.NeedsPopulation(req.Message) {
		res, err := o.enricher.BuildPopulation(ctx, frame)
		if err != nil {
			snap.AuxWarnings = append(snap.AuxWarnings, fmt.Sprintf("population enrichment failed: %v", err))
		} else {
			snap.AuxWarnings = append(snap.AuxWarnings, res.Warnings...)
			if res.Table.NumRows() > 0 {
				aux["df_pop"] = res.Table
				snap.AuxTables = map[string]profile.AuxTable{
					"df_pop": {
						Description:  "World Bank WDI population loaded from the Data360 API",
						Columns:      res.Table.Columns(),
						Shape:        [2]int{res.Table.NumRows(), len(res.Table.Columns())},
						JoinGuidance: "Join events and population on country + year. Build year from event_date if needed.",
					},
				}
			}
		}
	}

	// ENRICH: broader indicator table for WDI-only requests. Population
	// requests already get df_pop above.
	if indicator.NeedsIndicator(req.Message) && !indicator.NeedsPopulation(req.Message) {
		res, err := o.enricher.BuildIndicator(ctx, frame, req.Message)
		if err != nil {
			snap.AuxWarnings = append(snap.AuxWarnings, fmt.Sprintf("indicator enrichment failed: %v", err))
		} else {
			snap.AuxWarnings = append(snap.AuxWarnings, res.Warnings...)
			if res.Table.NumRows() > 0 {
				aux["df_wdi"] = res.Table
				if snap.AuxTables == nil {
					snap.AuxTables = make(map[string]profile.AuxTable)
				}
				snap.AuxTables["df_wdi"] = profile.AuxTable{
					Description:  "World Bank WDI indicator series loaded from the Data360 API",
					Columns:      res.Table.Columns(),
					Shape:        [2]int{res.Table.NumRows(), len(res.Table.Columns())},
					JoinGuidance: "Filter by iso3 and trend value by year; the indicator column names the series.",
				}
			}
		}
	}

	// GENERATE
	userMessage := req.Message
	if spec != nil {
		userMessage += "\n\n[Structured spec to implement: " + specJSON(spec) + "]"
	}
	system := buildSystemPrompt(snap)
	history := append(append([]llm.Message{}, req.History...), llm.Message{Role: llm.RoleUser, Content: userMessage})
	reply, err := o.client.Complete(ctx, system, history)
	if err != nil {
		return nil, fmt.Errorf("code generation failed: %w", err)
	}

	// DETECT REFUSAL: no code block means an out-of-scope answer.
	if !executor.HasCodeBlock(reply) {
		text := strings.TrimSpace(reply)
		if len(text) < 20 {
			text = OutOfRemitMessage
		}
		return &Response{
			Response:         text,
			ExecutionResult:  text,
			ExecutionSuccess: true,
			Charts:           []executor.Chart{},
		}, nil
	}

	// VALIDATE with exactly one retry.
	code := executor.ExtractCode(reply)
	valid, validationError := executor.ValidateCode(code, snap)
	if !valid {
		o.log.Info("validation failed, retrying once", zap.String("reason", validationError))
		retryHistory := append(append([]llm.Message{}, history...),
			llm.Message{Role: llm.RoleAssistant, Content: reply},
			llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf(
				"The generated code failed validation: %s Provide corrected Go code only, using allowed columns and no forbidden operations (no process spawning, no dynamic evaluation, no network access).", validationError)})
		reply, err = o.client.Complete(ctx, system, retryHistory)
		if err != nil {
			return nil, fmt.Errorf("code generation retry failed: %w", err)
		}
		code = executor.ExtractCode(reply)
		valid, validationError = executor.ValidateCode(code, snap)
		if !valid {
			return &Response{
				Response: reply,
				Code:     code,
				Error:    "Validation failed: " + validationError,
				Charts:   []executor.Chart{},
			}, nil
		}
	}

	// EXECUTE
	exec := o.engine.ExecuteSafely(ctx, code, frame, aux)
	output := exec.Output
	success := exec.Success
	execError := exec.Error

	// NORMALIZE EXECUTION ERRORS: an undefined out-of-scope capability
	// (e.g. generated code reaching for a SQL runner) is a refusal, not a
	// failure. Substring-based; see DESIGN.md for the policy note.
	if !success && execError != "" && isOutOfRemitError(execError) {
		output = OutOfRemitMessage
		execError = ""
		success = true
	}

	// NARRATE: grounded only in the real execution output.
	narrative := ""
	if success && len(strings.TrimSpace(output)) > 10 && needsNarrative(req.Message) {
		text, err := o.client.Complete(ctx, "", llm.UserTurn(buildNarrativePrompt(req.Message, output, exec.SummaryData)))
		if err != nil {
			o.log.Warn("narrative generation failed", zap.Error(err))
		} else {
			narrative = text
		}
	}

	charts := exec.Charts
	if charts == nil {
		charts = []executor.Chart{}
	}
	return &Response{
		Response:         reply,
		Code:             code,
		ExecutionResult:  output,
		ExecutionSuccess: success,
		Error:            execError,
		Charts:           charts,
		SummaryData:      exec.SummaryData,
		Narrative:        narrative,
	}, nil
}

// isOutOfRemitError matches execution errors caused by generated code
// reaching for capabilities that are deliberately absent from the sandbox.
func isOutOfRemitError(errText string) bool {
	return strings.Contains(errText, "is not defined") ||
		strings.Contains(errText, "undefined: ") ||
		strings.Contains(errText, "ExecuteSQL") ||
		strings.Contains(errText, "execute_sql")
}

func specJSON(spec *planner.QuerySpec) string {
	// Spec serialization is best-effort prompt steering; a marshal error
	// just omits the block.
	enc, err := json.Marshal(spec)
	if err != nil {
		return "{}"
	}
	return string(enc)
}
