package executor

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"fcvanalyst/internal/dataset"
)

// Chart is a chart artifact registered by an analysis snippet.
type Chart struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// Result is the outcome of one sandboxed execution.
type Result struct {
	Success     bool           `json:"success"`
	Output      string         `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	Charts      []Chart        `json:"charts,omitempty"`
	SummaryData map[string]any `json:"summary_data,omitempty"`
}

// Engine runs validated analysis code against the primary dataset and any
// auxiliary enrichment tables.
type Engine interface {
	ExecuteSafely(ctx context.Context, code string, primary *dataset.Frame, aux map[string]*dataset.Frame) *Result
}

// execTimeout bounds a single snippet run.
const execTimeout = 30 * time.Second

// sandboxPackages is the allow-list of standard library packages exposed
// to snippets. Everything else, in particular os, os/exec, net, and
// syscall, is withheld from the interpreter.
var sandboxPackages = map[string]bool{
	"fmt":     true,
	"strings": true,
	"strconv": true,
	"sort":    true,
	"math":    true,
	"time":    true,
	"errors":  true,
	"unicode": true,
}

var sandboxSymbols = func() interp.Exports {
	out := make(interp.Exports)
	for path, symbols := range stdlib.Symbols {
		pkg := path
		if i := strings.Index(path, "/"); i >= 0 {
			pkg = path[:i]
		}
		if sandboxPackages[pkg] {
			out[path] = symbols
		}
	}
	return out
}()

// YaegiEngine is the default Engine: a fresh yaegi interpreter per run
// with the restricted symbol surface and the frame helpers bound under the
// "fcv" package.
type YaegiEngine struct {
	log *zap.Logger
}

// NewYaegiEngine creates the interpreter-backed engine.
func NewYaegiEngine(log *zap.Logger) *YaegiEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &YaegiEngine{log: log}
}

// preamble binds the dataset variables snippets refer to. dfPop and dfWdi
// are empty frames when no enrichment ran.
const preamble = `
df := fcv.Dataset()
dfPop := fcv.Population()
dfWdi := fcv.Indicators()
_, _, _ = df, dfPop, dfWdi
_, _, _, _, _ = fmt.Sprint, strconv.Itoa, strings.TrimSpace, sort.Strings, math.Abs
`

// ExecuteSafely runs the snippet and captures its printed output, summary
// data, and chart artifacts. Interpreter errors and panics are reported in
// the result, never propagated.
func (e *YaegiEngine) ExecuteSafely(ctx context.Context, code string, primary *dataset.Frame, aux map[string]*dataset.Frame) (result *Result) {
	result = &Result{}
	var stdout bytes.Buffer

	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("snippet execution panicked", zap.Any("panic", r))
			result.Success = false
			result.Output = stdout.String()
			result.Error = fmt.Sprintf("execution panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	popFrame := aux["df_pop"]
	if popFrame == nil {
		popFrame = dataset.NewFrame([]string{"country", "year", "population"}, nil)
	}
	wdiFrame := aux["df_wdi"]
	if wdiFrame == nil {
		wdiFrame = dataset.NewFrame([]string{"iso3", "year", "value", "indicator"}, nil)
	}

	summary := make(map[string]any)
	var charts []Chart

	i := interp.New(interp.Options{Stdout: &stdout, Stderr: &stdout})
	if err := i.Use(sandboxSymbols); err != nil {
		result.Error = fmt.Sprintf("sandbox setup failed: %v", err)
		return result
	}
	exports := interp.Exports{
		"fcv/fcv": {
			"Dataset":        reflect.ValueOf(func() *dataset.Frame { return primary }),
			"Population":     reflect.ValueOf(func() *dataset.Frame { return popFrame }),
			"Indicators":     reflect.ValueOf(func() *dataset.Frame { return wdiFrame }),
			"FilterEq":       reflect.ValueOf(FilterEq),
			"FilterIn":       reflect.ValueOf(FilterIn),
			"FilterContains": reflect.ValueOf(FilterContains),
			"FilterYears":    reflect.ValueOf(FilterYears),
			"GroupCount":     reflect.ValueOf(GroupCount),
			"GroupSum":       reflect.ValueOf(GroupSum),
			"SortDesc":       reflect.ValueOf(SortDesc),
			"Head":           reflect.ValueOf(Head),
			"Render":         reflect.ValueOf(Render),
			"Summary":        reflect.ValueOf(func(key string, value any) { summary[key] = value }),
			"Chart":          reflect.ValueOf(func(chartType, data string) { charts = append(charts, Chart{Type: chartType, Data: data}) }),
		},
	}
	if err := i.Use(exports); err != nil {
		result.Error = fmt.Sprintf("sandbox setup failed: %v", err)
		return result
	}

	if _, err := i.EvalWithContext(ctx, `import ("fmt"; "math"; "sort"; "strconv"; "strings"; "fcv")`); err != nil {
		result.Error = fmt.Sprintf("sandbox setup failed: %v", err)
		return result
	}
	if _, err := i.EvalWithContext(ctx, preamble); err != nil {
		result.Error = fmt.Sprintf("sandbox setup failed: %v", err)
		return result
	}

	if _, err := i.EvalWithContext(ctx, code); err != nil {
		result.Success = false
		result.Output = stdout.String()
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.Output = stdout.String()
	if len(summary) > 0 {
		result.SummaryData = summary
	}
	result.Charts = charts
	return result
}
