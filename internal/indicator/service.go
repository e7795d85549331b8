package indicator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"fcvanalyst/internal/dataset"
)

// ErrNoIndicator is returned when no indicator can be inferred from a
// message.
var ErrNoIndicator = errors.New("could not infer indicator from message")

// topCountryFallback bounds external-call volume when a query names no
// country: only the most frequent dataset countries are fetched.
const topCountryFallback = 10

// populationKeywords trigger population enrichment.
var populationKeywords = []string{
	"population",
	"per capita",
	"per-capita",
	"per 1000",
	"per 10k",
	"per 10000",
	"per 100k",
	"per 100000",
	"per million",
}

// indicatorKeywords map vocabulary phrases to WDI indicator ids.
var indicatorKeywords = []struct {
	phrase string
	id     string
}{
	{"poverty", "WB_WDI_SI_POV_DDAY"},
	{"inflation", "WB_WDI_FP_CPI_TOTL_ZG"},
	{"unemployment", "WB_WDI_SL_UEM_TOTL_ZS"},
	{"gdp", "WB_WDI_NY_GDP_MKTP_CD"},
	{"population", PopulationIndicator},
}

// indicatorCodePattern matches an explicit canonical indicator code.
var indicatorCodePattern = regexp.MustCompile(`\b(WB_WDI(?:_[A-Z0-9]+)+)\b`)

// NeedsPopulation reports whether a message asks for population-normalized
// analysis.
func NeedsPopulation(message string) bool {
	text := strings.ToLower(message)
	for _, k := range populationKeywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// NeedsIndicator reports whether a message asks for broader WDI indicator
// enrichment.
func NeedsIndicator(message string) bool {
	if indicatorCodePattern.MatchString(message) {
		return true
	}
	text := strings.ToLower(message)
	for _, k := range indicatorKeywords {
		if strings.Contains(text, k.phrase) {
			return true
		}
	}
	return false
}

// InferIndicator maps free text to an indicator id: an explicit code match
// first, then the keyword vocabulary, else ErrNoIndicator.
func InferIndicator(message string) (string, error) {
	if m := indicatorCodePattern.FindString(message); m != "" {
		return m, nil
	}
	text := strings.ToLower(message)
	for _, k := range indicatorKeywords {
		if strings.Contains(text, k.phrase) {
			return k.id, nil
		}
	}
	return "", ErrNoIndicator
}

// Service builds join-ready enrichment tables from the indicator source.
type Service struct {
	client *Client
	log    *zap.Logger
}

// NewService creates an enrichment service.
func NewService(client *Client, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{client: client, log: log}
}

// Result is an enrichment outcome: the table (possibly empty) and the
// non-fatal warnings accumulated while building it.
type Result struct {
	Table    *dataset.Frame
	Warnings []string
}

// datasetHints derives a country->ISO3 mapping from the dataset's own code
// column, when one exists.
func datasetHints(f *dataset.Frame) map[string]string {
	if !f.HasColumn("country") || !f.HasColumn("iso3") {
		return nil
	}
	hints := make(map[string]string)
	countries := f.Col("country")
	codes := f.Col("iso3")
	for i, c := range countries {
		c = strings.TrimSpace(c)
		code := strings.TrimSpace(codes[i])
		if c != "" && len(code) == 3 {
			hints[c] = code
		}
	}
	return hints
}

// chainFor builds the resolver chain for a dataset: the dataset hint (when
// present) ahead of the standard chain.
func chainFor(f *dataset.Frame) Chain {
	chain := Chain{}
	if hints := datasetHints(f); len(hints) > 0 {
		chain = append(chain, HintResolver(hints))
	}
	return append(chain, DefaultChain()...)
}

// BuildPopulation fetches total population for every country present in
// the frame, bounded by the frame's event-date year range, and returns a
// (country, year, population) table deduplicated on (country, year) with
// the last occurrence winning, sorted by country then year.
func (s *Service) BuildPopulation(ctx context.Context, f *dataset.Frame) (*Result, error) {
	res := &Result{Table: dataset.NewFrame([]string{"country", "year", "population"}, nil)}
	if !f.HasColumn("country") {
		res.Warnings = append(res.Warnings, "population merge unavailable: dataset does not include 'country'")
		return res, nil
	}

	yearFrom, yearTo, _ := f.YearBounds()
	countries := distinctCountries(f)
	chain := chainFor(f)

	type popRow struct {
		country    string
		year       int
		population float64
	}
	var rows []popRow
	var unresolved []string

	for _, country := range countries {
		iso3, ok := chain.Resolve(country)
		if !ok {
			unresolved = append(unresolved, country)
			continue
		}
		obs, warning, err := s.client.Fetch(ctx, PopulationIndicator, iso3, yearFrom, yearTo)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("population fetch failed for %s (%s): %v", country, iso3, err))
			continue
		}
		if warning != "" {
			res.Warnings = append(res.Warnings, warning)
		}
		if len(obs) == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("no population records returned for %s (%s)", country, iso3))
			continue
		}
		for _, o := range obs {
			year, value, ok := coerceObservation(o)
			if !ok {
				continue
			}
			rows = append(rows, popRow{country: country, year: year, population: value})
		}
	}

	if len(unresolved) > 0 {
		shown := unresolved
		suffix := ""
		if len(shown) > 12 {
			shown = shown[:12]
			suffix = "..."
		}
		res.Warnings = append(res.Warnings,
			"could not map some countries to ISO3 codes: "+strings.Join(shown, ", ")+suffix)
	}

	// Keep one record per (country, year), last occurrence wins.
	type key struct {
		country string
		year    int
	}
	latest := make(map[key]popRow, len(rows))
	for _, r := range rows {
		latest[key{r.country, r.year}] = r
	}
	deduped := make([]popRow, 0, len(latest))
	for _, r := range latest {
		deduped = append(deduped, r)
	}
	sort.Slice(deduped, func(i, j int) bool {
		if deduped[i].country != deduped[j].country {
			return deduped[i].country < deduped[j].country
		}
		return deduped[i].year < deduped[j].year
	})

	out := make([][]string, 0, len(deduped))
	for _, r := range deduped {
		out = append(out, []string{r.country, strconv.Itoa(r.year), strconv.FormatFloat(r.population, 'f', -1, 64)})
	}
	res.Table = dataset.NewFrame([]string{"country", "year", "population"}, out)
	return res, nil
}

// BuildIndicator fetches the indicator inferred from the message for the
// countries it names, falling back to the most frequent dataset countries
// with a visible warning, and returns an (iso3, year, value, indicator)
// table deduplicated on (iso3, year) with the last occurrence winning.
func (s *Service) BuildIndicator(ctx context.Context, f *dataset.Frame, message string) (*Result, error) {
	res := &Result{Table: dataset.NewFrame([]string{"iso3", "year", "value", "indicator"}, nil)}

	id, err := InferIndicator(message)
	if err != nil {
		return res, err
	}

	_, codes := MentionedCountries(message)
	if len(codes) == 0 {
		chain := chainFor(f)
		for _, country := range f.TopValues("country", topCountryFallback) {
			if code, ok := chain.Resolve(country); ok {
				codes = append(codes, code)
			}
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"no country named in the question; limited indicator fetch to the %d most frequent dataset countries", topCountryFallback))
	}

	yearFrom, yearTo, _ := f.YearBounds()

	type indRow struct {
		iso3  string
		year  int
		value float64
	}
	var rows []indRow
	for _, code := range codes {
		obs, warning, err := s.client.Fetch(ctx, id, code, yearFrom, yearTo)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("indicator fetch failed for %s: %v", code, err))
			continue
		}
		if warning != "" {
			res.Warnings = append(res.Warnings, warning)
		}
		for _, o := range obs {
			year, value, ok := coerceObservation(o)
			if !ok {
				continue
			}
			area := o.RefArea
			if area == "" {
				area = code
			}
			rows = append(rows, indRow{iso3: area, year: year, value: value})
		}
	}

	type key struct {
		iso3 string
		year int
	}
	latest := make(map[key]indRow, len(rows))
	for _, r := range rows {
		latest[key{r.iso3, r.year}] = r
	}
	deduped := make([]indRow, 0, len(latest))
	for _, r := range latest {
		deduped = append(deduped, r)
	}
	sort.Slice(deduped, func(i, j int) bool {
		if deduped[i].iso3 != deduped[j].iso3 {
			return deduped[i].iso3 < deduped[j].iso3
		}
		return deduped[i].year < deduped[j].year
	})

	out := make([][]string, 0, len(deduped))
	for _, r := range deduped {
		out = append(out, []string{r.iso3, strconv.Itoa(r.year), strconv.FormatFloat(r.value, 'f', -1, 64), id})
	}
	res.Table = dataset.NewFrame([]string{"iso3", "year", "value", "indicator"}, out)
	return res, nil
}

// coerceObservation parses the year and numeric value of an observation.
// Rows that do not coerce are dropped.
func coerceObservation(o Observation) (int, float64, bool) {
	year, err := strconv.Atoi(strings.TrimSpace(o.TimePeriod))
	if err != nil {
		return 0, 0, false
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(o.ObsValue), 64)
	if err != nil {
		return 0, 0, false
	}
	return year, value, true
}

func distinctCountries(f *dataset.Frame) []string {
	seen := make(map[string]bool)
	for _, c := range f.Col("country") {
		c = strings.TrimSpace(c)
		if c != "" {
			seen[c] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
