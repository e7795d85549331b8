package indicator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Data360 API defaults.
const (
	DefaultBaseURL = "https://data360api.worldbank.org/data360/data"
	DatabaseID     = "WB_WDI"
	// PopulationIndicator is the WDI total-population series.
	PopulationIndicator = "WB_WDI_SP_POP_TOTL"

	defaultPageSize = 1000
	defaultMaxPages = 50
	requestTimeout  = 25 * time.Second
)

// Observation is one record from the indicator data source: an area code,
// a time period, and an observed value, all carried as text.
type Observation struct {
	RefArea    string `json:"REF_AREA"`
	TimePeriod string `json:"TIME_PERIOD"`
	ObsValue   string `json:"OBS_VALUE"`
}

// UnmarshalJSON accepts TIME_PERIOD and OBS_VALUE as either JSON strings or
// bare numbers; the API is not consistent across datasets.
func (o *Observation) UnmarshalJSON(data []byte) error {
	var raw struct {
		RefArea    json.RawMessage `json:"REF_AREA"`
		TimePeriod json.RawMessage `json:"TIME_PERIOD"`
		ObsValue   json.RawMessage `json:"OBS_VALUE"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.RefArea = scalarText(raw.RefArea)
	o.TimePeriod = scalarText(raw.TimePeriod)
	o.ObsValue = scalarText(raw.ObsValue)
	return nil
}

// scalarText renders a scalar JSON value as bare text: strings lose their
// quotes, numbers keep their literal form, null and absent become "".
func scalarText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

type dataPage struct {
	Value []Observation `json:"value"`
}

// pageState drives the pagination loop. The three terminal states make
// each stop condition independently testable.
type pageState int

const (
	stateFetching pageState = iota
	// statePageRepeated fires when two consecutive pages carry an
	// identical (first, last, length) signature: the server is ignoring
	// the pagination offset.
	statePageRepeated
	// stateExhausted fires at the fixed page budget.
	stateExhausted
	// stateComplete is the clean termination: a short page.
	stateComplete
)

type pageSignature struct {
	first  string
	last   string
	length int
}

func signatureOf(page []Observation) pageSignature {
	sig := pageSignature{length: len(page)}
	if len(page) > 0 {
		sig.first = page[0].RefArea + "|" + page[0].TimePeriod + "|" + page[0].ObsValue
		sig.last = page[len(page)-1].RefArea + "|" + page[len(page)-1].TimePeriod + "|" + page[len(page)-1].ObsValue
	}
	return sig
}

// Client fetches indicator series from the Data360 API with pagination,
// bounded termination, and a process-lifetime cache of completed fetches.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	log        *zap.Logger
	pageSize   int
	maxPages   int
}

// NewClient creates a Data360 client. A nil cache disables caching.
func NewClient(baseURL string, cache Cache, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      cache,
		log:        log,
		pageSize:   defaultPageSize,
		maxPages:   defaultMaxPages,
	}
}

// Fetch returns all observations for an indicator and area code ("all" for
// every area) within an optional year range. Cache hits are served without
// any network call. Only cleanly completed fetches are cached; a fetch
// terminated by the page budget or the repeated-page guard returns its
// rows with a non-nil warning and is not cached.
func (c *Client) Fetch(ctx context.Context, indicator, code string, yearFrom, yearTo int) ([]Observation, string, error) {
	key := FetchKey{Indicator: indicator, Code: code, YearFrom: yearFrom, YearTo: yearTo}
	if c.cache != nil {
		if obs, ok := c.cache.Get(key); ok {
			c.log.Debug("data360 cache hit", zap.String("indicator", indicator), zap.String("code", code))
			return obs, "", nil
		}
	}

	var all []Observation
	var prevSig pageSignature
	havePrev := false
	skip := 0
	pages := 0
	state := stateFetching

	for state == stateFetching {
		page, err := c.fetchPage(ctx, indicator, code, yearFrom, yearTo, skip)
		if err != nil {
			return nil, "", err
		}
		pages++
		all = append(all, page...)

		sig := signatureOf(page)
		switch {
		case len(page) < c.pageSize:
			state = stateComplete
		case havePrev && sig == prevSig:
			state = statePageRepeated
		case pages >= c.maxPages:
			state = stateExhausted
		default:
			prevSig = sig
			havePrev = true
			skip += c.pageSize
		}
	}

	warning := ""
	switch state {
	case statePageRepeated:
		warning = fmt.Sprintf("pagination aborted for %s/%s: server repeated a page; results may be truncated", indicator, code)
	case stateExhausted:
		warning = fmt.Sprintf("pagination stopped for %s/%s after %d pages; results may be truncated", indicator, code, c.maxPages)
	case stateComplete:
		if c.cache != nil {
			c.cache.Set(key, all)
		}
	}
	if warning != "" {
		c.log.Warn("data360 pagination guard fired", zap.String("warning", warning))
	}
	return all, warning, nil
}

func (c *Client) fetchPage(ctx context.Context, indicator, code string, yearFrom, yearTo, skip int) ([]Observation, error) {
	params := url.Values{}
	params.Set("DATABASE_ID", DatabaseID)
	params.Set("INDICATOR", indicator)
	if code != "" && code != "all" {
		params.Set("REF_AREA", code)
	}
	params.Set("skip", strconv.Itoa(skip))
	if yearFrom > 0 {
		params.Set("timePeriodFrom", strconv.Itoa(yearFrom))
	}
	if yearTo > 0 {
		params.Set("timePeriodTo", strconv.Itoa(yearTo))
	}
	endpoint := c.baseURL + "?" + params.Encode()

	var page dataPage
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("data360 request failed with status %d", resp.StatusCode)
		}
		page = dataPage{}
		if len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to parse data360 response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("data360 fetch failed: %w", err)
	}
	return page.Value, nil
}
