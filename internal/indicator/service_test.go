package indicator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fcvanalyst/internal/dataset"
)

func TestNeedsPopulation(t *testing.T) {
	assert.True(t, NeedsPopulation("fatalities per capita in Sudan"))
	assert.True(t, NeedsPopulation("events per 100k residents"))
	assert.True(t, NeedsPopulation("Population trends"))
	assert.False(t, NeedsPopulation("top actors by fatalities"))
}

func TestInferIndicator(t *testing.T) {
	cases := map[string]string{
		"show me WB_WDI_SP_DYN_LE00_IN for Chad": "WB_WDI_SP_DYN_LE00_IN",
		"poverty rates vs conflict":              "WB_WDI_SI_POV_DDAY",
		"inflation and unrest":                   "WB_WDI_FP_CPI_TOTL_ZG",
		"unemployment correlation":               "WB_WDI_SL_UEM_TOTL_ZS",
		"GDP per country":                        "WB_WDI_NY_GDP_MKTP_CD",
		"population growth":                      PopulationIndicator,
	}
	for in, want := range cases {
		got, err := InferIndicator(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := InferIndicator("top event types")
	assert.ErrorIs(t, err, ErrNoIndicator)
}

func TestNeedsIndicator(t *testing.T) {
	assert.True(t, NeedsIndicator("conflict vs gdp"))
	assert.True(t, NeedsIndicator("fetch WB_WDI_SI_POV_DDAY please"))
	assert.False(t, NeedsIndicator("top event types"))
}

func indicatorServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		area := r.URL.Query().Get("REF_AREA")
		page := dataPage{Value: []Observation{
			{RefArea: area, TimePeriod: "2022", ObsValue: "100"},
			{RefArea: area, TimePeriod: "2023", ObsValue: "200"},
			{RefArea: area, TimePeriod: "2023", ObsValue: "250"},
			{RefArea: area, TimePeriod: "bad", ObsValue: "1"},
		}}
		_ = json.NewEncoder(w).Encode(page)
	}))
}

func popFrame() *dataset.Frame {
	return dataset.NewFrame([]string{"event_date", "country"}, [][]string{
		{"2022-05-01", "Sudan"},
		{"2023-07-09", "Sudan"},
		{"2023-01-01", "Atlantisqq Federationqq"},
	})
}

func TestBuildPopulation(t *testing.T) {
	srv := indicatorServer(t)
	defer srv.Close()

	svc := NewService(NewClient(srv.URL, NewMemoryCache(), nil), nil)
	res, err := svc.BuildPopulation(context.Background(), popFrame())
	require.NoError(t, err)

	// Unresolvable country surfaces as a warning, not an error.
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "could not map some countries")
	assert.Contains(t, res.Warnings[0], "Atlantisqq Federationqq")

	table := res.Table
	assert.Equal(t, []string{"country", "year", "population"}, table.Columns())
	// Duplicate (country, year) keeps the last occurrence.
	require.Equal(t, 2, table.NumRows())
	assert.Equal(t, "Sudan", table.Cell(0, "country"))
	assert.Equal(t, "2022", table.Cell(0, "year"))
	assert.Equal(t, "100", table.Cell(0, "population"))
	assert.Equal(t, "250", table.Cell(1, "population"))
}

func TestBuildPopulationNoCountryColumn(t *testing.T) {
	svc := NewService(NewClient("http://unreachable.invalid", nil, nil), nil)
	f := dataset.NewFrame([]string{"event_date"}, [][]string{{"2023-01-01"}})

	res, err := svc.BuildPopulation(context.Background(), f)
	require.NoError(t, err)
	assert.Zero(t, res.Table.NumRows())
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "does not include 'country'")
}

func TestBuildPopulationUsesDatasetHints(t *testing.T) {
	srv := indicatorServer(t)
	defer srv.Close()

	f := dataset.NewFrame([]string{"event_date", "country", "iso3"}, [][]string{
		{"2023-01-01", "Atlantisqq Federationqq", "ATL"},
	})
	svc := NewService(NewClient(srv.URL, nil, nil), nil)
	res, err := svc.BuildPopulation(context.Background(), f)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 2, res.Table.NumRows())
}

func TestBuildIndicatorNamedCountry(t *testing.T) {
	srv := indicatorServer(t)
	defer srv.Close()

	svc := NewService(NewClient(srv.URL, NewMemoryCache(), nil), nil)
	res, err := svc.BuildIndicator(context.Background(), popFrame(), "gdp trend for Sudan")
	require.NoError(t, err)

	table := res.Table
	assert.Equal(t, []string{"iso3", "year", "value", "indicator"}, table.Columns())
	require.Equal(t, 2, table.NumRows())
	assert.Equal(t, "SDN", table.Cell(0, "iso3"))
	assert.Equal(t, "WB_WDI_NY_GDP_MKTP_CD", table.Cell(0, "indicator"))
	assert.Empty(t, res.Warnings)
}

func TestBuildIndicatorFallsBackToTopCountries(t *testing.T) {
	srv := indicatorServer(t)
	defer srv.Close()

	svc := NewService(NewClient(srv.URL, NewMemoryCache(), nil), nil)
	res, err := svc.BuildIndicator(context.Background(), popFrame(), "map inflation against events")
	require.NoError(t, err)

	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "most frequent dataset countries")
	assert.Greater(t, res.Table.NumRows(), 0)
}

func TestBuildIndicatorNoIndicator(t *testing.T) {
	svc := NewService(NewClient("http://unreachable.invalid", nil, nil), nil)
	_, err := svc.BuildIndicator(context.Background(), popFrame(), "top event types")
	assert.ErrorIs(t, err, ErrNoIndicator)
}
