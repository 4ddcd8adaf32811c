package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wisefido-records/internal/chart"
	"wisefido-records/internal/common/config"
	"wisefido-records/internal/common/database"
	"wisefido-records/internal/location"
	"wisefido-records/internal/provider"
	"wisefido-records/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const facilityUUID = "facility"

type fixture struct {
	resources *provider.Router
	handler   http.Handler
	charts    *fakeCharts
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{Driver: config.DriverSQLite})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.Migrate(context.Background(), db))

	resources := provider.NewRouter(db, store.SQLite, zap.NewNop())
	require.NoError(t, provider.RegisterDefaults(resources))

	holder := location.NewHolder(location.NewLoader(resources, zap.NewNop()), zap.NewNop())
	charts := &fakeCharts{}

	r := NewRouter(zap.NewNop())
	r.RegisterResourceRoutes(NewResourceHandler(resources, zap.NewNop()))
	r.RegisterLocationRoutes(NewLocationHandler(holder, "en"))
	r.RegisterChartRoutes(NewChartHandler(charts, "en", time.UTC, zap.NewNop()))
	r.RegisterHealthRoutes(NewHealthHandler(db, nil, zap.NewNop()), nil)
	return &fixture{resources: resources, handler: r, charts: charts}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) Result[T] {
	t.Helper()
	var res Result[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return res
}

const resources = apiPrefix + "/resources"

func seedLocations(t *testing.T, f *fixture) {
	t.Helper()
	rec := f.do(t, http.MethodPost, resources+"/locations", `[
		{"location_uuid": "facility", "parent_uuid": null},
		{"location_uuid": "`+location.ConfirmedZoneUUID+`", "parent_uuid": "facility"},
		{"location_uuid": "`+location.TriageZoneUUID+`", "parent_uuid": "facility"},
		{"location_uuid": "tent-1", "parent_uuid": "`+location.ConfirmedZoneUUID+`"}
	]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodPost, resources+"/location-names", `[
		{"location_uuid": "facility", "locale": "en", "name": "Facility"},
		{"location_uuid": "`+location.ConfirmedZoneUUID+`", "locale": "en", "name": "Confirmed"},
		{"location_uuid": "`+location.TriageZoneUUID+`", "locale": "en", "name": "Triage"},
		{"location_uuid": "tent-1", "locale": "en", "name": "Tent 1"}
	]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodPost, resources+"/patients", `[
		{"uuid": "p1", "location_uuid": "tent-1"},
		{"uuid": "p2", "location_uuid": "tent-1"},
		{"uuid": "p3", "location_uuid": "`+location.TriageZoneUUID+`"}
	]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestResources_BulkInsertAndQuery(t *testing.T) {
	f := setup(t)
	seedLocations(t, f)

	rec := f.do(t, http.MethodGet, resources+"/patients?location_uuid=tent-1&columns=uuid&order=uuid+DESC", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[[]map[string]any](t, rec)
	assert.Equal(t, ResultSuccess, res.Code)
	assert.Equal(t, []map[string]any{{"uuid": "p2"}, {"uuid": "p1"}}, res.Result)

	rec = f.do(t, http.MethodGet, resources+"/patients/p3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]map[string]any](t, rec).Result
	require.Len(t, rows, 1)
	assert.Equal(t, location.TriageZoneUUID, rows[0]["location_uuid"])
}

func TestResources_InsertReturnsKey(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodPost, resources+"/patients", `{"uuid": "p9", "given_name": "Ama"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]string{"path": "/patients", "key": "p9"}, decode[map[string]string](t, rec).Result)
}

func TestResources_RangeFilters(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodPost, resources+"/observations", `[
		{"patient_uuid": "p1", "encounter_uuid": "e1", "encounter_time": 100, "concept_uuid": "c", "value": "1", "voided": 0},
		{"patient_uuid": "p1", "encounter_uuid": "e2", "encounter_time": 200, "concept_uuid": "c", "value": "2", "voided": 0},
		{"patient_uuid": "p1", "encounter_uuid": "e3", "encounter_time": 300, "concept_uuid": "c", "value": "3", "voided": 0}
	]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]int{"count": 3}, decode[map[string]int](t, rec).Result)

	rec = f.do(t, http.MethodGet, resources+"/observations?min_encounter_time=200&max_encounter_time=250&columns=encounter_uuid", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []map[string]any{{"encounter_uuid": "e2"}}, decode[[]map[string]any](t, rec).Result)
}

func TestResources_UpdateAndDelete(t *testing.T) {
	f := setup(t)
	seedLocations(t, f)

	rec := f.do(t, http.MethodPut, resources+"/patients/p2", `{"given_name": "Kofi"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]int{"count": 1}, decode[map[string]int](t, rec).Result)

	rec = f.do(t, http.MethodDelete, resources+"/patients?location_uuid=tent-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]int{"count": 2}, decode[map[string]int](t, rec).Result)

	rec = f.do(t, http.MethodGet, resources+"/patients?columns=uuid", "")
	assert.Equal(t, []map[string]any{{"uuid": "p3"}}, decode[[]map[string]any](t, rec).Result)
}

func TestResources_Errors(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"no delegate", http.MethodGet, resources + "/nothing-here", "", http.StatusNotFound},
		{"unknown filter column", http.MethodGet, resources + "/patients?shoe_size=4", "", http.StatusBadRequest},
		{"unknown projection", http.MethodGet, resources + "/patients?columns=shoe_size", "", http.StatusBadRequest},
		{"bad ordering", http.MethodGet, resources + "/patients?order=uuid+SIDEWAYS", "", http.StatusBadRequest},
		{"insert into view", http.MethodPost, resources + "/patient-counts", `{"a": 1}`, http.StatusMethodNotAllowed},
		{"filter on view", http.MethodGet, resources + "/patient-counts?uuid=x", "", http.StatusBadRequest},
		{"bulk insert into item", http.MethodPost, resources + "/patients/p1", `[{"given_name": "x"}]`, http.StatusMethodNotAllowed},
		{"mixed columns", http.MethodPost, resources + "/patients", `[{"uuid": "a"}, {"uuid": "b", "id": "2"}]`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, resources + "/patients", `{"uuid":`, http.StatusBadRequest},
		{"update with array", http.MethodPut, resources + "/patients", `[{"id": "1"}]`, http.StatusBadRequest},
		{"unsupported method", http.MethodPatch, resources + "/patients", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if rec.Body.Len() > 0 {
				assert.Equal(t, ResultError, decode[any](t, rec).Code)
			}
		})
	}
}

func TestResources_MixedColumnsApplyNothing(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodPost, resources+"/patients", `[{"uuid": "a"}, {"uuid": "b", "id": "2"}]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, resources+"/patients", "")
	assert.Empty(t, decode[[]map[string]any](t, rec).Result)
}

func TestLocations_Tree(t *testing.T) {
	f := setup(t)
	seedLocations(t, f)

	rec := f.do(t, http.MethodGet, apiPrefix+"/locations", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	root := decode[nodeJSON](t, rec).Result
	assert.Equal(t, facilityUUID, root.UUID)
	assert.Equal(t, "Facility", root.Name)
	assert.Equal(t, 3, root.PatientCount)
	assert.Equal(t, 0, root.DirectCount)
	require.Len(t, root.Children, 2)

	rec = f.do(t, http.MethodGet, apiPrefix+"/locations?depth=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var zones []string
	for _, n := range decode[[]nodeJSON](t, rec).Result {
		zones = append(zones, n.UUID)
		assert.Empty(t, n.Children)
	}
	assert.ElementsMatch(t, []string{location.ConfirmedZoneUUID, location.TriageZoneUUID}, zones)

	rec = f.do(t, http.MethodGet, apiPrefix+"/locations?depth=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLocations_Location(t *testing.T) {
	f := setup(t)
	seedLocations(t, f)

	rec := f.do(t, http.MethodGet, apiPrefix+"/locations/tent-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loc := decode[locationJSON](t, rec).Result
	assert.Equal(t, "Tent 1", loc.Node.Name)
	assert.Equal(t, 2, loc.Node.DirectCount)
	require.NotNil(t, loc.Zone)
	assert.Equal(t, "Confirmed", loc.Zone.Name)
	require.NotNil(t, loc.Tent)
	assert.Equal(t, "tent-1", loc.Tent.UUID)

	rec = f.do(t, http.MethodGet, apiPrefix+"/locations/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, apiPrefix+"/locations/tent-1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLocations_NoRoot(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, apiPrefix+"/locations", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakeCharts struct {
	today  time.Time
	locale string
	err    error
}

var chartDay = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

func (f *fakeCharts) Chart(ctx context.Context, patientUUID, locale string, today time.Time) (*chart.PatientChart, error) {
	f.today, f.locale = today, locale
	if f.err != nil {
		return nil, f.err
	}
	dict := chart.NewMapDictionary(locale, map[string]string{
		chart.ConceptTemperature: "Temperature",
		chart.ConceptNotes:       "Notes",
	})
	obs := []chart.Observation{
		{PatientUUID: patientUUID, EncounterTime: chartDay.Add(9 * time.Hour), ConceptUUID: chart.ConceptTemperature, Value: "38.4"},
		{PatientUUID: patientUUID, EncounterTime: chartDay.Add(15 * time.Hour), ConceptUUID: chart.ConceptNotes, Value: "ate well"},
	}
	grid, err := chart.NewPivot(dict, chart.Options{Logger: zap.NewNop()}).Build(obs, today, time.UTC)
	if err != nil {
		return nil, err
	}
	return &chart.PatientChart{PatientUUID: patientUUID, Locale: locale, Grid: grid}, nil
}

func (f *fakeCharts) Latest(ctx context.Context, patientUUID, locale string) (map[string]chart.Observation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[string]chart.Observation{
		chart.ConceptTemperature: {EncounterUUID: "e1", EncounterTime: chartDay, ConceptName: "Temperature", Value: "38.4"},
	}, nil
}

func TestCharts_JSON(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodGet, apiPrefix+"/patients/p1/chart?today=2026-10-16T18:00:00Z&locale=fr", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "fr", f.charts.locale)
	assert.True(t, f.charts.today.Equal(chartDay.Add(18*time.Hour)))

	c := decode[chartJSON](t, rec).Result
	assert.Equal(t, "2026-10-16", c.Today)
	require.Len(t, c.Columns, 2)
	assert.Equal(t, "Today", c.Columns[0].Label)
	assert.Equal(t, "Today PM", c.Columns[1].Label)

	require.Len(t, c.Rows, 2)
	assert.Equal(t, "Temperature", c.Rows[0].Label)
	assert.Equal(t, []cellJSON{{Column: "2026-10-16 AM", Hint: chart.HintElevated, Text: "38.4"}}, c.Rows[0].Cells)
	require.Len(t, c.Rows[1].Cells, 1)
	assert.True(t, c.Rows[1].Cells[0].HasDetail)
	assert.Empty(t, c.Rows[1].Cells[0].Detail)

	rec = f.do(t, http.MethodGet, apiPrefix+"/patients/p1/chart?today=2026-10-16&details=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	c = decode[chartJSON](t, rec).Result
	assert.Contains(t, c.Rows[1].Cells[0].Detail, "ate well")
}

func TestCharts_Errors(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodGet, apiPrefix+"/patients/p1/chart?today=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, apiPrefix+"/patients/p1/vitals", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, apiPrefix+"/patients/p1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.charts.err = chart.ErrPatientNotFound
	rec = f.do(t, http.MethodGet, apiPrefix+"/patients/p1/chart", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.charts.err = chart.ErrNoDictionary
	rec = f.do(t, http.MethodGet, apiPrefix+"/patients/p1/chart", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCharts_XLSX(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodGet, apiPrefix+"/patients/p1/chart.xlsx?today=2026-10-16", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=chart_p1_2026-10-16.xlsx", rec.Header().Get("Content-Disposition"))

	wb, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer wb.Close()
	v, err := wb.GetCellValue("Chart", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Temperature", v)
}

func TestCharts_Latest(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodGet, apiPrefix+"/patients/p1/latest", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	latest := decode[map[string]observationJSON](t, rec).Result
	assert.Equal(t, "38.4", latest[chart.ConceptTemperature].Value)
	assert.True(t, latest[chart.ConceptTemperature].EncounterTime.Equal(chartDay))
}

func TestHealthz(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "healthy", res.Status)
	assert.Equal(t, "healthy", res.Services["database"])
	assert.Equal(t, "not configured", res.Services["redis"])
}

type brokerState bool

func (b brokerState) IsConnected() bool { return bool(b) }

func TestHealthz_MQTTDisconnected(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.RegisterHealthRoutes(NewHealthHandler(nil, nil, zap.NewNop()).WithMQTT(brokerState(false)), nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var res HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "unhealthy: not connected", res.Services["mqtt"])
	assert.Equal(t, "not configured", res.Services["database"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
	assert.Equal(t, http.StatusNotFound, statusFor(provider.ErrNoMatchingDelegate))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(&chart.MissingConceptError{ConceptUUID: "c", Locale: "en"}))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(&location.LocationFetchError{Err: errors.New("x")}))
}
