package provider

import (
	"context"
	"errors"
	"testing"

	"wisefido-records/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChart(t *testing.T, r *Router) {
	t.Helper()
	ctx := context.Background()
	mustBulk := func(path string, rows []store.Values) {
		_, err := r.BulkInsert(ctx, path, rows)
		require.NoError(t, err)
	}

	mustBulk(PathCharts, []store.Values{
		{"chart_uuid": "chart-1", "chart_row": 1, "group_uuid": "grp-vitals", "concept_uuid": "temp"},
		{"chart_uuid": "chart-1", "chart_row": 2, "group_uuid": "grp-vitals", "concept_uuid": "cond"},
		{"chart_uuid": "chart-1", "chart_row": 3, "group_uuid": "grp-vitals", "concept_uuid": "weight"},
	})
	mustBulk(PathConceptNames, []store.Values{
		{"concept_uuid": "temp", "locale": "en", "name": "Temperature"},
		{"concept_uuid": "cond", "locale": "en", "name": "General condition"},
		{"concept_uuid": "weight", "locale": "en", "name": "Weight"},
		{"concept_uuid": "good", "locale": "en", "name": "Good"},
		{"concept_uuid": "grp-vitals", "locale": "en", "name": "Vital signs"},
	})
	mustBulk(PathObservations, []store.Values{
		{"patient_uuid": "p1", "encounter_uuid": "e1", "encounter_time": int64(1000), "concept_uuid": "temp", "value": "37.1", "voided": 0},
		{"patient_uuid": "p1", "encounter_uuid": "e2", "encounter_time": int64(2000), "concept_uuid": "temp", "value": "38.4", "voided": 0},
		{"patient_uuid": "p1", "encounter_uuid": "e1", "encounter_time": int64(1000), "concept_uuid": "cond", "value": "good", "voided": 0},
		{"patient_uuid": "p1", "encounter_uuid": "e3", "encounter_time": int64(3000), "concept_uuid": "cond", "value": "bad", "voided": 1},
		{"patient_uuid": "p2", "encounter_uuid": "e9", "encounter_time": int64(500), "concept_uuid": "temp", "value": "36.5", "voided": 0},
	})
}

func TestLocalizedChartView(t *testing.T) {
	r, _, _ := setupRouter(t)
	seedChart(t, r)

	rows := queryAll(t, r, LocalizedChartPath("chart-1", "en", "p1"), Query{})
	require.Len(t, rows, 4)

	assert.Equal(t, "temp", rows[0].String("concept_uuid"))
	assert.Equal(t, "Temperature", rows[0].String("concept_name"))
	assert.Equal(t, "Vital signs", rows[0].String("group_name"))
	assert.Equal(t, "37.1", rows[0].String("value"))
	assert.Equal(t, "38.4", rows[1].String("value"))

	assert.Equal(t, "cond", rows[2].String("concept_uuid"))
	assert.Equal(t, "Good", rows[2].String("localized_value"))

	// chart concept with no observations
	assert.Equal(t, "weight", rows[3].String("concept_uuid"))
	assert.True(t, rows[3].IsNull("encounter_time"))
}

func TestEmptyLocalizedChartView(t *testing.T) {
	r, _, _ := setupRouter(t)
	seedChart(t, r)

	rows := queryAll(t, r, EmptyLocalizedChartPath("chart-1", "en"), Query{})
	require.Len(t, rows, 3)
	assert.Equal(t, "Temperature", rows[0].String("concept_name"))
	assert.Equal(t, "General condition", rows[1].String("concept_name"))
	assert.Equal(t, "Weight", rows[2].String("concept_name"))

	assert.Empty(t, queryAll(t, r, EmptyLocalizedChartPath("chart-1", "sw"), Query{}))
}

func TestMostRecentView_SkipsVoided(t *testing.T) {
	r, _, _ := setupRouter(t)
	seedChart(t, r)

	rows := queryAll(t, r, MostRecentPath("p1", "en"), Query{})
	require.Len(t, rows, 2)
	assert.Equal(t, "cond", rows[0].String("concept_uuid"))
	assert.Equal(t, "good", rows[0].String("value"))
	assert.Equal(t, "temp", rows[1].String("concept_uuid"))
	assert.Equal(t, "38.4", rows[1].String("value"))
	assert.Equal(t, int64(2000), rows[1].Int64("encounter_time"))
}

func TestPatientCountsAndLocalizedLocations(t *testing.T) {
	r, _, _ := setupRouter(t)
	ctx := context.Background()

	_, err := r.BulkInsert(ctx, PathLocations, []store.Values{
		{"location_uuid": "root", "parent_uuid": nil},
		{"location_uuid": "tent-1", "parent_uuid": "root"},
	})
	require.NoError(t, err)
	_, err = r.Insert(ctx, LocationNamesPath("tent-1"), store.Values{"locale": "en", "name": "Tent 1"})
	require.NoError(t, err)
	_, err = r.BulkInsert(ctx, PathPatients, []store.Values{
		{"uuid": "p1", "location_uuid": "tent-1"},
		{"uuid": "p2", "location_uuid": "tent-1"},
		{"uuid": "p3", "location_uuid": nil},
	})
	require.NoError(t, err)

	counts := queryAll(t, r, PathPatientCounts, Query{})
	require.Len(t, counts, 1)
	assert.Equal(t, "tent-1", counts[0].String("location_uuid"))
	assert.Equal(t, int64(2), counts[0].Int64("patient_count"))

	locs := queryAll(t, r, JoinPath(PathLocalizedLocations, "en"), Query{})
	require.Len(t, locs, 2)
	assert.Equal(t, "root", locs[0].String("location_uuid"))
	assert.Equal(t, "", locs[0].String("name"))
	assert.Equal(t, int64(0), locs[0].Int64("patient_count"))
	assert.Equal(t, "Tent 1", locs[1].String("name"))
	assert.Equal(t, int64(2), locs[1].Int64("patient_count"))
}

func TestViews_RejectProjectionAndSelection(t *testing.T) {
	r, _, _ := setupRouter(t)
	ctx := context.Background()

	_, err := r.BulkInsert(ctx, PathPatients, []store.Values{
		{"uuid": "p1", "location_uuid": "a"},
		{"uuid": "p2", "location_uuid": "b"},
	})
	require.NoError(t, err)

	for name, q := range map[string]Query{
		"selection":  {Selection: "location_uuid = ?", Args: []any{"a"}},
		"projection": {Projection: []string{"location_uuid"}},
		"ordering":   {SortOrder: "location_uuid"},
		"rank":       {Rank: "location_uuid"},
	} {
		_, err := r.Query(ctx, PathPatientCounts, q)
		assert.True(t, errors.Is(err, ErrViewQuery), name)
	}

	assert.Len(t, queryAll(t, r, PathPatientCounts, Query{}), 2)
}
