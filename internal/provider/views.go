package provider

import (
	"context"
	"fmt"

	"wisefido-records/internal/store"
)

const patientCountsSQL = `
	SELECT location_uuid, COUNT(*) AS patient_count
	FROM patients
	WHERE location_uuid IS NOT NULL
	GROUP BY location_uuid`

// Chart rows joined with the patient's observations; chart concepts without
// observations still produce one row with NULL observation columns.
const localizedChartSQL = `
	SELECT
		ch.chart_row,
		ch.concept_uuid,
		cn.name AS concept_name,
		ch.group_uuid,
		gn.name AS group_name,
		o.encounter_uuid,
		o.encounter_time,
		o.value,
		vn.name AS localized_value
	FROM charts ch
	INNER JOIN concept_names cn ON cn.concept_uuid = ch.concept_uuid AND cn.locale = ?
	LEFT JOIN concept_names gn ON gn.concept_uuid = ch.group_uuid AND gn.locale = ?
	LEFT JOIN observations o ON o.concept_uuid = ch.concept_uuid AND o.patient_uuid = ? AND o.voided = 0
	LEFT JOIN concept_names vn ON vn.concept_uuid = o.value AND vn.locale = ?
	WHERE ch.chart_uuid = ?
	ORDER BY ch.chart_row, o.encounter_time, o.encounter_uuid`

const emptyLocalizedChartSQL = `
	SELECT
		ch.chart_row,
		ch.concept_uuid,
		cn.name AS concept_name,
		ch.group_uuid,
		gn.name AS group_name
	FROM charts ch
	INNER JOIN concept_names cn ON cn.concept_uuid = ch.concept_uuid AND cn.locale = ?
	LEFT JOIN concept_names gn ON gn.concept_uuid = ch.group_uuid AND gn.locale = ?
	WHERE ch.chart_uuid = ?
	ORDER BY ch.chart_row`

// Latest non-voided observation per concept for one patient.
const mostRecentSQL = `
	SELECT
		o.concept_uuid,
		cn.name AS concept_name,
		o.encounter_uuid,
		o.encounter_time,
		o.value,
		vn.name AS localized_value
	FROM observations o
	INNER JOIN (
		SELECT concept_uuid, MAX(encounter_time) AS max_time
		FROM observations
		WHERE patient_uuid = ? AND voided = 0
		GROUP BY concept_uuid
	) latest ON latest.concept_uuid = o.concept_uuid AND latest.max_time = o.encounter_time
	LEFT JOIN concept_names cn ON cn.concept_uuid = o.concept_uuid AND cn.locale = ?
	LEFT JOIN concept_names vn ON vn.concept_uuid = o.value AND vn.locale = ?
	WHERE o.patient_uuid = ? AND o.voided = 0
	ORDER BY o.concept_uuid, o.encounter_uuid`

const localizedLocationsSQL = `
	SELECT
		l.location_uuid,
		l.parent_uuid,
		ln.name,
		COALESCE(pc.patient_count, 0) AS patient_count
	FROM locations l
	LEFT JOIN location_names ln ON ln.location_uuid = l.location_uuid AND ln.locale = ?
	LEFT JOIN (
		SELECT location_uuid, COUNT(*) AS patient_count
		FROM patients
		WHERE location_uuid IS NOT NULL
		GROUP BY location_uuid
	) pc ON pc.location_uuid = l.location_uuid
	ORDER BY l.location_uuid`

// PatientCountsView counts patients per assigned location.
func PatientCountsView(ctx context.Context, v ViewContext) (*store.Cursor, error) {
	return runView(ctx, v, "patient counts", patientCountsSQL)
}

// LocalizedChartView params: chart uuid, locale, patient uuid.
func LocalizedChartView(ctx context.Context, v ViewContext) (*store.Cursor, error) {
	chart, locale, patient := v.Params[0], v.Params[1], v.Params[2]
	return runView(ctx, v, "localized chart", localizedChartSQL, locale, locale, patient, locale, chart)
}

// EmptyLocalizedChartView params: chart uuid, locale.
func EmptyLocalizedChartView(ctx context.Context, v ViewContext) (*store.Cursor, error) {
	chart, locale := v.Params[0], v.Params[1]
	return runView(ctx, v, "empty localized chart", emptyLocalizedChartSQL, locale, locale, chart)
}

// MostRecentView params: patient uuid, locale.
func MostRecentView(ctx context.Context, v ViewContext) (*store.Cursor, error) {
	patient, locale := v.Params[0], v.Params[1]
	return runView(ctx, v, "most recent observations", mostRecentSQL, patient, locale, locale, patient)
}

// LocalizedLocationsView params: locale.
func LocalizedLocationsView(ctx context.Context, v ViewContext) (*store.Cursor, error) {
	return runView(ctx, v, "localized locations", localizedLocationsSQL, v.Params[0])
}

func runView(ctx context.Context, v ViewContext, name, query string, args ...any) (*store.Cursor, error) {
	rows, err := v.DB.QueryContext(ctx, v.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", name, err)
	}
	return store.NewCursor(rows)
}
