package chart

import (
	"context"
	"fmt"
	"time"

	"wisefido-records/internal/provider"
	"wisefido-records/internal/store"

	"go.uber.org/zap"
)

// Querier is the read side of the resource router.
type Querier interface {
	Query(ctx context.Context, path string, q provider.Query) (*store.Cursor, error)
}

// Source reads charts and concept names through the router.
type Source struct {
	router Querier
	logger *zap.Logger
}

func NewSource(router Querier, logger *zap.Logger) *Source {
	return &Source{router: router, logger: logger}
}

// Dictionary loads every concept name recorded for locale.
func (s *Source) Dictionary(ctx context.Context, locale string) (*MapDictionary, error) {
	rows, err := s.queryAll(ctx, provider.PathConceptNames, provider.Query{
		Projection: []string{"concept_uuid", "name"},
		Selection:  "locale = ?",
		Args:       []any{locale},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load concept names: %w", err)
	}
	names := make(map[string]string, len(rows))
	for _, r := range rows {
		names[r.String("concept_uuid")] = r.String("name")
	}
	return NewMapDictionary(locale, names), nil
}

// Observations loads the patient's chart in chart row, then encounter order.
func (s *Source) Observations(ctx context.Context, chartUUID, locale, patientUUID string) ([]Observation, error) {
	rows, err := s.queryAll(ctx, provider.LocalizedChartPath(chartUUID, locale, patientUUID), provider.Query{})
	if err != nil {
		return nil, fmt.Errorf("failed to load chart %s: %w", chartUUID, err)
	}
	out := make([]Observation, 0, len(rows))
	for _, r := range rows {
		o := observationFromRow(r)
		o.PatientUUID = patientUUID
		out = append(out, o)
	}
	return out, nil
}

// Layout loads the chart's concepts without observations.
func (s *Source) Layout(ctx context.Context, chartUUID, locale string) ([]Observation, error) {
	rows, err := s.queryAll(ctx, provider.EmptyLocalizedChartPath(chartUUID, locale), provider.Query{})
	if err != nil {
		return nil, fmt.Errorf("failed to load chart layout %s: %w", chartUUID, err)
	}
	out := make([]Observation, 0, len(rows))
	for _, r := range rows {
		out = append(out, observationFromRow(r))
	}
	return out, nil
}

// MostRecent loads the latest observation of each concept for the patient.
func (s *Source) MostRecent(ctx context.Context, patientUUID, locale string) (map[string]Observation, error) {
	rows, err := s.queryAll(ctx, provider.MostRecentPath(patientUUID, locale), provider.Query{})
	if err != nil {
		return nil, fmt.Errorf("failed to load latest observations: %w", err)
	}
	out := make(map[string]Observation, len(rows))
	for _, r := range rows {
		o := observationFromRow(r)
		o.PatientUUID = patientUUID
		if _, seen := out[o.ConceptUUID]; !seen {
			out[o.ConceptUUID] = o
		}
	}
	return out, nil
}

func (s *Source) queryAll(ctx context.Context, path string, q provider.Query) ([]store.Row, error) {
	cur, err := s.router.Query(ctx, path, q)
	if err != nil {
		return nil, err
	}
	return cur.All()
}

// Encounter times are stored as Unix seconds.
func observationFromRow(r store.Row) Observation {
	o := Observation{
		EncounterUUID:  r.String("encounter_uuid"),
		ConceptUUID:    r.String("concept_uuid"),
		ConceptName:    r.String("concept_name"),
		GroupUUID:      r.String("group_uuid"),
		GroupName:      r.String("group_name"),
		Value:          r.String("value"),
		LocalizedValue: r.String("localized_value"),
	}
	if !r.IsNull("encounter_time") {
		o.EncounterTime = time.Unix(r.Int64("encounter_time"), 0)
	}
	return o
}
