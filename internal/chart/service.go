package chart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wisefido-records/internal/location"
	"wisefido-records/internal/provider"

	"go.uber.org/zap"
)

var ErrPatientNotFound = errors.New("patient not found")

// Trees hands out the current location tree for a locale.
type Trees interface {
	Get(ctx context.Context, locale string) (*location.Tree, error)
}

// Placement is where a patient currently is.
type Placement struct {
	LocationUUID string `json:"location_uuid,omitempty"`
	ZoneUUID     string `json:"zone_uuid,omitempty"`
	ZoneName     string `json:"zone_name,omitempty"`
	TentUUID     string `json:"tent_uuid,omitempty"`
	TentName     string `json:"tent_name,omitempty"`
}

// PatientChart is a patient's grid together with their placement.
type PatientChart struct {
	PatientUUID string
	Locale      string
	Placement   Placement
	Grid        *Grid
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	ChartUUID        string
	Zone             *time.Location
	FallbackConcepts []string
}

// Service builds patient charts from the store.
type Service struct {
	source *Source
	trees  Trees
	cfg    ServiceConfig
	logger *zap.Logger
}

func NewService(source *Source, trees Trees, cfg ServiceConfig, logger *zap.Logger) *Service {
	if cfg.ChartUUID == "" {
		cfg.ChartUUID = DefaultChartUUID
	}
	if cfg.Zone == nil {
		cfg.Zone = time.Local
	}
	return &Service{source: source, trees: trees, cfg: cfg, logger: logger}
}

// Chart pivots the patient's observations as of today.
func (s *Service) Chart(ctx context.Context, patientUUID, locale string, today time.Time) (*PatientChart, error) {
	locationUUID, err := s.patientLocation(ctx, patientUUID)
	if err != nil {
		return nil, err
	}
	pivot, err := s.pivot(ctx, locale)
	if err != nil {
		return nil, err
	}
	obs, err := s.source.Observations(ctx, s.cfg.ChartUUID, locale, patientUUID)
	if err != nil {
		return nil, err
	}
	grid, err := pivot.Build(obs, today, s.cfg.Zone)
	if err != nil {
		return nil, fmt.Errorf("failed to build chart for patient %s: %w", patientUUID, err)
	}
	return &PatientChart{
		PatientUUID: patientUUID,
		Locale:      locale,
		Placement:   s.place(ctx, locale, locationUUID),
		Grid:        grid,
	}, nil
}

// Template pivots the chart layout without any patient, for a blank paper chart.
func (s *Service) Template(ctx context.Context, locale string, today time.Time) (*Grid, error) {
	pivot, err := s.pivot(ctx, locale)
	if err != nil {
		return nil, err
	}
	layout, err := s.source.Layout(ctx, s.cfg.ChartUUID, locale)
	if err != nil {
		return nil, err
	}
	grid, err := pivot.Build(layout, today, s.cfg.Zone)
	if err != nil {
		return nil, fmt.Errorf("failed to build chart template: %w", err)
	}
	return grid, nil
}

// Latest returns the most recent observation per concept for the patient.
func (s *Service) Latest(ctx context.Context, patientUUID, locale string) (map[string]Observation, error) {
	if _, err := s.patientLocation(ctx, patientUUID); err != nil {
		return nil, err
	}
	return s.source.MostRecent(ctx, patientUUID, locale)
}

func (s *Service) pivot(ctx context.Context, locale string) (*Pivot, error) {
	dict, err := s.source.Dictionary(ctx, locale)
	if err != nil {
		return nil, err
	}
	opts := Options{Logger: s.logger, FallbackConcepts: s.cfg.FallbackConcepts}
	if dict.Len() == 0 {
		return NewPivot(nil, opts), nil
	}
	return NewPivot(dict, opts), nil
}

func (s *Service) patientLocation(ctx context.Context, patientUUID string) (string, error) {
	cur, err := s.source.router.Query(ctx, provider.PatientPath(patientUUID), provider.Query{
		Projection: []string{"location_uuid"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to load patient %s: %w", patientUUID, err)
	}
	rows, err := cur.All()
	if err != nil {
		return "", fmt.Errorf("failed to load patient %s: %w", patientUUID, err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("%w: %s", ErrPatientNotFound, patientUUID)
	}
	return rows[0].String("location_uuid"), nil
}

// place resolves zone and tent; a missing tree only leaves them empty.
func (s *Service) place(ctx context.Context, locale, locationUUID string) Placement {
	p := Placement{LocationUUID: locationUUID}
	if locationUUID == "" || s.trees == nil {
		return p
	}
	tree, err := s.trees.Get(ctx, locale)
	if err != nil {
		s.logger.Warn("Location tree unavailable for chart",
			zap.String("locale", locale),
			zap.Error(err))
		return p
	}
	if zone := tree.ZoneOf(locationUUID); zone != nil {
		p.ZoneUUID = zone.UUID()
		p.ZoneName, _ = zone.Name(locale)
	}
	if tent := tree.TentOf(locationUUID); tent != nil {
		p.TentUUID = tent.UUID()
		p.TentName, _ = tent.Name(locale)
	}
	return p
}
