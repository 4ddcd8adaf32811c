package location

import (
	"context"
	"fmt"

	"wisefido-records/internal/provider"
	"wisefido-records/internal/store"

	"go.uber.org/zap"
)

// Querier is the read side of the resource router.
type Querier interface {
	Query(ctx context.Context, path string, q provider.Query) (*store.Cursor, error)
}

// Loader scans the location tables through the router and builds trees.
type Loader struct {
	router Querier
	logger *zap.Logger
}

func NewLoader(router Querier, logger *zap.Logger) *Loader {
	return &Loader{router: router, logger: logger}
}

// Load scans locations, names and patient counts, then builds the tree for locale.
func (l *Loader) Load(ctx context.Context, locale string) (*Tree, error) {
	locations, err := l.scanLocations(ctx)
	if err != nil {
		return nil, &LocationFetchError{Err: err}
	}
	names, err := l.scanNames(ctx)
	if err != nil {
		return nil, &LocationNameFetchError{Err: err}
	}
	counts, err := l.scanCounts(ctx)
	if err != nil {
		return nil, &LocationFetchError{Err: fmt.Errorf("patient counts: %w", err)}
	}
	return Build(locations, names, counts, Options{Locale: locale, Logger: l.logger})
}

func (l *Loader) scanLocations(ctx context.Context) ([]Location, error) {
	rows, err := l.queryAll(ctx, provider.PathLocations, provider.Query{
		Projection: []string{"location_uuid", "parent_uuid"},
	})
	if err != nil {
		return nil, err
	}
	out := make([]Location, 0, len(rows))
	for _, r := range rows {
		out = append(out, Location{UUID: r.String("location_uuid"), ParentUUID: r.String("parent_uuid")})
	}
	return out, nil
}

func (l *Loader) scanNames(ctx context.Context) ([]NameRow, error) {
	rows, err := l.queryAll(ctx, provider.PathLocationNames, provider.Query{
		Projection: []string{"location_uuid", "locale", "name"},
	})
	if err != nil {
		return nil, err
	}
	out := make([]NameRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, NameRow{
			LocationUUID: r.String("location_uuid"),
			Locale:       r.String("locale"),
			Name:         r.String("name"),
		})
	}
	return out, nil
}

func (l *Loader) scanCounts(ctx context.Context) (map[string]int, error) {
	rows, err := l.queryAll(ctx, provider.PathPatientCounts, provider.Query{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.String("location_uuid")] = int(r.Int64("patient_count"))
	}
	return out, nil
}

// Patient is a patient row with its assigned location.
type Patient struct {
	UUID         string
	GivenName    string
	FamilyName   string
	LocationUUID string
}

// Patients lists every patient ordered by the position of their location in
// tree, then by name. Patients without a known location come last.
func (l *Loader) Patients(ctx context.Context, tree *Tree) ([]Patient, error) {
	rows, err := l.queryAll(ctx, provider.PathPatients, provider.Query{
		Projection: []string{"uuid", "given_name", "family_name", "location_uuid"},
		Rank:       tree.SortClause("location_uuid"),
		SortOrder:  "family_name, given_name, uuid",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load patients: %w", err)
	}
	out := make([]Patient, 0, len(rows))
	for _, r := range rows {
		out = append(out, Patient{
			UUID:         r.String("uuid"),
			GivenName:    r.String("given_name"),
			FamilyName:   r.String("family_name"),
			LocationUUID: r.String("location_uuid"),
		})
	}
	return out, nil
}

func (l *Loader) queryAll(ctx context.Context, path string, q provider.Query) ([]store.Row, error) {
	cur, err := l.router.Query(ctx, path, q)
	if err != nil {
		return nil, err
	}
	return cur.All()
}
