package provider

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"wisefido-records/internal/common/config"
	"wisefido-records/internal/common/database"
	"wisefido-records/internal/notify"
	"wisefido-records/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type notifications struct {
	paths []string
}

func (n *notifications) Notify(path string) { n.paths = append(n.paths, path) }

func setupRouter(t *testing.T) (*Router, *sql.DB, *notifications) {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{Driver: config.DriverSQLite})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.Migrate(context.Background(), db))

	rec := &notifications{}
	r := NewRouter(db, store.SQLite, zap.NewNop(), WithNotifier(rec))
	require.NoError(t, RegisterDefaults(r))
	return r, db, rec
}

func queryAll(t *testing.T, r *Router, path string, q Query) []store.Row {
	t.Helper()
	cur, err := r.Query(context.Background(), path, q)
	require.NoError(t, err)
	rows, err := cur.All()
	require.NoError(t, err)
	return rows
}

func TestRegister_RejectsDuplicateAndOverlappingPatterns(t *testing.T) {
	r := NewRouter(nil, store.SQLite, zap.NewNop())
	require.NoError(t, r.Register("/locations", Collection(store.Locations)))

	err := r.Register("locations/", Collection(store.Locations))
	assert.True(t, errors.Is(err, ErrDuplicateRegistration))

	require.NoError(t, r.Register("/locations/*", Item(store.Locations, "location_uuid")))
	err = r.Register("//locations//abc", Item(store.Locations, "location_uuid"))
	assert.True(t, errors.Is(err, ErrDuplicateRegistration))
	err = r.Register("/locations/abc", Collection(store.Locations))
	assert.True(t, errors.Is(err, ErrDuplicateRegistration))

	err = r.Register("/patients", Item(store.Patients, "uuid"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicateRegistration))

	assert.Error(t, r.Register("/broken", View(nil)))
	assert.Equal(t, []string{"/locations", "/locations/*"}, r.Patterns())
}

func TestResolve(t *testing.T) {
	r := NewRouter(nil, store.SQLite, zap.NewNop())
	require.NoError(t, RegisterDefaults(r))

	m, err := r.Resolve("/localized-charts/chart-1/en/patient-9/")
	require.NoError(t, err)
	assert.Equal(t, "/localized-charts/*/*/*", m.Pattern)
	assert.Equal(t, "/localized-charts/chart-1/en/patient-9", m.Path)
	assert.Equal(t, []string{"chart-1", "en", "patient-9"}, m.Params)
	assert.Equal(t, KindView, m.Delegate.Kind())

	m, err = r.Resolve("/locations/loc-1")
	require.NoError(t, err)
	assert.Equal(t, KindItem, m.Delegate.Kind())
	assert.Equal(t, "loc-1", m.ID())

	_, err = r.Resolve("/encounters")
	assert.True(t, errors.Is(err, ErrNoMatchingDelegate))
	_, err = r.Resolve("/locations/loc-1/children")
	assert.True(t, errors.Is(err, ErrNoMatchingDelegate))
}

func TestCollectionInsert_ReplacesOnConflictAndNotifies(t *testing.T) {
	r, _, rec := setupRouter(t)
	ctx := context.Background()

	id, err := r.Insert(ctx, PathLocations, store.Values{"location_uuid": "loc-1", "parent_uuid": "root"})
	require.NoError(t, err)
	assert.Equal(t, "/locations/loc-1", id.String())

	_, err = r.Insert(ctx, PathLocations, store.Values{"location_uuid": "loc-1", "parent_uuid": "zone-2"})
	require.NoError(t, err)

	rows := queryAll(t, r, PathLocations, Query{})
	require.Len(t, rows, 1)
	assert.Equal(t, "zone-2", rows[0].String("parent_uuid"))
	assert.Equal(t, []string{"/locations", "/locations"}, rec.paths)
}

func TestCollectionInsert_GeneratesMissingKey(t *testing.T) {
	r, _, _ := setupRouter(t)

	id, err := r.Insert(context.Background(), PathPatients, store.Values{"given_name": "Ama", "location_uuid": "tent-1"})
	require.NoError(t, err)
	require.Len(t, id.Key, 36)

	rows := queryAll(t, r, PatientPath(id.Key), Query{Projection: []string{"uuid", "given_name"}})
	require.Len(t, rows, 1)
	assert.Equal(t, "Ama", rows[0].String("given_name"))
}

func TestBulkInsert_ReplaceOnConflictAppliesEveryRow(t *testing.T) {
	r, _, rec := setupRouter(t)
	ctx := context.Background()

	var batch []store.Values
	for _, enc := range []string{"e1", "e2", "e3", "e4", "e5"} {
		batch = append(batch, store.Values{
			"patient_uuid": "p1", "encounter_uuid": enc, "concept_uuid": "temp",
			"encounter_time": int64(1000), "value": "37.0",
		})
	}
	// collides with e3 on the primary key; replace-on-conflict keeps the last row
	batch = append(batch, store.Values{
		"patient_uuid": "p1", "encounter_uuid": "e3", "concept_uuid": "temp",
		"encounter_time": int64(2000), "value": "39.1",
	})

	n, err := r.BulkInsert(ctx, PathObservations, batch)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	rows := queryAll(t, r, PathObservations, Query{Selection: "encounter_uuid = ?", Args: []any{"e3"}})
	require.Len(t, rows, 1)
	assert.Equal(t, "39.1", rows[0].String("value"))
	assert.Len(t, queryAll(t, r, PathObservations, Query{}), 5)
	assert.Equal(t, []string{"/observations"}, rec.paths)
}

func TestBulkInsert_FailureAppliesNothing(t *testing.T) {
	r, _, rec := setupRouter(t)
	ctx := context.Background()

	batch := []store.Values{
		{"patient_uuid": "p1", "encounter_uuid": "e1", "concept_uuid": "temp", "encounter_time": int64(1), "value": "37"},
		{"patient_uuid": "p1", "encounter_uuid": "e2", "concept_uuid": "temp", "encounter_time": int64(2), "value": "38"},
		{"patient_uuid": "p1", "encounter_uuid": "e3", "concept_uuid": "temp", "encounter_time": nil, "value": "39"},
	}
	_, err := r.BulkInsert(ctx, PathObservations, batch)
	require.Error(t, err)

	assert.Empty(t, queryAll(t, r, PathObservations, Query{}))
	assert.Empty(t, rec.paths)
}

func TestInsert_StampsRecordedTime(t *testing.T) {
	db, err := database.Open(&config.DatabaseConfig{Driver: config.DriverSQLite})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, store.Migrate(context.Background(), db))

	clock := time.Unix(1760000000, 0)
	r := NewRouter(db, store.SQLite, zap.NewNop(), WithClock(func() time.Time { return clock }))
	require.NoError(t, RegisterDefaults(r))
	ctx := context.Background()

	obs := func(enc string) store.Values {
		return store.Values{"patient_uuid": "p1", "encounter_uuid": enc, "concept_uuid": "temp", "encounter_time": int64(100), "value": "37.0"}
	}
	_, err = r.Insert(ctx, PathObservations, obs("e1"))
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	copied := obs("e2")
	copied["recorded_time"] = int64(42)
	_, err = r.BulkInsert(ctx, PathObservations, []store.Values{obs("e3"), copied})
	require.NoError(t, err)

	recorded := map[string]int64{}
	for _, row := range queryAll(t, r, PathObservations, Query{}) {
		recorded[row.String("encounter_uuid")] = row.Int64("recorded_time")
	}
	assert.Equal(t, map[string]int64{"e1": 1760000000, "e2": 42, "e3": 1760003600}, recorded)

	// tables without a recorded column are written as given
	_, err = r.Insert(ctx, PathPatients, store.Values{"uuid": "p1"})
	require.NoError(t, err)
}

func TestBulkInsert_EmptyBatchDoesNotNotify(t *testing.T) {
	r, _, rec := setupRouter(t)

	n, err := r.BulkInsert(context.Background(), PathObservations, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = r.BulkInsert(context.Background(), PathObservations, []store.Values{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, rec.paths)
}

func TestBulkInsert_RejectsMixedColumns(t *testing.T) {
	r, _, _ := setupRouter(t)

	_, err := r.BulkInsert(context.Background(), PathLocations, []store.Values{
		{"location_uuid": "a", "parent_uuid": nil},
		{"location_uuid": "b"},
	})
	assert.True(t, errors.Is(err, ErrMixedColumns))
	assert.Empty(t, queryAll(t, r, PathLocations, Query{}))
}

func TestItemDelegate_ScopesToPathIdentifier(t *testing.T) {
	r, _, rec := setupRouter(t)
	ctx := context.Background()

	_, err := r.BulkInsert(ctx, PathLocations, []store.Values{
		{"location_uuid": "root", "parent_uuid": nil},
		{"location_uuid": "zone-1", "parent_uuid": "root"},
		{"location_uuid": "zone-2", "parent_uuid": "root"},
	})
	require.NoError(t, err)

	rows := queryAll(t, r, LocationPath("zone-1"), Query{})
	require.Len(t, rows, 1)
	assert.Equal(t, "zone-1", rows[0].String("location_uuid"))

	n, err := r.Update(ctx, LocationPath("zone-1"), store.Values{"parent_uuid": "zone-2"}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.Delete(ctx, LocationPath("zone-2"), "parent_uuid = ?", "nowhere")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = r.Delete(ctx, LocationPath("zone-2"), "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = r.Insert(ctx, LocationPath("zone-3"), store.Values{"parent_uuid": "root"})
	var unsupportedErr *UnsupportedOperationError
	require.True(t, errors.As(err, &unsupportedErr))
	assert.Equal(t, OpInsert, unsupportedErr.Op)
	assert.Equal(t, "/locations/zone-3", unsupportedErr.Path)

	_, err = r.BulkInsert(ctx, LocationPath("zone-3"), []store.Values{{"parent_uuid": "root"}})
	assert.True(t, errors.Is(err, ErrUnsupportedOperation))

	assert.Equal(t, []string{"/locations", "/locations/zone-1", "/locations/zone-2", "/locations/zone-2"}, rec.paths)
}

func TestInsertableItem_UpdatesThenInserts(t *testing.T) {
	r, _, _ := setupRouter(t)
	ctx := context.Background()
	path := LocationNamesPath("tent-1")

	id, err := r.Insert(ctx, path, store.Values{"locale": "en", "name": "Tent 1"})
	require.NoError(t, err)
	assert.Equal(t, "/location-names/tent-1", id.String())

	_, err = r.Insert(ctx, path, store.Values{"locale": "fr", "name": "Tente 1"})
	require.NoError(t, err)

	// existing row: only the supplied column changes
	_, err = r.Insert(ctx, path, store.Values{"locale": "en", "name": "Tent One"})
	require.NoError(t, err)

	rows := queryAll(t, r, path, Query{SortOrder: "locale"})
	require.Len(t, rows, 2)
	assert.Equal(t, "Tent One", rows[0].String("name"))
	assert.Equal(t, "Tente 1", rows[1].String("name"))

	// key-only values: an existing row is left as is
	_, err = r.Insert(ctx, path, store.Values{"locale": "fr"})
	require.NoError(t, err)
	rows = queryAll(t, r, path, Query{Selection: "locale = ?", Args: []any{"fr"}})
	require.Len(t, rows, 1)
	assert.Equal(t, "Tente 1", rows[0].String("name"))
}

func TestInsertableSingleItem_MiscRow(t *testing.T) {
	r, _, _ := setupRouter(t)
	ctx := context.Background()

	_, err := r.Insert(ctx, PathMisc, store.Values{"full_sync_start_time": int64(100)})
	require.NoError(t, err)
	_, err = r.Insert(ctx, PathMisc, store.Values{"full_sync_end_time": int64(200)})
	require.NoError(t, err)

	rows := queryAll(t, r, PathMisc, Query{})
	require.Len(t, rows, 1)
	assert.Equal(t, int64(MiscRowID), rows[0].Int64("id"))
	assert.Equal(t, int64(100), rows[0].Int64("full_sync_start_time"))
	assert.Equal(t, int64(200), rows[0].Int64("full_sync_end_time"))

	_, err = r.BulkInsert(ctx, PathMisc, []store.Values{{"obs_sync_time": int64(1)}})
	assert.True(t, errors.Is(err, ErrUnsupportedOperation))
}

func TestViewDelegate_RejectsMutations(t *testing.T) {
	r, _, rec := setupRouter(t)
	ctx := context.Background()

	_, err := r.Insert(ctx, PathPatientCounts, store.Values{"location_uuid": "x"})
	assert.True(t, errors.Is(err, ErrUnsupportedOperation))
	_, err = r.BulkInsert(ctx, PathPatientCounts, nil)
	assert.True(t, errors.Is(err, ErrUnsupportedOperation))
	_, err = r.Update(ctx, PathPatientCounts, store.Values{"location_uuid": "x"}, "")
	assert.True(t, errors.Is(err, ErrUnsupportedOperation))
	_, err = r.Delete(ctx, PathPatientCounts, "")
	var unsupportedErr *UnsupportedOperationError
	require.True(t, errors.As(err, &unsupportedErr))
	assert.Equal(t, OpDelete, unsupportedErr.Op)
	assert.Equal(t, "unsupported operation delete on /patient-counts", unsupportedErr.Error())

	assert.Empty(t, rec.paths)
}

func TestQuery_RejectsUnknownColumns(t *testing.T) {
	r, _, _ := setupRouter(t)
	_, err := r.Query(context.Background(), PathLocations, Query{Projection: []string{"secret"}})
	assert.True(t, errors.Is(err, store.ErrUnknownColumn))

	_, err = r.Insert(context.Background(), PathLocations, store.Values{"location_uuid": "a", "secret": 1})
	assert.True(t, errors.Is(err, store.ErrUnknownColumn))
}

func TestQuery_RankOrdersBeforeSortOrder(t *testing.T) {
	r, _, _ := setupRouter(t)
	_, err := r.BulkInsert(context.Background(), PathPatients, []store.Values{
		{"uuid": "p1", "location_uuid": "tent-b"},
		{"uuid": "p2", "location_uuid": "tent-a"},
		{"uuid": "p3", "location_uuid": "tent-b"},
		{"uuid": "p4", "location_uuid": "tent-z"},
	})
	require.NoError(t, err)

	rows := queryAll(t, r, PathPatients, Query{
		Rank:      "CASE location_uuid WHEN 'tent-b' THEN 0 WHEN 'tent-a' THEN 1 ELSE 2 END",
		SortOrder: "uuid DESC",
	})
	var got []string
	for _, row := range rows {
		got = append(got, row.String("uuid"))
	}
	assert.Equal(t, []string{"p3", "p1", "p2", "p4"}, got)
}

func TestRouter_HubSubscribersSeeMutations(t *testing.T) {
	db, err := database.Open(&config.DatabaseConfig{})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, store.Migrate(context.Background(), db))

	hub := notify.NewHub(zap.NewNop())
	changes, cancel := hub.Subscribe(8, PathPatients)
	defer cancel()

	r := NewRouter(db, store.SQLite, zap.NewNop(), WithNotifier(hub))
	require.NoError(t, RegisterDefaults(r))

	_, err = r.Insert(context.Background(), PathPatients, store.Values{"uuid": "p1", "given_name": "Kofi"})
	require.NoError(t, err)

	change := <-changes
	assert.Equal(t, "/patients", change.Path)
}
