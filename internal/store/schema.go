package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Table describes one record table: its columns, the conflict key used by
// replace-on-conflict writes and an optional text key generated on insert.
// RecordedColumn, when set, receives the Unix time a row was first written
// unless the writer supplies it.
type Table struct {
	Name           string
	Columns        []string
	Key            []string
	GeneratedKey   string
	RecordedColumn string
	ddl            string
}

// HasColumn reports whether col belongs to the table.
func (t Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// IsKey reports whether col is part of the conflict key.
func (t Table) IsKey(col string) bool {
	for _, c := range t.Key {
		if c == col {
			return true
		}
	}
	return false
}

var (
	Patients = Table{
		Name:         "patients",
		Columns:      []string{"uuid", "id", "given_name", "family_name", "location_uuid", "admission_timestamp", "birthdate", "gender"},
		Key:          []string{"uuid"},
		GeneratedKey: "uuid",
		ddl: `CREATE TABLE IF NOT EXISTS patients (
	uuid TEXT PRIMARY KEY,
	id TEXT,
	given_name TEXT,
	family_name TEXT,
	location_uuid TEXT,
	admission_timestamp BIGINT,
	birthdate TEXT,
	gender TEXT
)`,
	}

	Concepts = Table{
		Name:    "concepts",
		Columns: []string{"uuid", "xform_id", "concept_type"},
		Key:     []string{"uuid"},
		ddl: `CREATE TABLE IF NOT EXISTS concepts (
	uuid TEXT PRIMARY KEY,
	xform_id INTEGER,
	concept_type TEXT
)`,
	}

	ConceptNames = Table{
		Name:    "concept_names",
		Columns: []string{"concept_uuid", "locale", "name"},
		Key:     []string{"concept_uuid", "locale"},
		ddl: `CREATE TABLE IF NOT EXISTS concept_names (
	concept_uuid TEXT NOT NULL,
	locale TEXT NOT NULL,
	name TEXT,
	PRIMARY KEY (concept_uuid, locale)
)`,
	}

	Locations = Table{
		Name:         "locations",
		Columns:      []string{"location_uuid", "parent_uuid"},
		Key:          []string{"location_uuid"},
		GeneratedKey: "location_uuid",
		ddl: `CREATE TABLE IF NOT EXISTS locations (
	location_uuid TEXT PRIMARY KEY,
	parent_uuid TEXT
)`,
	}

	LocationNames = Table{
		Name:    "location_names",
		Columns: []string{"location_uuid", "locale", "name"},
		Key:     []string{"location_uuid", "locale"},
		ddl: `CREATE TABLE IF NOT EXISTS location_names (
	location_uuid TEXT NOT NULL,
	locale TEXT NOT NULL,
	name TEXT,
	PRIMARY KEY (location_uuid, locale)
)`,
	}

	Observations = Table{
		Name:           "observations",
		Columns:        []string{"patient_uuid", "encounter_uuid", "encounter_time", "concept_uuid", "value", "voided", "recorded_time"},
		Key:            []string{"patient_uuid", "encounter_uuid", "concept_uuid"},
		RecordedColumn: "recorded_time",
		ddl: `CREATE TABLE IF NOT EXISTS observations (
	patient_uuid TEXT NOT NULL,
	encounter_uuid TEXT NOT NULL,
	encounter_time BIGINT NOT NULL,
	concept_uuid TEXT NOT NULL,
	value TEXT,
	voided INTEGER NOT NULL DEFAULT 0,
	recorded_time BIGINT,
	PRIMARY KEY (patient_uuid, encounter_uuid, concept_uuid)
)`,
	}

	Charts = Table{
		Name:    "charts",
		Columns: []string{"chart_uuid", "chart_row", "group_uuid", "concept_uuid"},
		Key:     []string{"chart_uuid", "concept_uuid"},
		ddl: `CREATE TABLE IF NOT EXISTS charts (
	chart_uuid TEXT NOT NULL,
	chart_row INTEGER NOT NULL,
	group_uuid TEXT,
	concept_uuid TEXT NOT NULL,
	PRIMARY KEY (chart_uuid, concept_uuid)
)`,
	}

	Users = Table{
		Name:         "users",
		Columns:      []string{"uuid", "full_name"},
		Key:          []string{"uuid"},
		GeneratedKey: "uuid",
		ddl: `CREATE TABLE IF NOT EXISTS users (
	uuid TEXT PRIMARY KEY,
	full_name TEXT
)`,
	}

	// Misc holds the single sync bookkeeping row.
	Misc = Table{
		Name:    "misc",
		Columns: []string{"id", "full_sync_start_time", "full_sync_end_time", "obs_sync_time"},
		Key:     []string{"id"},
		ddl: `CREATE TABLE IF NOT EXISTS misc (
	id INTEGER PRIMARY KEY,
	full_sync_start_time BIGINT,
	full_sync_end_time BIGINT,
	obs_sync_time BIGINT
)`,
	}
)

// Tables lists every record table in creation order.
func Tables() []Table {
	return []Table{Patients, Concepts, ConceptNames, Locations, LocationNames, Observations, Charts, Users, Misc}
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_observations_patient_concept ON observations (patient_uuid, concept_uuid, encounter_time)`,
	`CREATE INDEX IF NOT EXISTS idx_patients_location ON patients (location_uuid)`,
	`CREATE INDEX IF NOT EXISTS idx_locations_parent ON locations (parent_uuid)`,
	`CREATE INDEX IF NOT EXISTS idx_observations_recorded ON observations (recorded_time)`,
}

// addedColumns were introduced after their table first shipped.
var addedColumns = []struct {
	table  string
	column string
}{
	{"observations", "recorded_time BIGINT"},
}

// Migrate creates the record tables and indexes when absent and adds
// columns missing from tables created by older releases.
func Migrate(ctx context.Context, db *sql.DB) error {
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, t := range Tables() {
			if _, err := tx.ExecContext(ctx, t.ddl); err != nil {
				return fmt.Errorf("failed to create table %s: %w", t.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := addColumns(ctx, db); err != nil {
		return err
	}
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, stmt := range indexes {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create index: %w", err)
			}
		}
		return nil
	})
}

// addColumns checks each added column outside a transaction, since a failed
// statement aborts a PostgreSQL transaction.
func addColumns(ctx context.Context, db *sql.DB) error {
	for _, c := range addedColumns {
		name, _, _ := strings.Cut(c.column, " ")
		rows, err := db.QueryContext(ctx, "SELECT "+name+" FROM "+c.table+" LIMIT 0")
		if err == nil {
			rows.Close()
			continue
		}
		if _, err := db.ExecContext(ctx, "ALTER TABLE "+c.table+" ADD COLUMN "+c.column); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", c.table, name, err)
		}
	}
	return nil
}

// Truncate removes every row from every record table.
func Truncate(ctx context.Context, db *sql.DB) error {
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, t := range Tables() {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t.Name); err != nil {
				return fmt.Errorf("failed to clear table %s: %w", t.Name, err)
			}
		}
		return nil
	})
}
