package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"wisefido-records/internal/chart"
	"wisefido-records/internal/location"
	"wisefido-records/internal/provider"
	"wisefido-records/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func buildTree(t *testing.T) *location.Tree {
	t.Helper()
	tree, err := location.Build(
		[]location.Location{
			{UUID: "facility"},
			{UUID: location.TriageZoneUUID, ParentUUID: "facility"},
			{UUID: location.ConfirmedZoneUUID, ParentUUID: "facility"},
			{UUID: "tent-1", ParentUUID: location.ConfirmedZoneUUID},
		},
		[]location.NameRow{
			{LocationUUID: "facility", Locale: "en", Name: "Facility"},
			{LocationUUID: location.ConfirmedZoneUUID, Locale: "en", Name: "Confirmed"},
			{LocationUUID: "tent-1", Locale: "en", Name: "Tent 1"},
		},
		map[string]int{location.TriageZoneUUID: 2, "tent-1": 1},
		location.Options{Locale: "en"},
	)
	require.NoError(t, err)
	return tree
}

func TestPrintTree(t *testing.T) {
	tree, err := location.Build(
		[]location.Location{
			{UUID: "facility"},
			{UUID: location.TriageZoneUUID, ParentUUID: "facility"},
		},
		[]location.NameRow{
			{LocationUUID: "facility", Locale: "en", Name: "Facility"},
		},
		map[string]int{location.TriageZoneUUID: 2},
		location.Options{Locale: "en"},
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	printTree(&buf, tree.Root(), "en")
	assert.Equal(t, "Facility (0/2)\n  "+location.TriageZoneUUID+" (2/2)\n", buf.String())
}

func TestPrintGrid(t *testing.T) {
	day := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	dict := chart.NewMapDictionary("en", map[string]string{chart.ConceptTemperature: "Temperature"})
	g, err := chart.NewPivot(dict, chart.Options{Logger: zap.NewNop()}).Build([]chart.Observation{
		{EncounterTime: day.Add(8 * time.Hour), ConceptUUID: chart.ConceptTemperature, Value: "38.4"},
	}, day.Add(20*time.Hour), time.UTC)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printGrid(&buf, g))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"Today", "Today", "PM"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"Temperature", "38.4"}, strings.Fields(lines[1]))
}

func TestPrintNodes(t *testing.T) {
	tree := buildTree(t)

	var buf bytes.Buffer
	printNodes(&buf, tree.Tents(), "en")
	assert.Equal(t, "tent-1 Tent 1 (1)\n", buf.String())
}

func TestPrintPatients(t *testing.T) {
	tree := buildTree(t)

	var buf bytes.Buffer
	require.NoError(t, printPatients(&buf, tree, []location.Patient{
		{UUID: "p1", GivenName: "Ama", FamilyName: "Mensah", LocationUUID: "tent-1"},
		{UUID: "p2", LocationUUID: "elsewhere"},
	}, "en"))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ZONE", "TENT", "PATIENT", "NAME"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"Confirmed", "Tent", "1", "p1", "Ama", "Mensah"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"-", "-", "p2"}, strings.Fields(lines[2]))
}

func TestPrintRoutes(t *testing.T) {
	r := provider.NewRouter(nil, store.SQLite, zap.NewNop())
	require.NoError(t, provider.RegisterDefaults(r))

	var buf bytes.Buffer
	require.NoError(t, printRoutes(&buf, r))

	kinds := map[string][]string{}
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		fields := strings.Fields(line)
		kinds[fields[0]] = fields[1:]
	}
	assert.Len(t, kinds, len(r.Patterns()))
	assert.Equal(t, []string{"collection", "observations"}, kinds[provider.PathObservations])
	assert.Equal(t, []string{"insertable_single_item", "misc"}, kinds[provider.PathMisc])
	assert.Equal(t, []string{"view"}, kinds[provider.PathPatientCounts])
}
