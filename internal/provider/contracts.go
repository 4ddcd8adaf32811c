package provider

import "wisefido-records/internal/store"

// Resource paths.
const (
	PathCharts               = "/charts"
	PathConcepts             = "/concepts"
	PathConceptNames         = "/concept-names"
	PathLocations            = "/locations"
	PathLocationNames        = "/location-names"
	PathObservations         = "/observations"
	PathPatients             = "/patients"
	PathUsers                = "/users"
	PathMisc                 = "/misc"
	PathPatientCounts        = "/patient-counts"
	PathLocalizedCharts      = "/localized-charts"
	PathEmptyLocalizedCharts = "/empty-localized-charts"
	PathMostRecentCharts     = "/most-recent-localized-charts"
	PathLocalizedLocations   = "/localized-locations"
)

// MiscRowID is the id of the single sync bookkeeping row.
const MiscRowID = 1

// RegisterDefaults binds every record resource and computed view.
func RegisterDefaults(r *Router) error {
	registrations := []struct {
		path     string
		delegate Delegate
	}{
		{PathCharts, Collection(store.Charts)},
		{PathConcepts, Collection(store.Concepts)},
		{PathConceptNames, Collection(store.ConceptNames)},
		{PathLocations, Collection(store.Locations)},
		{PathLocations + "/*", Item(store.Locations, "location_uuid")},
		{PathLocationNames, Collection(store.LocationNames)},
		{PathLocationNames + "/*", InsertableItem(store.LocationNames, "location_uuid")},
		{PathObservations, Collection(store.Observations)},
		{PathPatients, Collection(store.Patients)},
		{PathPatients + "/*", Item(store.Patients, "uuid")},
		{PathUsers, Collection(store.Users)},
		{PathUsers + "/*", Item(store.Users, "uuid")},
		{PathMisc, InsertableSingleItem(store.Misc, "id", MiscRowID)},
		{PathPatientCounts, View(PatientCountsView)},
		{PathLocalizedCharts + "/*/*/*", View(LocalizedChartView)},
		{PathEmptyLocalizedCharts + "/*/*", View(EmptyLocalizedChartView)},
		{PathMostRecentCharts + "/*/*", View(MostRecentView)},
		{PathLocalizedLocations + "/*", View(LocalizedLocationsView)},
	}
	for _, reg := range registrations {
		if err := r.Register(reg.path, reg.delegate); err != nil {
			return err
		}
	}
	return nil
}

// LocationPath addresses one location.
func LocationPath(uuid string) string { return JoinPath(PathLocations, uuid) }

// LocationNamesPath addresses the names of one location.
func LocationNamesPath(uuid string) string { return JoinPath(PathLocationNames, uuid) }

// PatientPath addresses one patient.
func PatientPath(uuid string) string { return JoinPath(PathPatients, uuid) }

// LocalizedChartPath addresses a patient's chart in locale.
func LocalizedChartPath(chart, locale, patient string) string {
	return JoinPath(PathLocalizedCharts, chart, locale, patient)
}

// EmptyLocalizedChartPath addresses a chart layout without observations.
func EmptyLocalizedChartPath(chart, locale string) string {
	return JoinPath(PathEmptyLocalizedCharts, chart, locale)
}

// MostRecentPath addresses the latest observation per concept of a patient.
func MostRecentPath(patient, locale string) string {
	return JoinPath(PathMostRecentCharts, patient, locale)
}
