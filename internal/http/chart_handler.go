package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"wisefido-records/internal/chart"
	"wisefido-records/internal/export"

	"go.uber.org/zap"
)

// Charts builds patient charts.
type Charts interface {
	Chart(ctx context.Context, patientUUID, locale string, today time.Time) (*chart.PatientChart, error)
	Latest(ctx context.Context, patientUUID, locale string) (map[string]chart.Observation, error)
}

type ChartHandler struct {
	charts        Charts
	defaultLocale string
	zone          *time.Location
	now           func() time.Time
	logger        *zap.Logger
}

// NewChartHandler reads date-only ?today= values in zone.
func NewChartHandler(charts Charts, defaultLocale string, zone *time.Location, logger *zap.Logger) *ChartHandler {
	if zone == nil {
		zone = time.Local
	}
	return &ChartHandler{charts: charts, defaultLocale: defaultLocale, zone: zone, now: time.Now, logger: logger}
}

type columnJSON struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Offset int    `json:"offset"`
}

type cellJSON struct {
	Column    string     `json:"column"`
	Hint      chart.Hint `json:"hint,omitempty"`
	Text      string     `json:"text,omitempty"`
	HasDetail bool       `json:"has_detail,omitempty"`
	Detail    string     `json:"detail,omitempty"`
}

type rowJSON struct {
	ConceptUUID string     `json:"concept_uuid"`
	Label       string     `json:"label"`
	Severity    string     `json:"severity,omitempty"`
	Cells       []cellJSON `json:"cells"`
}

type chartJSON struct {
	PatientUUID string          `json:"patient_uuid"`
	Locale      string          `json:"locale"`
	Today       string          `json:"today"`
	Placement   chart.Placement `json:"placement"`
	Columns     []columnJSON    `json:"columns"`
	Rows        []rowJSON       `json:"rows"`
}

type observationJSON struct {
	EncounterUUID  string    `json:"encounter_uuid"`
	EncounterTime  time.Time `json:"encounter_time"`
	ConceptName    string    `json:"concept_name"`
	Value          string    `json:"value"`
	LocalizedValue string    `json:"localized_value,omitempty"`
}

// ServePatient handles:
//
//	GET /patients/{uuid}/chart       grid as JSON, ?details=true inlines notes
//	GET /patients/{uuid}/chart.xlsx  grid as a workbook
//	GET /patients/{uuid}/latest      most recent value per concept
//
// All accept ?locale= and ?today= (RFC3339 or YYYY-MM-DD).
func (h *ChartHandler) ServePatient(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, apiPrefix+"/patients/"), "/")
	patientUUID, action, ok := strings.Cut(rest, "/")
	if !ok || patientUUID == "" || strings.Contains(action, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	locale := q.Get("locale")
	if locale == "" {
		locale = h.defaultLocale
	}

	switch action {
	case "chart", "chart.xlsx":
		today, err := h.today(q.Get("today"))
		if err != nil {
			writeError(w, err)
			return
		}
		pc, err := h.charts.Chart(r.Context(), patientUUID, locale, today)
		if err != nil {
			h.logger.Warn("Failed to build chart",
				zap.String("patient_uuid", patientUUID),
				zap.String("locale", locale),
				zap.Error(err))
			writeError(w, err)
			return
		}
		if action == "chart.xlsx" {
			h.writeXLSX(w, pc)
			return
		}
		writeJSON(w, http.StatusOK, Ok(toChartJSON(pc, q.Get("details") == "true")))
	case "latest":
		latest, err := h.charts.Latest(r.Context(), patientUUID, locale)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make(map[string]observationJSON, len(latest))
		for concept, o := range latest {
			out[concept] = observationJSON{
				EncounterUUID:  o.EncounterUUID,
				EncounterTime:  o.EncounterTime,
				ConceptName:    o.ConceptName,
				Value:          o.Value,
				LocalizedValue: o.LocalizedValue,
			}
		}
		writeJSON(w, http.StatusOK, Ok(out))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ChartHandler) today(s string) (time.Time, error) {
	if s == "" {
		return h.now(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, h.zone); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid today %q", errBadRequest, s)
}

func (h *ChartHandler) writeXLSX(w http.ResponseWriter, pc *chart.PatientChart) {
	data, err := export.GridXLSX(pc)
	if err != nil {
		h.logger.Error("Failed to export chart",
			zap.String("patient_uuid", pc.PatientUUID),
			zap.Error(err))
		writeError(w, err)
		return
	}
	filename := fmt.Sprintf("chart_%s_%s.xlsx", pc.PatientUUID, pc.Grid.Today())
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// toChartJSON lists only filled cells. Without details, notes are
// reduced to a has_detail flag.
func toChartJSON(pc *chart.PatientChart, details bool) chartJSON {
	g := pc.Grid
	out := chartJSON{
		PatientUUID: pc.PatientUUID,
		Locale:      pc.Locale,
		Today:       g.Today().String(),
		Placement:   pc.Placement,
		Columns:     make([]columnJSON, 0, g.ColumnCount()),
		Rows:        make([]rowJSON, 0, g.RowCount()),
	}
	for _, c := range g.Columns() {
		out.Columns = append(out.Columns, columnJSON{ID: c.Key.ID(), Label: c.Label, Offset: c.Offset})
	}
	for i := 0; i < g.RowCount(); i++ {
		row := g.Row(i)
		rj := rowJSON{ConceptUUID: row.ConceptUUID, Label: row.Label, Severity: row.Severity, Cells: []cellJSON{}}
		for j := 0; j < g.ColumnCount(); j++ {
			v := g.Render(i, j)
			if v.Hint == chart.HintNone && v.Text == "" {
				continue
			}
			cj := cellJSON{Column: g.Column(j).Key.ID(), Hint: v.Hint, Text: v.Text, HasDetail: v.Detail != ""}
			if details {
				cj.Detail = v.Detail
			}
			rj.Cells = append(rj.Cells, cj)
		}
		out.Rows = append(out.Rows, rj)
	}
	return out
}
