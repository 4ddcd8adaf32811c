package chart

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const noteSeparator = "\n---\n"

// Cell is the recorded value of one (row, column).
type Cell struct {
	Value          string
	LocalizedValue string
	// Detail holds every note recorded in the bucket, oldest first.
	Detail string
}

// Row is one concept line of the grid. Synthetic severity rows carry the
// severity answer they track.
type Row struct {
	ConceptUUID string
	Label       string
	Severity    string
	cells       map[ColumnKey]Cell
}

// Cell returns the cell at k.
func (r Row) Cell(k ColumnKey) (Cell, bool) {
	c, ok := r.cells[k]
	return c, ok
}

// Len returns the number of filled cells.
func (r Row) Len() int { return len(r.cells) }

// Synthetic reports whether the row is a derived severity row.
func (r Row) Synthetic() bool { return r.Severity != "" }

// Grid is an immutable pivot of one patient's observations.
type Grid struct {
	rows        []Row
	columns     []Column
	today       Date
	anyBleeding map[ColumnKey]bool
	logger      *zap.Logger
}

func (g *Grid) Rows() []Row { return append([]Row(nil), g.rows...) }
func (g *Grid) Columns() []Column { return append([]Column(nil), g.columns...) }
func (g *Grid) Row(i int) Row { return g.rows[i] }
func (g *Grid) Column(j int) Column { return g.columns[j] }
func (g *Grid) RowCount() int { return len(g.rows) }
func (g *Grid) ColumnCount() int { return len(g.columns) }
func (g *Grid) Today() Date { return g.today }

// Cell returns the cell at row i, column j.
func (g *Grid) Cell(i, j int) (Cell, bool) {
	return g.rows[i].Cell(g.columns[j].Key)
}

// AnyBleeding reports whether a bleeding site was recorded in column j.
func (g *Grid) AnyBleeding(j int) bool {
	return g.anyBleeding[g.columns[j].Key]
}

// Options configure a Pivot.
type Options struct {
	Logger *zap.Logger
	// FallbackConcepts label the rows shown when there are no observations.
	FallbackConcepts []string
}

// Pivot turns observation streams into grids.
type Pivot struct {
	dict     Dictionary
	logger   *zap.Logger
	fallback []string
}

func NewPivot(dict Dictionary, opts Options) *Pivot {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := opts.FallbackConcepts
	if fallback == nil {
		fallback = DefaultFallbackConcepts
	}
	return &Pivot{dict: dict, logger: logger, fallback: fallback}
}

type rowBuilder struct {
	row     *Row
	derived []*Row
}

// Build pivots obs, which must be ordered by chart row then encounter time.
// Dates and half days are taken in zone; today is the caller's current time.
func (p *Pivot) Build(obs []Observation, today time.Time, zone *time.Location) (*Grid, error) {
	if p.dict == nil {
		return nil, ErrNoDictionary
	}
	if zone == nil {
		zone = today.Location()
	}

	var (
		order       []*rowBuilder
		byConcept   = make(map[string]*rowBuilder)
		observed    = make(map[Date]bool)
		anyBleeding = make(map[ColumnKey]bool)
		first, last Date
	)

	for _, o := range obs {
		b, ok := byConcept[o.ConceptUUID]
		if !ok {
			var err error
			if b, err = p.newRow(o); err != nil {
				return nil, err
			}
			byConcept[o.ConceptUUID] = b
			order = append(order, b)
		}

		if o.Value == "" || o.Value == AnswerUnknown || o.EncounterTime.IsZero() {
			continue
		}
		key := KeyOf(o.EncounterTime, zone)
		if len(observed) == 0 || key.Date.Before(first) {
			first = key.Date
		}
		if len(observed) == 0 || last.Before(key.Date) {
			last = key.Date
		}
		observed[key.Date] = true

		if IsNoSymptom(o.Value) {
			continue
		}
		if o.GroupName == BleedingSitesGroup {
			anyBleeding[key] = true
		}

		cell := Cell{Value: o.Value, LocalizedValue: o.LocalizedValue}
		if o.ConceptUUID == ConceptNotes {
			cell.Detail = o.EncounterTime.In(zone).Format("2006-01-02 15:04") + "\n" + o.Value
		}
		set(b.row, key, cell)

		if isSeverity(o.Value) {
			for _, d := range b.derived {
				if d.Severity == o.Value {
					set(d, key, cell)
				}
			}
		}
	}

	todayDate := DateOf(today, zone)
	if len(observed) == 0 {
		first, last = todayDate, todayDate
	}

	g := &Grid{
		columns:     columnsBetween(first, last, todayDate),
		today:       todayDate,
		anyBleeding: anyBleeding,
		logger:      p.logger,
	}
	for _, b := range order {
		g.rows = append(g.rows, *b.row)
	}
	for _, b := range order {
		for _, d := range b.derived {
			g.rows = append(g.rows, *d)
		}
	}
	if len(g.rows) == 0 {
		rows, err := p.fallbackRows()
		if err != nil {
			return nil, err
		}
		g.rows = rows
	}
	return g, nil
}

// set keeps the first value of a bucket; notes accumulate in Detail.
// TODO: decide with clinical staff whether the latest value per bucket should be shown instead.
func set(r *Row, k ColumnKey, c Cell) {
	prev, ok := r.cells[k]
	if !ok {
		r.cells[k] = c
		return
	}
	if c.Detail != "" {
		prev.Detail += noteSeparator + c.Detail
		r.cells[k] = prev
	}
}

func (p *Pivot) newRow(o Observation) (*rowBuilder, error) {
	label := o.ConceptName
	if label == "" {
		var err error
		if label, err = lookup(p.dict, o.ConceptUUID); err != nil {
			return nil, err
		}
	}
	b := &rowBuilder{row: &Row{ConceptUUID: o.ConceptUUID, Label: label, cells: map[ColumnKey]Cell{}}}
	if !CompoundConcepts[o.ConceptUUID] {
		return b, nil
	}
	for _, sev := range Severities {
		name, err := lookup(p.dict, sev)
		if err != nil {
			return nil, err
		}
		b.derived = append(b.derived, &Row{
			ConceptUUID: o.ConceptUUID,
			Label:       fmt.Sprintf("%s (%s)", label, name),
			Severity:    sev,
			cells:       map[ColumnKey]Cell{},
		})
	}
	return b, nil
}

func (p *Pivot) fallbackRows() ([]Row, error) {
	rows := make([]Row, 0, len(p.fallback))
	for _, concept := range p.fallback {
		label, err := lookup(p.dict, concept)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{ConceptUUID: concept, Label: label, cells: map[ColumnKey]Cell{}})
	}
	return rows, nil
}
