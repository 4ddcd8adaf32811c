package chart

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Hint tells a renderer how to style a cell.
type Hint string

const (
	HintNone     Hint = ""
	HintActive   Hint = "active"
	HintNormal   Hint = "normal"
	HintElevated Hint = "elevated"
	HintSevere   Hint = "severe"
	HintGood     Hint = "good"
	HintFair     Hint = "fair"
	HintCritical Hint = "critical"
	HintDead     Hint = "dead"
)

// TemperatureLimit is the highest temperature rendered as normal.
const TemperatureLimit = 37.5

// CellView is the display form of one cell.
type CellView struct {
	Text   string `json:"text,omitempty"`
	Hint   Hint   `json:"hint,omitempty"`
	Detail string `json:"detail,omitempty"`
}

var conditionHints = map[string]Hint{
	ConditionWell:          HintGood,
	ConditionConvalescent:  HintGood,
	ConditionCured:         HintGood,
	ConditionNonCase:       HintGood,
	ConditionUnwell:        HintFair,
	ConditionCritical:      HintCritical,
	ConditionPalliative:    HintCritical,
	ConditionSuspectedDead: HintDead,
	ConditionConfirmedDead: HintDead,
}

// Render returns the display form of row i, column j. Malformed numbers are
// logged and rendered without a hint.
func (g *Grid) Render(i, j int) CellView {
	row := g.rows[i]
	cell, ok := g.Cell(i, j)

	if row.Synthetic() {
		if ok {
			return CellView{Hint: HintActive}
		}
		return CellView{}
	}

	if row.ConceptUUID == ConceptBleeding {
		if ok || g.AnyBleeding(j) {
			return CellView{Hint: HintActive}
		}
		return CellView{}
	}
	if !ok {
		return CellView{}
	}

	switch row.ConceptUUID {
	case ConceptTemperature:
		t, err := strconv.ParseFloat(strings.TrimSpace(cell.Value), 64)
		if err != nil {
			g.logger.Warn("Invalid temperature value", zap.String("value", cell.Value), zap.Error(err))
			return CellView{}
		}
		hint := HintNormal
		if t > TemperatureLimit {
			hint = HintElevated
		}
		return CellView{Text: fmt.Sprintf("%.1f", t), Hint: hint}

	case ConceptWeight:
		w, err := strconv.ParseFloat(strings.TrimSpace(cell.Value), 64)
		if err != nil {
			g.logger.Warn("Invalid weight value", zap.String("value", cell.Value), zap.Error(err))
			return CellView{}
		}
		if w >= 10 {
			return CellView{Text: fmt.Sprintf("%d", int(w))}
		}
		return CellView{Text: fmt.Sprintf("%.1f", w)}

	case ConceptDiarrhea, ConceptVomiting:
		if isSeverity(cell.Value) {
			return codedView(cell)
		}
		n, err := strconv.Atoi(strings.TrimSpace(cell.Value))
		if err != nil {
			g.logger.Warn("Invalid count value",
				zap.String("concept", row.ConceptUUID),
				zap.String("value", cell.Value),
				zap.Error(err))
			return CellView{}
		}
		return CellView{Text: fmt.Sprintf("%d", n)}

	case ConceptResponsiveness, ConceptMobility, ConceptPain, ConceptWeakness:
		return codedView(cell)

	case ConceptGeneralCondition:
		return CellView{Text: cell.LocalizedValue, Hint: conditionHints[cell.Value]}

	case ConceptNotes:
		return CellView{Hint: HintActive, Detail: cell.Detail}

	default:
		return CellView{Hint: HintActive}
	}
}

// codedView abbreviates a coded answer to the text before a dot at index 1
// or 2, otherwise to its first two characters.
func codedView(c Cell) CellView {
	v := CellView{Text: Abbreviate(c.LocalizedValue)}
	if c.Value == AnswerSevere {
		v.Hint = HintSevere
	}
	return v
}

// Abbreviate shortens a localized answer such as "A. Alert" to "A".
func Abbreviate(s string) string {
	r := []rune(s)
	n := strings.IndexRune(s, '.')
	if n >= 0 {
		n = len([]rune(s[:n]))
	}
	if n < 1 || n > 2 {
		n = 2
	}
	if n > len(r) {
		n = len(r)
	}
	return string(r[:n])
}
