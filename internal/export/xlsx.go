package export

import (
	"bytes"
	"fmt"

	"wisefido-records/internal/chart"

	"github.com/xuri/excelize/v2"
)

const chartSheet = "Chart"

// Fill colours per render hint.
var hintFills = map[chart.Hint]string{
	chart.HintActive:   "#D9D9D9",
	chart.HintNormal:   "#C6EFCE",
	chart.HintElevated: "#FFC7CE",
	chart.HintSevere:   "#FFC7CE",
	chart.HintGood:     "#C6EFCE",
	chart.HintFair:     "#FFEB9C",
	chart.HintCritical: "#FFC7CE",
	chart.HintDead:     "#808080",
}

// GridXLSX writes a patient chart as a workbook: one row per concept, one
// column per half day, with cells styled by render hint. Notes are written
// as cell comments.
func GridXLSX(pc *chart.PatientChart) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(chartSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	if err := writeGrid(f, pc); err != nil {
		f.Close()
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeGrid(f *excelize.File, pc *chart.PatientChart) error {
	g := pc.Grid

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	hintStyles := make(map[chart.Hint]int, len(hintFills))
	for hint, color := range hintFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		if err != nil {
			return fmt.Errorf("failed to create cell style: %w", err)
		}
		hintStyles[hint] = id
	}

	title := pc.PatientUUID
	if pc.Placement.ZoneName != "" {
		title += " / " + pc.Placement.ZoneName
	}
	if pc.Placement.TentName != "" {
		title += " / " + pc.Placement.TentName
	}
	if err := setCell(f, 1, 1, title, headerStyle); err != nil {
		return err
	}
	for j, col := range g.Columns() {
		if err := setCell(f, j+2, 1, col.Label, headerStyle); err != nil {
			return err
		}
	}

	for i, row := range g.Rows() {
		r := i + 2
		if err := setCell(f, 1, r, row.Label, headerStyle); err != nil {
			return err
		}
		for j := 0; j < g.ColumnCount(); j++ {
			view := g.Render(i, j)
			if view == (chart.CellView{}) {
				continue
			}
			style := hintStyles[view.Hint]
			text := view.Text
			if text == "" && view.Hint == chart.HintActive {
				text = "x"
			}
			if err := setCell(f, j+2, r, text, style); err != nil {
				return err
			}
			if view.Detail != "" {
				if err := addNote(f, j+2, r, view.Detail); err != nil {
					return err
				}
			}
		}
	}

	if err := f.SetColWidth(chartSheet, "A", "A", 30); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if g.ColumnCount() > 0 {
		last, err := excelize.ColumnNumberToName(g.ColumnCount() + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(chartSheet, "B", last, 12); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if err := f.SetPanes(chartSheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value any, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellValue(chartSheet, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	if style != 0 {
		if err := f.SetCellStyle(chartSheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set style of %s: %w", cell, err)
		}
	}
	return nil
}

func addNote(f *excelize.File, col, row int, text string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.AddComment(chartSheet, excelize.Comment{
		Cell:   cell,
		Author: "records",
		Paragraph: []excelize.RichTextRun{
			{Text: text},
		},
	}); err != nil {
		return fmt.Errorf("failed to add note to %s: %w", cell, err)
	}
	return nil
}
