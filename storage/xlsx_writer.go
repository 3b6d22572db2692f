package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"flat-stats/models"
)

const maxSheetName = 31

var xlsxHeaders = []string{
	"Stat", "Grouping", "Complex", "Room type",
	"Count", "Prev count", "Count delta", "Appeared", "Disappeared",
	"Price, M", "Prev price, M", "Price change, %",
	"Price per m², K", "Prev price per m², K", "Price per m² change, %",
	"Area, m²", "Prev area, m²", "Area change, %",
}

// XLSXWriter exports reports to an Excel workbook, one sheet per scope.
type XLSXWriter struct{}

// NewXLSXWriter creates an XLSXWriter.
func NewXLSXWriter() *XLSXWriter {
	return &XLSXWriter{}
}

// WriteReport writes the combined view and every scope of report to path.
func (w *XLSXWriter) WriteReport(path string, report *models.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("xlsx: create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("xlsx: create header style: %w", err)
	}

	scopes := report.Scopes
	if report.Combined != nil {
		scopes = append([]*models.ScopeReport{report.Combined}, scopes...)
	}

	used := map[string]bool{}
	var first string
	for _, sr := range scopes {
		name := sheetName(sr.Scope.Title, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("xlsx: create sheet %q: %w", name, err)
		}
		if first == "" {
			first = name
		}
		if err := writeScopeSheet(f, name, sr, headerStyle); err != nil {
			return err
		}
	}

	if first != "" {
		if !used["Sheet1"] {
			if err := f.DeleteSheet("Sheet1"); err != nil {
				return fmt.Errorf("xlsx: drop default sheet: %w", err)
			}
		}
		if index, err := f.GetSheetIndex(first); err == nil {
			f.SetActiveSheet(index)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx: save %q: %w", path, err)
	}
	return nil
}

func writeScopeSheet(f *excelize.File, sheet string, sr *models.ScopeReport, headerStyle int) error {
	for i, header := range xlsxHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("xlsx: header: %w", err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("xlsx: header style: %w", err)
		}
	}

	row := 2
	put := func(t models.StatType, grouping string, g models.GroupStat) error {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		row++
		return f.SetSheetRow(sheet, cell, &[]interface{}{
			string(t), grouping, g.ComplexTitle, g.RoomType,
			g.Current.Count, g.Previous.Count, g.CountDelta, g.CountAppeared, g.CountDisappeared,
			g.Current.AvgPrice, g.Previous.AvgPrice, g.ChangeAvgPrice,
			g.Current.AvgPricePerArea, g.Previous.AvgPricePerArea, g.ChangeAvgPricePerArea,
			g.Current.AvgTotalArea, g.Previous.AvgTotalArea, g.ChangeAvgTotalArea,
		})
	}

	for _, t := range models.StatTypes {
		stat, ok := sr.Stats[t]
		if !ok {
			continue
		}
		if stat.Summary != nil {
			if err := put(t, "summary", *stat.Summary); err != nil {
				return fmt.Errorf("xlsx: row %d: %w", row, err)
			}
		}
		groups := []struct {
			name  string
			stats []models.GroupStat
		}{
			{"room_type", stat.ByRoomType},
			{"complex", stat.ByComplex},
			{"complex_room", stat.ByComplexRoom},
		}
		for _, grp := range groups {
			for _, g := range grp.stats {
				if err := put(t, grp.name, g); err != nil {
					return fmt.Errorf("xlsx: row %d: %w", row, err)
				}
			}
		}
	}

	for i := range xlsxHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, 15); err != nil {
			return fmt.Errorf("xlsx: column width: %w", err)
		}
	}
	return nil
}

// sheetName makes a unique, valid worksheet name from a scope title.
func sheetName(title string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "Scope"
	}
	name = truncateRunes(name, maxSheetName)

	base := name
	for i := 2; used[name]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		name = truncateRunes(base, maxSheetName-len([]rune(suffix))) + suffix
	}
	used[name] = true
	return name
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
