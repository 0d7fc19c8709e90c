package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/securityvision/analyzer/internal/store"
	"github.com/securityvision/analyzer/internal/timeutil"
)

// Sheet names of the spreadsheet export.
const (
	SheetSummary  = "Summary"
	SheetAlarms   = "Alarms"
	SheetCritical = "Critical Moments"
	SheetEmotions = "Emotions"
	SheetBursts   = "Bursts"
)

type sheet struct {
	name    string
	headers []string
	widths  []float64
	rows    [][]interface{}
}

func (rep *Report) sheets() []sheet {
	s := rep.Summary
	summary := sheet{
		name:    SheetSummary,
		headers: []string{"Metric", "Value"},
		widths:  []float64{28, 18},
		rows: [][]interface{}{
			{"Total frames", s.TotalFrames},
			{"Total persons", s.TotalPersons},
			{"Total alarms", s.TotalAlarms},
			{"Dangerous detections", s.DangerousDetections},
			{"At-risk detections", s.AtRiskDetections},
			{"Average danger level", s.AverageDangerLevel},
			{"Session start", timeutil.FormatMediaTime(s.SessionStart)},
			{"Session end", timeutil.FormatMediaTime(s.SessionEnd)},
			{"Session duration (s)", s.SessionDuration},
			{"Alarm speed mean (px/s)", rep.AlarmSpeed.Mean},
			{"Alarm speed p95 (px/s)", rep.AlarmSpeed.P95},
		},
	}

	emotions := sheet{
		name:    SheetEmotions,
		headers: []string{"Emotion", "Count", "Avg speed", "Avg danger level", "Alarms"},
		widths:  []float64{16, 10, 12, 18, 10},
	}
	for _, e := range rep.EmotionStats {
		emotions.rows = append(emotions.rows, []interface{}{e.Emotion, e.Count, e.AvgSpeed, e.AvgDangerLevel, e.AlarmCount})
	}

	bursts := sheet{
		name:    SheetBursts,
		headers: []string{"Second", "Alarms", "Max level"},
		widths:  []float64{10, 10, 12},
	}
	for _, b := range rep.Bursts {
		bursts.rows = append(bursts.rows, []interface{}{b.Second, b.Count, b.MaxLevel})
	}

	return []sheet{
		summary,
		alarmSheet(SheetAlarms, rep.Alarms),
		alarmSheet(SheetCritical, rep.CriticalMoments),
		emotions,
		bursts,
	}
}

func alarmSheet(name string, events []store.AlarmEvent) sheet {
	sh := sheet{
		name:    name,
		headers: []string{"Time", "Timestamp (s)", "Person", "Emotion", "Speed (px/s)", "Nearby", "Level", "Reason"},
		widths:  []float64{12, 14, 10, 12, 14, 10, 8, 36},
	}
	for _, a := range events {
		sh.rows = append(sh.rows, []interface{}{
			a.FormattedTime, a.Timestamp, a.PersonID, a.Emotion, a.Speed, len(a.Nearby), a.Level, a.Reason,
		})
	}
	return sh
}

// WriteXLSX writes rep as a workbook with one sheet per section.
func WriteXLSX(w io.Writer, rep *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#F4CCCC"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, sh := range rep.sheets() {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sh.name, err)
		}
		if err := writeSheet(f, sh, headerStyle); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sh sheet, headerStyle int) error {
	for col, h := range sh.headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sh.name, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sh.name, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	for i, width := range sh.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sh.name, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	for r, row := range sh.rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sh.name, r+2, err)
		}
	}
	return f.SetPanes(sh.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
