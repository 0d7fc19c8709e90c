package report

import (
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/securityvision/analyzer/internal/danger"
)

var (
	timelineColor = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	alarmColor    = color.RGBA{R: 220, G: 0, B: 0, A: 255}
)

// WriteTimelinePNG plots the per-second peak danger level with every alarm
// overlaid as a point.
func WriteTimelinePNG(w io.Writer, rep *Report) error {
	p := plot.New()
	p.Title.Text = "Danger level over time"
	p.X.Label.Text = "Media time (s)"
	p.Y.Label.Text = "Danger level"
	p.Y.Min = 0
	p.Y.Max = danger.MaxLevel
	p.Add(plotter.NewGrid())

	if len(rep.Timeline) > 0 {
		pts := make(plotter.XYs, len(rep.Timeline))
		for i, tp := range rep.Timeline {
			pts[i] = plotter.XY{X: float64(tp.Second), Y: float64(tp.MaxLevel)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to create timeline line: %w", err)
		}
		line.Color = timelineColor
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add("peak level", line)
	} else {
		p.X.Min, p.X.Max = 0, 1
	}

	if len(rep.Alarms) > 0 {
		pts := make(plotter.XYs, len(rep.Alarms))
		for i, a := range rep.Alarms {
			pts[i] = plotter.XY{X: a.Timestamp, Y: float64(a.Level)}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("failed to create alarm scatter: %w", err)
		}
		sc.GlyphStyle.Color = alarmColor
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add("alarm", sc)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render timeline: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write timeline: %w", err)
	}
	return nil
}

// RenderHTML writes an echarts page with the danger timeline and the
// per-emotion detection counts. title names the analysed video.
func RenderHTML(w io.Writer, rep *Report, title string) error {
	labels := make([]string, len(rep.Timeline))
	levels := make([]opts.LineData, len(rep.Timeline))
	persons := make([]opts.LineData, len(rep.Timeline))
	for i, tp := range rep.Timeline {
		labels[i] = strconv.Itoa(tp.Second)
		levels[i] = opts.LineData{Value: tp.MaxLevel}
		persons[i] = opts.LineData{Value: tp.Persons}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Danger timeline",
			Subtitle: fmt.Sprintf("%s alarms=%d critical=%d", title, len(rep.Alarms), len(rep.CriticalMoments)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Second"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Level", Min: 0, Max: danger.MaxLevel}),
	)
	line.SetXAxis(labels).
		AddSeries("peak level", levels).
		AddSeries("persons", persons)

	names := make([]string, len(rep.EmotionStats))
	counts := make([]opts.BarData, len(rep.EmotionStats))
	alarms := make([]opts.BarData, len(rep.EmotionStats))
	for i, e := range rep.EmotionStats {
		names[i] = e.Emotion
		counts[i] = opts.BarData{Value: e.Count}
		alarms[i] = opts.BarData{Value: e.AlarmCount}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Detections by emotion"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("detections", counts).
		AddSeries("alarms", alarms,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(line, bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart page: %w", err)
	}
	return nil
}
