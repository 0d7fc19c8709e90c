package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"github.com/securityvision/analyzer/internal/alarm"
	"github.com/securityvision/analyzer/internal/danger"
	"github.com/securityvision/analyzer/internal/detect"
	"github.com/securityvision/analyzer/internal/kinematics"
	"github.com/securityvision/analyzer/internal/proximity"
	"github.com/securityvision/analyzer/internal/video"
)

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

var headerOrigin = image.Pt(10, 30)

const (
	headerScale = 0.7
	labelScale  = 0.45
	detailScale = 0.5
	textWeight  = 2
)

func drawHeader(c video.Canvas, text string, col color.RGBA) {
	c.Text(text, headerOrigin, headerScale, col, textWeight)
}

// drawPerson draws the box, label, speed, danger level and motion arrow of
// one person.
func drawPerson(c video.Canvas, d detect.Detection, identity int, m kinematics.Motion, a danger.Assessment) {
	thickness := 1
	if a.Dangerous {
		thickness = 3
	}
	col := danger.LevelColor(a.Level)
	c.Rectangle(d.Box, col, thickness)

	x, y := d.Box.Min.X, d.Box.Min.Y
	label := fmt.Sprintf("ID:%d %s %s %s", identity, d.Gender, d.Emotion, danger.DistanceCategory(d.Area()))
	c.Text(label, image.Pt(x, y-10), labelScale, white, textWeight)

	if m.Speed > 0 {
		c.Text(fmt.Sprintf("%.1f px/s", m.Speed), image.Pt(x, y-30), detailScale, col, textWeight)
	}
	if a.Dangerous {
		c.Text(fmt.Sprintf("DANGER: %d/10", a.Level), image.Pt(x, y-50), detailScale, danger.Red, textWeight)
	}
	if m.Moving {
		c.Arrow(m.From, d.Center(), danger.Green, 2)
	}
}

// drawClosePairs joins every close pair with a red line labelled with the
// whole-pixel distance at the midpoint.
func drawClosePairs(c video.Canvas, pairs []proximity.Pair) {
	for _, p := range pairs {
		if !p.Close() {
			continue
		}
		c.Line(p.CenterI, p.CenterJ, danger.Red, 2)
		mid := image.Pt((p.CenterI.X+p.CenterJ.X)/2, (p.CenterI.Y+p.CenterJ.Y)/2)
		c.Text(fmt.Sprintf("%d px", int(p.Distance)), mid, detailScale, danger.Red, textWeight)
	}
}

// drawOutcome draws everything for a frame with people, in back-to-front
// order: people, alarm banner, close pairs, header.
func (r *run) drawOutcome(c video.Canvas, f *frameState) {
	for i, d := range f.detections {
		drawPerson(c, d, f.identities[i], f.motions[i], f.outcome.Assessments[i])
	}
	if f.outcome.Active {
		alarm.DrawBanner(c, len(f.outcome.Dangerous), f.outcome.Level, r.clock.Now())
	}
	drawClosePairs(c, f.pairs)
	drawHeader(c, fmt.Sprintf("%s -> %d person(s)", f.formatted, len(f.detections)), danger.Yellow)
}
