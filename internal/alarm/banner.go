package alarm

import (
	"fmt"
	"image"
	"time"

	"github.com/securityvision/analyzer/internal/danger"
	"github.com/securityvision/analyzer/internal/video"
)

const bannerBorder = 8

// BlinkOn reports whether the alarm border is lit at t. It toggles four
// times per second of wall-clock time.
func BlinkOn(t time.Time) bool {
	quarters := t.UnixNano() / int64(250*time.Millisecond)
	return quarters%2 != 0
}

// DrawBanner draws the alarm overlay for count dangerous people at level.
func DrawBanner(c video.Canvas, count, level int, now time.Time) {
	if BlinkOn(now) {
		size := c.Size()
		c.Rectangle(image.Rect(0, 0, size.X, size.Y), danger.Red, bannerBorder)
	}
	c.Text(fmt.Sprintf("ALARM! %d DANGEROUS PERSON(S)", count), image.Pt(50, 80), 1.0, danger.Red, 2)
	c.Text(fmt.Sprintf("DANGER LEVEL: %d/10", level), image.Pt(50, 120), 0.8, danger.Red, 2)
}
