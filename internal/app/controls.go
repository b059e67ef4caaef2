package app

import (
	"fmt"
	"math"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/soypat/invertify"
)

// findControl returns the first control of type C.
func findControl[C invertify.Control](ctrls []invertify.Control) (C, bool) {
	for _, c := range ctrls {
		if found, ok := c.(C); ok {
			return found, true
		}
	}
	var zero C
	return zero, false
}

// controlsLabel renders ctrls as "Name: value" pairs. Zoom levels print as
// percentages.
func controlsLabel(ctrls []invertify.Control) string {
	var sb strings.Builder
	for i, c := range ctrls {
		if i > 0 {
			sb.WriteString("  ")
		}
		name, _ := c.Describe()
		switch v := c.ActualValue().(type) {
		case float32:
			fmt.Fprintf(&sb, "%s: %d%%", name, int(math.Round(float64(v)*100)))
		default:
			fmt.Fprintf(&sb, "%s: %v", name, v)
		}
	}
	return sb.String()
}

// sliderValue maps x on track to the range of c, rounded to whole percent.
func sliderValue(c *invertify.ControlOrdered[float32], track rect, x int) float32 {
	t := float32(x-track.x) / float32(max(track.w-1, 1))
	v := c.Min + min(max(t, 0), 1)*(c.Max-c.Min)
	return c.Clamp(float32(math.Round(float64(v)*100) / 100))
}

func (a *App) slideZoom(x int) {
	zoom, ok := findControl[*invertify.ControlOrdered[float32]](a.ctrl.Controls())
	if !ok {
		return
	}
	if err := zoom.ChangeValue(sliderValue(zoom, a.zoomTrack, x)); err != nil {
		a.log.Debug().Err(err).Msg("zoom slider")
	}
}

func (a *App) drawSlider(screen *ebiten.Image, track rect, c *invertify.ControlOrdered[float32]) {
	if track.w <= 0 {
		return
	}
	mid := track.y + track.h/2
	fillRect(screen, rect{x: track.x, y: mid - 2, w: track.w, h: 4}, colorBorder)
	t := (c.Value - c.Min) / (c.Max - c.Min)
	kx := track.x + int(t*float32(track.w-1))
	fillRect(screen, rect{x: kx - 3, y: track.y + 4, w: 7, h: track.h - 8}, colorButton)
}
