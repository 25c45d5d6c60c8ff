package main

import (
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
	"github.com/LeadstarlingX/Aim-Trainer/internal/layout"
	"github.com/LeadstarlingX/Aim-Trainer/internal/scene"
)

// A terminal cell is roughly twice as tall as it is wide.
const (
	cellWidth  = 10.0
	cellHeight = 20.0

	// Rows reserved under the play surface for the status lines.
	statusRows = 2
)

// surface maps terminal cells to play surface coordinates.
type surface struct {
	cols, rows int
}

func newSurface(screenCols, screenRows int) surface {
	return surface{cols: max(screenCols, 1), rows: max(screenRows-statusRows, 1)}
}

func (s surface) size() (w, h float64) {
	return float64(s.cols) * cellWidth, float64(s.rows) * cellHeight
}

// point is the surface coordinate of the center of cell (col, row).
func (s surface) point(col, row int) (x, y float64) {
	return (float64(col) + 0.5) * cellWidth, (float64(row) + 0.5) * cellHeight
}

func (s surface) inside(col, row int) bool {
	return col >= 0 && col < s.cols && row >= 0 && row < s.rows
}

// cells calls f for every cell whose center falls inside c.
func (s surface) cells(c scene.Circle, f func(col, row int)) {
	if c.Radius <= 0 {
		return
	}
	c0, c1 := int((c.X-c.Radius)/cellWidth), int((c.X+c.Radius)/cellWidth)
	r0, r1 := int((c.Y-c.Radius)/cellHeight), int((c.Y+c.Radius)/cellHeight)

	drawn := false
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			if !s.inside(col, row) {
				continue
			}
			x, y := s.point(col, row)
			if layout.PointInCircle(x, y, c.X, c.Y, c.Radius) {
				f(col, row)
				drawn = true
			}
		}
	}

	// Small circles still take the cell they sit in.
	if !drawn {
		col, row := int(c.X/cellWidth), int(c.Y/cellHeight)
		if s.inside(col, row) {
			f(col, row)
		}
	}
}

// hit returns the circle under cell (col, row), preferring the newest one.
// Exiting circles are already removed from the engine and cannot be hit.
func (s surface) hit(circles []scene.Circle, radius float64, col, row int) (scene.Circle, bool) {
	x, y := s.point(col, row)
	// Half a cell of slack so a click on any drawn cell counts.
	slack := math.Hypot(cellWidth, cellHeight) / 2

	for i := len(circles) - 1; i >= 0; i-- {
		c := circles[i]
		if c.Phase == scene.PhaseExiting {
			continue
		}
		if layout.PointInCircle(x, y, c.X, c.Y, radius+slack) {
			return c, true
		}
	}
	return scene.Circle{}, false
}

func colorOf(c domain.Color) tcell.Color {
	return tcell.GetColor(string(c))
}
