package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeadstarlingX/Aim-Trainer/internal/scene"
)

func TestSurface_Size(t *testing.T) {
	s := newSurface(80, 26)
	w, h := s.size()
	require.Equal(t, 800.0, w)
	require.Equal(t, 480.0, h)

	s = newSurface(0, 1)
	require.Equal(t, surface{cols: 1, rows: 1}, s)
}

func TestSurface_Cells(t *testing.T) {
	s := newSurface(80, 26)

	tests := map[string]struct {
		circle scene.Circle
		assert func(t *testing.T, cells [][2]int)
	}{
		"full circle covers its center cell and stays round": {
			circle: scene.Circle{X: 105, Y: 110, Radius: 20},
			assert: func(t *testing.T, cells [][2]int) {
				require.Contains(t, cells, [2]int{10, 5})
				require.Contains(t, cells, [2]int{9, 5})
				require.Contains(t, cells, [2]int{11, 5})
				require.NotContains(t, cells, [2]int{10, 3})
			},
		},
		"tiny circle should still take one cell": {
			circle: scene.Circle{X: 101, Y: 101, Radius: 1},
			assert: func(t *testing.T, cells [][2]int) {
				require.Equal(t, [][2]int{{10, 5}}, cells)
			},
		},
		"zero radius should draw nothing": {
			circle: scene.Circle{X: 100, Y: 100},
			assert: func(t *testing.T, cells [][2]int) {
				require.Empty(t, cells)
			},
		},
		"cells outside the surface are skipped": {
			circle: scene.Circle{X: 795, Y: 475, Radius: 20},
			assert: func(t *testing.T, cells [][2]int) {
				require.NotEmpty(t, cells)
				for _, c := range cells {
					require.True(t, s.inside(c[0], c[1]), c)
				}
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var cells [][2]int
			s.cells(tt.circle, func(col, row int) {
				cells = append(cells, [2]int{col, row})
			})
			tt.assert(t, cells)
		})
	}
}

func TestSurface_Hit(t *testing.T) {
	s := newSurface(80, 26)
	circles := []scene.Circle{
		{ID: 1, X: 105, Y: 110, Radius: 20, Phase: scene.PhaseSteady},
		{ID: 2, X: 115, Y: 110, Radius: 20, Phase: scene.PhaseEntering},
		{ID: 3, X: 405, Y: 210, Radius: 20, Phase: scene.PhaseExiting},
	}

	c, ok := s.hit(circles, 20, 10, 5)
	require.True(t, ok)
	require.EqualValues(t, 2, c.ID, "the newest overlapping circle wins")

	_, ok = s.hit(circles, 20, 40, 10)
	require.False(t, ok, "exiting circles cannot be hit")

	_, ok = s.hit(circles, 20, 60, 20)
	require.False(t, ok)
}
