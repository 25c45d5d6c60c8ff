package layout_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeadstarlingX/Aim-Trainer/internal/layout"
)

func TestPointInCircle(t *testing.T) {
	tests := map[string]struct {
		px, py float64
		want   bool
	}{
		"center":          {px: 50, py: 50, want: true},
		"on the edge":     {px: 70, py: 50, want: true},
		"just outside":    {px: 70.01, py: 50, want: false},
		"diagonal inside": {px: 64, py: 64, want: true},
		"diagonal corner": {px: 65, py: 65, want: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tt.want, layout.PointInCircle(tt.px, tt.py, 50, 50, 20))
		})
	}
}

func TestClamp(t *testing.T) {
	require.Equal(t, 20.0, layout.Clamp(5, 20, 180))
	require.Equal(t, 180.0, layout.Clamp(500, 20, 180))
	require.Equal(t, 42.0, layout.Clamp(42, 20, 180))
	require.Equal(t, 15.0, layout.Clamp(0, 20, 10), "empty range falls back to the midpoint")
}
