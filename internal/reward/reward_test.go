package reward

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		profit   float64
		stop     float64
		duration float64
		want     float64
	}{
		{"winning fast trade", 100.0, 50.0, 600, 2.0 + 0.2 + 0.1},
		{"winning slow trade", 100.0, 50.0, 3600, 2.0 + 0.2},
		{"losing fast trade", -75.0, 50.0, 900, -1.5 - 0.1 + 0.1},
		{"losing slow trade", -75.0, 50.0, 7200, -1.5 - 0.1},
		{"zero stop distance", 100.0, 0, 600, 0.2 + 0.1},
		{"negative stop distance", 100.0, -10.0, 600, 0.2 + 0.1},
		{"breakeven counts as loss", 0.0, 50.0, 3600, -0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.profit, tt.stop, tt.duration)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestComputeRounding(t *testing.T) {
	// 1/3 R-multiple must come back truncated to 4 decimal places.
	got := Compute(1.0, 3.0, 3600)
	assert.Equal(t, 0.5333, got)
}
