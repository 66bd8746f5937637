package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRSIZone(t *testing.T) {
	tests := []struct {
		rsi  float64
		want string
	}{
		{0, ZoneNeutral}, // missing indicator
		{15, ZoneOversold},
		{29.9, ZoneOversold},
		{30, ZoneNeutral},
		{50, ZoneNeutral},
		{70, ZoneNeutral},
		{70.1, ZoneOverbought},
		{95, ZoneOverbought},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RSIZone(tt.rsi), "rsi=%.1f", tt.rsi)
	}
}
