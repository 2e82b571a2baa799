package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateEdges(t *testing.T) {
	e := New()
	e.SetMode(0, Rising)
	e.SetMode(1, Falling)

	tests := []struct {
		name       string
		prev, curr byte
		want       uint8
	}{
		{"ch1 rises", 0b00, 0b01, 0b01},
		{"ch1 falls (no fire)", 0b01, 0b00, 0},
		{"ch2 falls", 0b10, 0b00, 0b10},
		{"ch2 rises (no fire)", 0b00, 0b10, 0},
		{"both fire", 0b10, 0b01, 0b11},
		{"steady", 0b11, 0b11, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Evaluate(tt.prev, tt.curr))
		})
	}
}

func TestNoTriggerNeverFires(t *testing.T) {
	e := New()

	for prev := 0; prev < 256; prev += 17 {
		for curr := 0; curr < 256; curr += 13 {
			assert.Zero(t, e.Evaluate(byte(prev), byte(curr)))
		}
	}
}

func TestModeChangeAppliesToNextPair(t *testing.T) {
	e := New()

	assert.Zero(t, e.Evaluate(0, 1))
	e.SetMode(0, Rising)
	assert.Equal(t, uint8(1), e.Evaluate(0, 1))
}

func TestCommandMasks(t *testing.T) {
	// [No, Rise, Fall, No, Rise, No, No, No]
	e := New()
	e.SetModes([Channels]Mode{None, Rising, Falling, None, Rising, None, None, None})

	assert.Equal(t, uint8(18), e.EdgeMask())
	assert.Equal(t, uint8(22), e.PinsMask())
}
