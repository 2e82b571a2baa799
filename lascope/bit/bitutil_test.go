package bit

import (
	"testing"
)

func TestCombine(t *testing.T) {
	tests := []struct {
		high, low uint8
		expected  uint16
	}{
		{0xAB, 0xCD, 0xABCD},
		{0x00, 0x00, 0x0000},
		{0xFF, 0xFF, 0xFFFF},
		{0x12, 0x34, 0x1234},
	}

	for _, tt := range tests {
		result := Combine(tt.high, tt.low)
		if result != tt.expected {
			t.Errorf("Combine(%X, %X) = %X; want %X", tt.high, tt.low, result, tt.expected)
		}
	}
}

func TestGetBitValue(t *testing.T) {
	var value uint8 = 0b0101_0010

	for i, want := range []uint8{0, 1, 0, 0, 1, 0, 1, 0} {
		if got := GetBitValue(uint8(i), value); got != want {
			t.Errorf("GetBitValue(%d, %08b) = %d; want %d", i, value, got, want)
		}
	}
}

func TestSetClear(t *testing.T) {
	if got := Set(3, 0); got != 0b0000_1000 {
		t.Errorf("Set(3, 0) = %08b", got)
	}
	if got := Clear(3, 0xFF); got != 0b1111_0111 {
		t.Errorf("Clear(3, 0xFF) = %08b", got)
	}
}

func TestEdges(t *testing.T) {
	tests := []struct {
		prev, curr      uint8
		rising, falling bool
	}{
		{0, 1, true, false},
		{1, 0, false, true},
		{0, 0, false, false},
		{1, 1, false, false},
	}

	for _, tt := range tests {
		if got := Rising(tt.prev, tt.curr); got != tt.rising {
			t.Errorf("Rising(%d, %d) = %v; want %v", tt.prev, tt.curr, got, tt.rising)
		}
		if got := Falling(tt.prev, tt.curr); got != tt.falling {
			t.Errorf("Falling(%d, %d) = %v; want %v", tt.prev, tt.curr, got, tt.falling)
		}
	}
}
