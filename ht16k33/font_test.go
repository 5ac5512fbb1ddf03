package ht16k33

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeKnown(t *testing.T) {
	tests := []struct {
		r    rune
		want uint16
	}{
		{' ', 0},
		{'0', 0b0000110000111111},
		{'1', 0b0000000000000110},
		{'A', 0b0000000011110111},
		{'H', 0b0000000011110110},
		{'-', 0b0000000011000000},
		{'.', DecimalPoint},
		{'?', 0b0001000010000011},
		{'~', 0b0000010100100000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Encode(tt.r), "%q", tt.r)
	}
}

func TestEncodeFallback(t *testing.T) {
	q := Encode('?')
	for _, r := range []rune{0, '\n', 0x1F, 0x7F, 'é', '€', -1} {
		assert.Equal(t, q, Encode(r), "%q", r)
	}
}

func TestEncodePrintableCoverage(t *testing.T) {
	assert.Len(t, font, '~'-' '+1)
	for r := rune(' '); r <= '~'; r++ {
		m := Encode(r)
		assert.Zero(t, m&0x8000, "%q uses the unused bit", r)
		assert.Equal(t, m, Encode(r), "%q is not deterministic", r)
		if r != '.' {
			assert.Zero(t, m&DecimalPoint, "%q lights the decimal point", r)
		}
	}
}
