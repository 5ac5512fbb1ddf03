// Package effects animates a pixel strip: a colour wheel, a rotating
// rainbow, a fixed-rate frame loop and self-test patterns.
package effects

import (
	"image/color"
	"math"
)

// Strip is the subset of a pixel strip needed by the effects. *apa102.Dev
// implements it.
type Strip interface {
	Len() int
	SetPixel(i int, r, g, b uint8, brightness float64) error
	Show() error
}

// Wheel returns a fully saturated colour for hue h, with h in [0,1) going
// red, yellow, green, cyan, blue, magenta and back to red. h wraps around.
func Wheel(h float64) color.NRGBA {
	h = math.Mod(h, 1)
	if h < 0 {
		h++
	}
	h *= 6
	switch {
	case h < 1:
		return color.NRGBA{R: 255, G: byte(255 * h), A: 255}
	case h < 2:
		return color.NRGBA{R: byte(255 * (2 - h)), G: 255, A: 255}
	case h < 3:
		return color.NRGBA{G: 255, B: byte(255 * (h - 2)), A: 255}
	case h < 4:
		return color.NRGBA{G: byte(255 * (4 - h)), B: 255, A: 255}
	case h < 5:
		return color.NRGBA{R: byte(255 * (h - 4)), B: 255, A: 255}
	default:
		return color.NRGBA{R: 255, B: byte(255 * (6 - h)), A: 255}
	}
}

// Rainbow spreads one turn of the wheel over the strip, offset by phase, and
// shows it.
func Rainbow(s Strip, phase, brightness float64) error {
	n := s.Len()
	for i := 0; i < n; i++ {
		c := Wheel(phase + float64(i)/float64(n))
		if err := s.SetPixel(i, c.R, c.G, c.B, brightness); err != nil {
			return err
		}
	}
	return s.Show()
}
