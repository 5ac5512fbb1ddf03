// Package apa102 drives the APA102 addressable LED strip on the Rainbow HAT.
//
// The strip is not wired to a hardware SPI port: the clocked two-wire protocol
// is produced by toggling three GPIO pins (data, clock and chip-select). A
// frame is a 32-bit zero start frame, one 4-byte frame per pixel
// (0b111 + 5-bit brightness, blue, green, red), and 36 trailing clock pulses
// with data held low so that every pixel latches.
//
// Pixel state is buffered; nothing reaches the strip until Show is called.
// The methods are not safe for concurrent use.
package apa102

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
)

const (
	// NumPixels is the number of LEDs on the Rainbow HAT strip.
	NumPixels = 7
	// DefaultBrightness is used by callers that don't care about brightness.
	DefaultBrightness = 0.2
	// MaxBrightness is the largest value of the 5-bit global brightness field.
	MaxBrightness = 31

	startFrameBits = 32
	endFramePulses = 36
	pixelHeader    = 0xE0
)

var (
	// ErrOutOfRange is returned when a pixel index or brightness is outside
	// its domain. State is left untouched.
	ErrOutOfRange = errors.New("apa102: out of range")
	// ErrHalted is returned by operations on a halted device.
	ErrHalted = errors.New("apa102: halted")
)

// Opts is the configuration for the strip.
type Opts struct {
	NumPixels int             // Number of LEDs (default: NumPixels)
	Logger    *zerolog.Logger // Optional, defaults to a no-op logger
}

// DefaultOpts is the Rainbow HAT layout.
var DefaultOpts = Opts{NumPixels: NumPixels}

// Pixel is the buffered state of a single LED.
type Pixel struct {
	R, G, B    uint8
	Brightness uint8 // 0..31
}

// frame returns the 4 bytes sent on the wire for p.
func (p Pixel) frame() [4]byte {
	return [4]byte{pixelHeader | p.Brightness&MaxBrightness, p.B, p.G, p.R}
}

// Dev is a handle to the strip.
type Dev struct {
	data  gpio.PinOut
	clock gpio.PinOut
	cs    gpio.PinOut

	pixels []Pixel
	log    zerolog.Logger

	halt   sync.Once
	halted bool
}

// NewGPIO returns a strip driven through the given pins.
//
// Clock and data are driven low and chip-select is driven high (inactive).
// opts can be nil to use DefaultOpts.
func NewGPIO(data, clock, cs gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	n := opts.NumPixels
	if n == 0 {
		n = NumPixels
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: %d pixels", ErrOutOfRange, n)
	}
	if data == nil || clock == nil || cs == nil {
		return nil, errors.New("apa102: data, clock and chip-select pins are required")
	}
	d := &Dev{
		data:   data,
		clock:  clock,
		cs:     cs,
		pixels: make([]Pixel, n),
		log:    zerolog.Nop(),
	}
	if opts.Logger != nil {
		d.log = *opts.Logger
	}
	w := wire{d: d}
	w.set(d.cs, gpio.High, "chip-select")
	w.set(d.clock, gpio.Low, "clock")
	w.set(d.data, gpio.Low, "data")
	if w.err != nil {
		return nil, w.err
	}
	d.log.Debug().Int("pixels", n).Str("data", data.Name()).Str("clock", clock.Name()).Str("cs", cs.Name()).Msg("apa102 ready")
	return d, nil
}

// String implements conn.Resource.
func (d *Dev) String() string {
	return fmt.Sprintf("apa102{%s,%s,%s}", d.data, d.clock, d.cs)
}

// Len returns the number of pixels.
func (d *Dev) Len() int {
	return len(d.pixels)
}

// Pixel returns the buffered state of pixel i.
func (d *Dev) Pixel(i int) (Pixel, error) {
	if i < 0 || i >= len(d.pixels) {
		return Pixel{}, fmt.Errorf("%w: pixel %d not in [0,%d)", ErrOutOfRange, i, len(d.pixels))
	}
	return d.pixels[i], nil
}

// Pixels returns a copy of the buffered pixels.
func (d *Dev) Pixels() []Pixel {
	out := make([]Pixel, len(d.pixels))
	copy(out, d.pixels)
	return out
}

// SetPixel buffers the color and brightness of pixel i.
//
// brightness is a fraction in [0,1] stored as floor(31*brightness).
func (d *Dev) SetPixel(i int, r, g, b uint8, brightness float64) error {
	if i < 0 || i >= len(d.pixels) {
		return fmt.Errorf("%w: pixel %d not in [0,%d)", ErrOutOfRange, i, len(d.pixels))
	}
	lvl, err := toLevel(brightness)
	if err != nil {
		return err
	}
	if d.halted {
		return ErrHalted
	}
	d.pixels[i] = Pixel{R: r, G: g, B: b, Brightness: lvl}
	return nil
}

// SetAll buffers the same color and brightness on every pixel.
func (d *Dev) SetAll(r, g, b uint8, brightness float64) error {
	lvl, err := toLevel(brightness)
	if err != nil {
		return err
	}
	if d.halted {
		return ErrHalted
	}
	for i := range d.pixels {
		d.pixels[i] = Pixel{R: r, G: g, B: b, Brightness: lvl}
	}
	return nil
}

// SetBrightness changes the brightness of every pixel and keeps their color.
func (d *Dev) SetBrightness(brightness float64) error {
	lvl, err := toLevel(brightness)
	if err != nil {
		return err
	}
	if d.halted {
		return ErrHalted
	}
	for i := range d.pixels {
		d.pixels[i].Brightness = lvl
	}
	return nil
}

// Clear turns every pixel black. Brightness is kept.
func (d *Dev) Clear() error {
	if d.halted {
		return ErrHalted
	}
	d.clear()
	return nil
}

func (d *Dev) clear() {
	for i := range d.pixels {
		d.pixels[i].R, d.pixels[i].G, d.pixels[i].B = 0, 0, 0
	}
}

// Show sends the buffered pixels to the strip.
func (d *Dev) Show() error {
	if d.halted {
		return ErrHalted
	}
	return d.show()
}

func (d *Dev) show() error {
	w := wire{d: d}
	w.set(d.cs, gpio.Low, "chip-select")
	w.set(d.data, gpio.Low, "data")
	for i := 0; i < startFrameBits; i++ {
		w.pulse()
	}
	for _, p := range d.pixels {
		for _, b := range p.frame() {
			w.writeByte(b)
		}
	}
	w.set(d.data, gpio.Low, "data")
	for i := 0; i < endFramePulses; i++ {
		w.pulse()
	}
	w.set(d.cs, gpio.High, "chip-select")
	return w.err
}

// Image returns the buffered pixels as a 1xN image, each color scaled by
// its brightness.
func (d *Dev) Image() *image.NRGBA {
	im := image.NewNRGBA(image.Rect(0, 0, len(d.pixels), 1))
	for x, p := range d.pixels {
		im.SetNRGBA(x, 0, p.NRGBA())
	}
	return im
}

// NRGBA returns the color as displayed, scaled by brightness.
func (p Pixel) NRGBA() color.NRGBA {
	s := float64(p.Brightness&MaxBrightness) / MaxBrightness
	return color.NRGBA{
		R: uint8(float64(p.R) * s),
		G: uint8(float64(p.G) * s),
		B: uint8(float64(p.B) * s),
		A: 255,
	}
}

// Halt blanks the strip and releases the pins.
//
// Only the first call has an effect. The pins are released even when the
// blanking frame fails; that error is returned.
func (d *Dev) Halt() error {
	var err error
	d.halt.Do(func() {
		d.clear()
		err = d.show()
		d.halted = true
		for _, p := range []gpio.PinOut{d.data, d.clock, d.cs} {
			if herr := p.Halt(); herr != nil && err == nil {
				err = fmt.Errorf("apa102: release %s: %w", p, herr)
			}
		}
		if err != nil {
			d.log.Warn().Err(err).Msg("apa102 halt")
			return
		}
		d.log.Debug().Msg("apa102 halted")
	})
	return err
}

func toLevel(brightness float64) (uint8, error) {
	if math.IsNaN(brightness) || brightness < 0 || brightness > 1 {
		return 0, fmt.Errorf("%w: brightness %v not in [0,1]", ErrOutOfRange, brightness)
	}
	return uint8(math.Floor(MaxBrightness*brightness)) & MaxBrightness, nil
}

// wire emits bits on the pins and keeps the first error. Once an error
// occurred every further write is skipped.
type wire struct {
	d   *Dev
	err error
}

func (w *wire) set(p gpio.PinOut, l gpio.Level, name string) {
	if w.err != nil {
		return
	}
	if err := p.Out(l); err != nil {
		w.err = fmt.Errorf("apa102: %s: %w", name, err)
	}
}

func (w *wire) pulse() {
	w.set(w.d.clock, gpio.High, "clock")
	w.set(w.d.clock, gpio.Low, "clock")
}

// writeByte sends b MSB first.
func (w *wire) writeByte(b byte) {
	for i := 0; i < 8; i++ {
		w.set(w.d.data, b&0x80 != 0, "data")
		w.pulse()
		b <<= 1
	}
}
