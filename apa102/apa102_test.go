package apa102

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// probe records every level change on the three strip pins in order.
type probe struct {
	edges []edge
	fail  map[string]error
}

type edge struct {
	pin string
	l   gpio.Level
}

// recPin is a fake pin that reports its writes to a shared probe.
type recPin struct {
	gpiotest.Pin
	p      *probe
	halted bool
}

func (r *recPin) Out(l gpio.Level) error {
	if err := r.p.fail[r.N]; err != nil {
		return err
	}
	r.p.edges = append(r.p.edges, edge{r.N, l})
	return r.Pin.Out(l)
}

func (r *recPin) Halt() error {
	r.halted = true
	return nil
}

func newTestDev(t *testing.T, n int) (*Dev, *probe, []*recPin) {
	p := &probe{fail: map[string]error{}}
	pins := []*recPin{
		{Pin: gpiotest.Pin{N: "DAT", Num: 10}, p: p},
		{Pin: gpiotest.Pin{N: "CLK", Num: 11}, p: p},
		{Pin: gpiotest.Pin{N: "CS", Num: 8}, p: p},
	}
	d, err := NewGPIO(pins[0], pins[1], pins[2], &Opts{NumPixels: n})
	require.NoError(t, err)
	p.edges = nil
	return d, p, pins
}

// decode replays the recorded edges: data is sampled on each rising clock
// edge while chip-select is low.
func decode(t *testing.T, edges []edge) (bits []bool, pulses int) {
	data, clock, cs := gpio.Low, gpio.Low, gpio.High
	for _, e := range edges {
		switch e.pin {
		case "DAT":
			data = e.l
		case "CLK":
			if e.l == gpio.High && clock == gpio.Low {
				require.Equal(t, gpio.Low, cs, "clock pulse with chip-select inactive")
				bits = append(bits, bool(data))
				pulses++
			}
			clock = e.l
		case "CS":
			cs = e.l
		}
	}
	assert.Equal(t, gpio.High, cs, "chip-select must end inactive")
	assert.Equal(t, gpio.Low, clock, "clock must end low")
	return bits, pulses
}

func toBytes(bits []bool) []byte {
	out := make([]byte, len(bits)/8)
	for i, b := range bits[:len(out)*8] {
		if b {
			out[i/8] |= 0x80 >> (i % 8)
		}
	}
	return out
}

func TestNewGPIOIdleLevels(t *testing.T) {
	p := &probe{fail: map[string]error{}}
	dat := &recPin{Pin: gpiotest.Pin{N: "DAT"}, p: p}
	clk := &recPin{Pin: gpiotest.Pin{N: "CLK"}, p: p}
	cs := &recPin{Pin: gpiotest.Pin{N: "CS"}, p: p}

	d, err := NewGPIO(dat, clk, cs, nil)
	require.NoError(t, err)
	assert.Equal(t, NumPixels, d.Len())
	assert.Equal(t, gpio.High, cs.L)
	assert.Equal(t, gpio.Low, clk.L)
	assert.Equal(t, gpio.Low, dat.L)
	assert.Equal(t, "apa102{DAT(0),CLK(0),CS(0)}", d.String())

	for _, px := range d.Pixels() {
		assert.Equal(t, Pixel{}, px)
	}
}

func TestNewGPIOErrors(t *testing.T) {
	p := &probe{fail: map[string]error{"CLK": errors.New("busy")}}
	dat := &recPin{Pin: gpiotest.Pin{N: "DAT"}, p: p}
	clk := &recPin{Pin: gpiotest.Pin{N: "CLK"}, p: p}
	cs := &recPin{Pin: gpiotest.Pin{N: "CS"}, p: p}

	_, err := NewGPIO(dat, clk, cs, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apa102: clock: busy")

	_, err = NewGPIO(dat, nil, cs, nil)
	assert.Error(t, err)

	_, err = NewGPIO(dat, clk, cs, &Opts{NumPixels: -1})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSetPixel(t *testing.T) {
	tests := []struct {
		name       string
		brightness float64
		want       uint8
	}{
		{"zero", 0, 0},
		{"default", DefaultBrightness, 6},
		{"half", 0.5, 15},
		{"almost full", 0.99, 30},
		{"full", 1, 31},
	}
	d, _, _ := newTestDev(t, NumPixels)
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, d.SetPixel(i, 1, 2, 3, tt.brightness))
			px, err := d.Pixel(i)
			require.NoError(t, err)
			assert.Equal(t, Pixel{R: 1, G: 2, B: 3, Brightness: tt.want}, px)
		})
	}
}

func TestSetPixelOutOfRange(t *testing.T) {
	d, p, _ := newTestDev(t, NumPixels)
	require.NoError(t, d.SetAll(9, 9, 9, 1))
	before := d.Pixels()

	for _, i := range []int{-1, NumPixels, 100} {
		assert.ErrorIs(t, d.SetPixel(i, 255, 0, 0, 0.5), ErrOutOfRange, "index %d", i)
		_, err := d.Pixel(i)
		assert.ErrorIs(t, err, ErrOutOfRange)
	}
	for _, b := range []float64{-0.01, 1.01, 2} {
		assert.ErrorIs(t, d.SetPixel(0, 255, 0, 0, b), ErrOutOfRange, "brightness %v", b)
		assert.ErrorIs(t, d.SetAll(255, 0, 0, b), ErrOutOfRange)
		assert.ErrorIs(t, d.SetBrightness(b), ErrOutOfRange)
	}
	assert.Equal(t, before, d.Pixels())
	assert.Empty(t, p.edges, "no I/O before Show")
}

func TestSetAllSetBrightnessClear(t *testing.T) {
	d, _, _ := newTestDev(t, 3)
	require.NoError(t, d.SetAll(10, 20, 30, 0.5))
	for _, px := range d.Pixels() {
		assert.Equal(t, Pixel{10, 20, 30, 15}, px)
	}

	require.NoError(t, d.SetBrightness(1))
	for _, px := range d.Pixels() {
		assert.Equal(t, Pixel{10, 20, 30, 31}, px)
	}

	require.NoError(t, d.Clear())
	for _, px := range d.Pixels() {
		assert.Equal(t, Pixel{0, 0, 0, 31}, px)
	}
}

func TestShowSinglePixel(t *testing.T) {
	d, p, _ := newTestDev(t, 1)
	require.NoError(t, d.SetPixel(0, 255, 0, 0, 0.5))
	require.NoError(t, d.Show())

	bits, pulses := decode(t, p.edges)
	require.Equal(t, 32+32+36, pulses)
	got := toBytes(bits[:64])
	assert.Equal(t, []byte{0, 0, 0, 0, 0xE0 | 15, 0x00, 0x00, 0xFF}, got)
	for i, b := range bits[64:] {
		assert.False(t, b, "end frame bit %d must be low", i)
	}
}

func TestShowFullStrip(t *testing.T) {
	d, p, _ := newTestDev(t, NumPixels)
	for i := 0; i < NumPixels; i++ {
		require.NoError(t, d.SetPixel(i, uint8(i), uint8(i*2), uint8(i*3), 1))
	}
	require.NoError(t, d.Show())

	bits, pulses := decode(t, p.edges)
	require.Equal(t, 32+NumPixels*32+36, pulses)
	got := toBytes(bits[32 : 32+NumPixels*32])
	for i := 0; i < NumPixels; i++ {
		assert.Equal(t, []byte{0xFF, uint8(i * 3), uint8(i * 2), uint8(i)}, got[i*4:i*4+4], "pixel %d", i)
	}
}

func TestShowError(t *testing.T) {
	d, p, _ := newTestDev(t, 2)
	require.NoError(t, d.SetAll(1, 1, 1, 1))
	p.fail["DAT"] = errors.New("gone")

	err := d.Show()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apa102: data: gone")
	px, _ := d.Pixel(1)
	assert.Equal(t, Pixel{1, 1, 1, 31}, px, "buffer survives a failed flush")
}

func TestHalt(t *testing.T) {
	d, p, pins := newTestDev(t, 2)
	require.NoError(t, d.SetAll(200, 100, 50, 1))
	require.NoError(t, d.Halt())

	bits, pulses := decode(t, p.edges)
	require.Equal(t, 32+2*32+36, pulses)
	assert.Equal(t, []byte{0xFF, 0, 0, 0, 0xFF, 0, 0, 0}, toBytes(bits[32:96]))
	for _, pin := range pins {
		assert.True(t, pin.halted, pin.N)
	}

	p.edges = nil
	assert.NoError(t, d.Halt(), "second halt is a no-op")
	assert.Empty(t, p.edges)
	assert.ErrorIs(t, d.Show(), ErrHalted)

	before := d.Pixels()
	assert.ErrorIs(t, d.SetPixel(0, 1, 2, 3, 1), ErrHalted)
	assert.ErrorIs(t, d.SetAll(1, 2, 3, 1), ErrHalted)
	assert.ErrorIs(t, d.SetBrightness(0.5), ErrHalted)
	assert.ErrorIs(t, d.Clear(), ErrHalted)
	assert.ErrorIs(t, d.SetPixel(NumPixels, 1, 2, 3, 1), ErrOutOfRange, "range is checked first")
	assert.ErrorIs(t, d.SetBrightness(2), ErrOutOfRange)
	assert.Equal(t, before, d.Pixels())
	assert.Empty(t, p.edges)
}

func TestImage(t *testing.T) {
	d, _, _ := newTestDev(t, 2)
	require.NoError(t, d.SetPixel(0, 255, 62, 31, 1))
	require.NoError(t, d.SetPixel(1, 255, 255, 255, 0))

	im := d.Image()
	assert.Equal(t, 2, im.Bounds().Dx())
	assert.Equal(t, uint8(255), im.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(62), im.NRGBAAt(0, 0).G)
	assert.Equal(t, uint8(0), im.NRGBAAt(1, 0).R)
	assert.Equal(t, uint8(255), im.NRGBAAt(1, 0).A)
}
