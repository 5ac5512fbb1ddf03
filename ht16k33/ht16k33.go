// Package ht16k33 controls the HT16K33 LED driver wired to the 4-digit
// 14-segment alphanumeric display of the Rainbow HAT.
//
// The chip holds 16 bytes of display RAM; each digit uses two consecutive
// bytes (low byte first) forming a 16-bit segment mask. The driver keeps a
// copy of that RAM in memory. SetChar and SetDecimal only touch the copy,
// the Display* helpers render and then flush, and WriteDisplay sends the whole
// buffer to the chip.
//
// Datasheet: https://www.holtek.com/documents/10179/116711/HT16K33v120.pdf
//
// The methods are not safe for concurrent use.
package ht16k33

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/i2c"
)

const (
	// DefaultAddress is the I²C address of the display on the Rainbow HAT.
	DefaultAddress uint16 = 0x70
	// NumDigits is the number of characters on the display.
	NumDigits = 4
	// BufferSize is the size of the display RAM.
	BufferSize = 16
	// MaxBrightness is the highest dimming level.
	MaxBrightness = 15

	cmdSystemSetup = 0x20
	cmdOscillator  = 0x01
	cmdBlink       = 0x80
	cmdDisplayOn   = 0x01
	cmdBrightness  = 0xE0
)

// BlinkRate is the blinking frequency of the whole display.
type BlinkRate byte

// Blink rates as encoded in the display setup command.
const (
	BlinkOff    BlinkRate = 0x00
	Blink2Hz    BlinkRate = 0x02
	Blink1Hz    BlinkRate = 0x04
	BlinkHalfHz BlinkRate = 0x06
)

func (b BlinkRate) String() string {
	switch b {
	case BlinkOff:
		return "off"
	case Blink2Hz:
		return "2Hz"
	case Blink1Hz:
		return "1Hz"
	case BlinkHalfHz:
		return "0.5Hz"
	}
	return fmt.Sprintf("BlinkRate(%#x)", byte(b))
}

var (
	// ErrOutOfRange is returned when an argument is outside its domain. The
	// buffer and the chip are left untouched.
	ErrOutOfRange = errors.New("ht16k33: out of range")
	// ErrHalted is returned by operations on a halted device.
	ErrHalted = errors.New("ht16k33: halted")
)

// Opts is the configuration for the display.
type Opts struct {
	Address uint16          // I²C address (default: DefaultAddress)
	Clock   clockwork.Clock // Paces ScrollText (default: real clock)
	Logger  *zerolog.Logger // Optional, defaults to a no-op logger
}

// Dev is a handle to the display.
type Dev struct {
	c      i2c.Dev
	buffer [BufferSize]byte
	clock  clockwork.Clock
	log    zerolog.Logger

	brightness byte
	blink      BlinkRate

	halt   sync.Once
	halted bool
}

// NewI2C returns a display on the given bus.
//
// The oscillator is started, blinking is turned off, brightness is set to
// the maximum and the display is cleared. opts can be nil to use defaults.
func NewI2C(bus i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	addr := opts.Address
	if addr == 0 {
		addr = DefaultAddress
	}
	d := &Dev{
		c:     i2c.Dev{Bus: bus, Addr: addr},
		clock: opts.Clock,
		log:   zerolog.Nop(),
	}
	if d.clock == nil {
		d.clock = clockwork.NewRealClock()
	}
	if opts.Logger != nil {
		d.log = *opts.Logger
	}
	if err := d.init(); err != nil {
		return nil, err
	}
	d.log.Debug().Str("dev", d.String()).Msg("ht16k33 ready")
	return d, nil
}

func (d *Dev) init() error {
	if err := d.command(cmdSystemSetup | cmdOscillator); err != nil {
		return err
	}
	if err := d.SetBlinkRate(BlinkOff); err != nil {
		return err
	}
	if err := d.setBrightness(MaxBrightness); err != nil {
		return err
	}
	return d.Clear()
}

// String implements conn.Resource.
func (d *Dev) String() string {
	return fmt.Sprintf("ht16k33{%s}", &d.c)
}

// Brightness returns the last dimming level sent, 0..15.
func (d *Dev) Brightness() int {
	return int(d.brightness)
}

// BlinkRate returns the last blink rate sent.
func (d *Dev) BlinkRate() BlinkRate {
	return d.blink
}

// SetBrightness dims the display. level is a fraction in [0,1] mapped to
// floor(level*15).
func (d *Dev) SetBrightness(level float64) error {
	if math.IsNaN(level) || level < 0 || level > 1 {
		return fmt.Errorf("%w: brightness %v not in [0,1]", ErrOutOfRange, level)
	}
	if d.halted {
		return ErrHalted
	}
	return d.setBrightness(byte(math.Floor(level * MaxBrightness)))
}

func (d *Dev) setBrightness(lvl byte) error {
	if err := d.command(cmdBrightness | lvl); err != nil {
		return err
	}
	d.brightness = lvl
	return nil
}

// SetBlinkRate changes the blink rate and flushes the buffer.
func (d *Dev) SetBlinkRate(rate BlinkRate) error {
	switch rate {
	case BlinkOff, Blink2Hz, Blink1Hz, BlinkHalfHz:
	default:
		return fmt.Errorf("%w: %s", ErrOutOfRange, rate)
	}
	if d.halted {
		return ErrHalted
	}
	if err := d.command(cmdBlink | cmdDisplayOn | byte(rate)); err != nil {
		return err
	}
	d.blink = rate
	return d.WriteDisplay()
}

// Clear blanks the buffer and flushes it.
func (d *Dev) Clear() error {
	if d.halted {
		return ErrHalted
	}
	d.buffer = [BufferSize]byte{}
	return d.WriteDisplay()
}

// Buffer returns a copy of the display RAM image.
func (d *Dev) Buffer() [BufferSize]byte {
	return d.buffer
}

// SetBuffer sets a raw byte of the buffer, without flushing.
func (d *Dev) SetBuffer(pos int, b byte) error {
	if pos < 0 || pos >= BufferSize {
		return fmt.Errorf("%w: buffer position %d not in [0,%d)", ErrOutOfRange, pos, BufferSize)
	}
	d.buffer[pos] = b
	return nil
}

// SetChar puts r at digit pos in the buffer, without flushing.
//
// pos outside [0,3] is ignored. The decimal point is lit when decimal is true
// or r is '.'.
func (d *Dev) SetChar(pos int, r rune, decimal bool) {
	if pos < 0 || pos >= NumDigits {
		return
	}
	m := Encode(r)
	if decimal || r == '.' {
		m |= DecimalPoint
	}
	d.buffer[2*pos] = byte(m)
	d.buffer[2*pos+1] = byte(m >> 8)
}

// SetDecimal turns the decimal point of digit pos on or off, without
// flushing. pos outside [0,3] is ignored.
func (d *Dev) SetDecimal(pos int, on bool) {
	if pos < 0 || pos >= NumDigits {
		return
	}
	const bit = byte(DecimalPoint >> 8)
	if on {
		d.buffer[2*pos+1] |= bit
	} else {
		d.buffer[2*pos+1] &^= bit
	}
}

// DisplayText shows the first 4 characters of text and flushes.
//
// Shorter text is right aligned when justifyRight is set. Empty text clears
// the display.
func (d *Dev) DisplayText(text string, justifyRight bool) error {
	if d.halted {
		return ErrHalted
	}
	if text == "" {
		return d.Clear()
	}
	rs := []rune(text)
	if len(rs) > NumDigits {
		rs = rs[:NumDigits]
	}
	d.buffer = [BufferSize]byte{}
	pos := 0
	if justifyRight {
		pos = NumDigits - len(rs)
	}
	for i, r := range rs {
		d.SetChar(pos+i, r, false)
	}
	return d.WriteDisplay()
}

// DisplayNumber shows a number already formatted as a string and flushes.
//
// A '.' lights the decimal point of the preceding digit instead of taking a
// position. When more than 4 digits remain, "----" is shown.
func (d *Dev) DisplayNumber(s string, justifyRight bool) error {
	if d.halted {
		return ErrHalted
	}
	n := 0
	for _, r := range s {
		if r != '.' {
			n++
		}
	}
	if n > NumDigits {
		s, n = "----", NumDigits
	}
	d.buffer = [BufferSize]byte{}
	pos := 0
	if justifyRight {
		pos = NumDigits - n
	}
	for _, r := range s {
		if r == '.' {
			d.SetDecimal(pos-1, true)
			continue
		}
		d.SetChar(pos, r, false)
		pos++
	}
	return d.WriteDisplay()
}

// DisplayFloat shows v with at most places fractional digits (capped at 3).
//
// When the result doesn't fit in 5 characters the number of fractional digits
// is reduced to what fits before the decimal point runs off the display.
func (d *Dev) DisplayFloat(v float64, places int, justifyRight bool) error {
	if places > 3 {
		places = 3
	}
	if places < 0 {
		places = 0
	}
	s := strconv.FormatFloat(v, 'f', places, 64)
	if len(s) > 5 {
		dot := strings.IndexByte(s, '.')
		switch {
		case dot < 0:
			places = 4 - len(s)
		case v > -1 && v < 0:
			places = 3 - dot
		default:
			places = 4 - dot
		}
		if places < 0 {
			places = 0
		}
		s = strconv.FormatFloat(v, 'f', places, 64)
	}
	return d.DisplayNumber(s, justifyRight)
}

// DisplayHex shows v in uppercase hexadecimal. Values outside [0,0xFFFF] are
// ignored.
func (d *Dev) DisplayHex(v int, justifyRight bool) error {
	if v < 0 || v > 0xFFFF {
		return nil
	}
	return d.DisplayText(fmt.Sprintf("%X", v), justifyRight)
}

// WriteDisplay sends the whole buffer to the chip, one [position, value]
// write per byte.
func (d *Dev) WriteDisplay() error {
	if d.halted {
		return ErrHalted
	}
	for i, b := range d.buffer {
		if err := d.c.Tx([]byte{byte(i), b}, nil); err != nil {
			return fmt.Errorf("ht16k33: write display at %d: %w", i, err)
		}
	}
	return nil
}

// Halt clears the display. Only the first call has an effect; the device
// can't be used afterward. The bus is not closed.
func (d *Dev) Halt() error {
	var err error
	d.halt.Do(func() {
		err = d.Clear()
		d.halted = true
		if err != nil {
			d.log.Warn().Err(err).Msg("ht16k33 halt")
			return
		}
		d.log.Debug().Msg("ht16k33 halted")
	})
	return err
}

func (d *Dev) command(cmd byte) error {
	if err := d.c.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("ht16k33: command %#02x: %w", cmd, err)
	}
	return nil
}
