// Package lights switches the three capacitive-button status LEDs of the
// Rainbow HAT, one GPIO output per colour.
package lights

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
)

// Light names one of the status LEDs.
type Light int

// The status LEDs, left to right on the board.
const (
	Red Light = iota
	Green
	Blue
)

func (l Light) String() string {
	switch l {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	}
	return fmt.Sprintf("Light(%d)", int(l))
}

// ErrHalted is returned by operations on halted lights.
var ErrHalted = errors.New("lights: halted")

// Dev is a handle to the status LEDs.
type Dev struct {
	pins [3]gpio.PinOut
	on   [3]bool
	log  zerolog.Logger

	halt   sync.Once
	halted bool
}

// New returns the status LEDs wired to the given pins, all switched off.
func New(red, green, blue gpio.PinOut, logger *zerolog.Logger) (*Dev, error) {
	d := &Dev{pins: [3]gpio.PinOut{red, green, blue}, log: zerolog.Nop()}
	if logger != nil {
		d.log = *logger
	}
	for i, p := range d.pins {
		if p == nil {
			return nil, fmt.Errorf("lights: %s pin is nil", Light(i))
		}
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("lights: %s: %w", Light(i), err)
		}
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("lights{%s,%s,%s}", d.pins[Red], d.pins[Green], d.pins[Blue])
}

// Set switches a single light.
func (d *Dev) Set(l Light, on bool) error {
	if l < Red || l > Blue {
		return fmt.Errorf("lights: unknown %s", l)
	}
	if d.halted {
		return ErrHalted
	}
	if err := d.pins[l].Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("lights: %s: %w", l, err)
	}
	d.on[l] = on
	return nil
}

// On reports the last state written to l.
func (d *Dev) On(l Light) bool {
	if l < Red || l > Blue {
		return false
	}
	return d.on[l]
}

// RGB switches all three lights at once.
func (d *Dev) RGB(r, g, b bool) error {
	for l, on := range [...]bool{r, g, b} {
		if err := d.Set(Light(l), on); err != nil {
			return err
		}
	}
	return nil
}

// Halt switches every light off and halts the pins. Only the first call has
// an effect.
func (d *Dev) Halt() error {
	var err error
	d.halt.Do(func() {
		err = d.RGB(false, false, false)
		d.halted = true
		for i, p := range d.pins {
			if e := p.Halt(); e != nil && err == nil {
				err = fmt.Errorf("lights: %s: %w", Light(i), e)
			}
		}
		d.log.Debug().Err(err).Msg("lights halted")
	})
	return err
}
