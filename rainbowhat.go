// Package rainbowhat wires the Pimoroni Rainbow HAT peripherals together: the
// APA102 strip, the HT16K33 alphanumeric display and the status lights.
package rainbowhat

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/coreman2200/rainbowhat/apa102"
	"github.com/coreman2200/rainbowhat/ht16k33"
	"github.com/coreman2200/rainbowhat/internal/config"
	"github.com/coreman2200/rainbowhat/internal/mirror"
	"github.com/coreman2200/rainbowhat/lights"
)

// Board wiring.
const (
	StripDataPin   = "GPIO10"
	StripClockPin  = "GPIO11"
	StripSelectPin = "GPIO8"
	StripPixels    = apa102.NumPixels

	DisplayAddress = ht16k33.DefaultAddress

	RedLightPin   = "GPIO6"
	GreenLightPin = "GPIO19"
	BlueLightPin  = "GPIO26"
)

// Board is an opened Rainbow HAT.
type Board struct {
	Strip   *apa102.Dev
	Display *ht16k33.Dev
	Lights  *lights.Dev
	Mirror  *mirror.Mirror

	bus io.Closer
	log zerolog.Logger
}

// Open initializes the host drivers and opens every peripheral named in cfg.
func Open(cfg *config.Config, log zerolog.Logger) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("rainbowhat: host init: %w", err)
	}
	pins := map[string]gpio.PinIO{}
	for _, name := range []string{
		cfg.Strip.DataPin, cfg.Strip.ClockPin, cfg.Strip.SelectPin,
		cfg.Lights.Red, cfg.Lights.Green, cfg.Lights.Blue,
	} {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("rainbowhat: no pin %q", name)
		}
		pins[name] = p
	}
	bus, err := i2creg.Open(cfg.Display.Bus)
	if err != nil {
		return nil, fmt.Errorf("rainbowhat: i2c bus %q: %w", cfg.Display.Bus, err)
	}
	b, err := build(cfg, log, bus,
		pins[cfg.Strip.DataPin], pins[cfg.Strip.ClockPin], pins[cfg.Strip.SelectPin],
		pins[cfg.Lights.Red], pins[cfg.Lights.Green], pins[cfg.Lights.Blue])
	if err != nil {
		bus.Close()
		return nil, err
	}
	b.bus = bus
	return b, nil
}

func build(cfg *config.Config, log zerolog.Logger, bus i2c.Bus, dat, clk, cs, red, green, blue gpio.PinOut) (_ *Board, err error) {
	b := &Board{log: log}
	defer func() {
		if err != nil {
			b.release()
		}
	}()
	if b.Strip, err = apa102.NewGPIO(dat, clk, cs, &apa102.Opts{NumPixels: cfg.Strip.NumPixels, Logger: &log}); err != nil {
		return nil, err
	}
	if b.Display, err = ht16k33.NewI2C(bus, &ht16k33.Opts{Address: cfg.Display.Address, Logger: &log}); err != nil {
		return nil, err
	}
	if err = b.Display.SetBrightness(cfg.Display.Brightness); err != nil {
		return nil, err
	}
	if b.Lights, err = lights.New(red, green, blue, &log); err != nil {
		return nil, err
	}
	b.Mirror, err = mirror.Open(&mirror.Opts{
		SPI:       cfg.Mirror.SPI,
		Port:      cfg.Mirror.Port,
		Console:   cfg.Mirror.Console,
		NumPixels: cfg.Strip.NumPixels,
		Logger:    &log,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("strip", b.Strip.String()).Str("display", b.Display.String()).Str("mirror", b.Mirror.Kind()).Msg("board ready")
	return b, nil
}

// Len returns the number of strip pixels.
func (b *Board) Len() int { return b.Strip.Len() }

// SetPixel buffers a strip pixel; see apa102.Dev.SetPixel.
func (b *Board) SetPixel(i int, r, g, bl uint8, brightness float64) error {
	return b.Strip.SetPixel(i, r, g, bl, brightness)
}

// Show latches the strip and copies it to the mirror.
func (b *Board) Show() error {
	if err := b.Strip.Show(); err != nil {
		return err
	}
	return b.Mirror.Draw(b.Strip.Image())
}

// release halts whatever has been opened, in teardown order, and returns the
// errors met.
func (b *Board) release() []error {
	var errs []error
	if b.Strip != nil {
		if err := b.Strip.Halt(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.Display != nil {
		if err := b.Display.Halt(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.Lights != nil {
		if err := b.Lights.Halt(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.Mirror != nil {
		if err := b.Mirror.Halt(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Close blanks the strip, clears the display, switches the lights off, then
// releases the mirror and the bus. Every step runs even when an earlier one
// fails.
func (b *Board) Close() error {
	errs := b.release()
	if b.bus != nil {
		if err := b.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("rainbowhat: close bus: %w", err))
		}
		b.bus = nil
	}
	err := errors.Join(errs...)
	b.log.Debug().Err(err).Msg("board closed")
	return err
}
