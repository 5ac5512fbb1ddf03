// Package mirror copies the strip image to a second drawer: a WS281x strip on
// an SPI port or the terminal. It is a development aid; the Rainbow HAT strip
// itself is driven by apa102.
package mirror

import (
	"fmt"
	"image"
	"io"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
)

// Kinds of mirror.
const (
	KindNone    = "none"
	KindNRZ     = "nrzled"
	KindConsole = "console"
)

// nrzFreq is the SPI clock used to shape the NRZ bit stream.
const nrzFreq = 2500 * physic.KiloHertz

// Opts selects the mirror.
type Opts struct {
	SPI       bool   // try a WS281x strip on an SPI port
	Port      string // SPI port name, "" for the first one
	Console   bool   // fall back to the terminal
	NumPixels int
	Logger    *zerolog.Logger
}

// Mirror draws strip images somewhere else. The zero value draws nothing.
type Mirror struct {
	drawer display.Drawer
	port   io.Closer
	kind   string
	log    zerolog.Logger
}

// Open returns the first mirror of opts that can be set up: SPI, then
// console, then none. Failing to find an SPI port is not an error.
func Open(opts *Opts) (*Mirror, error) {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	if opts.SPI {
		p, err := spireg.Open(opts.Port)
		if err == nil {
			m, err := NewSPI(p, opts.NumPixels, &log)
			if err != nil {
				p.Close()
				return nil, err
			}
			m.port = p
			return m, nil
		}
		log.Warn().Err(err).Str("port", opts.Port).Msg("failed to find a SPI port")
	}
	if opts.Console {
		log.Info().Msg("mirroring the strip at the console")
		return NewConsole(opts.NumPixels, &log), nil
	}
	return &Mirror{kind: KindNone, log: log}, nil
}

// NewSPI returns a mirror driving numPixels WS281x LEDs through p.
func NewSPI(p spi.Port, numPixels int, logger *zerolog.Logger) (*Mirror, error) {
	d, err := nrzled.NewSPI(p, &nrzled.Opts{NumPixels: numPixels, Channels: 3, Freq: nrzFreq})
	if err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}
	m := &Mirror{drawer: d, kind: KindNRZ, log: zerolog.Nop()}
	if logger != nil {
		m.log = *logger
	}
	m.log.Debug().Str("dev", d.String()).Msg("mirror ready")
	return m, nil
}

// NewConsole returns a mirror printing numPixels coloured cells on the
// terminal.
func NewConsole(numPixels int, logger *zerolog.Logger) *Mirror {
	m := &Mirror{drawer: screen.New(numPixels), kind: KindConsole, log: zerolog.Nop()}
	if logger != nil {
		m.log = *logger
	}
	return m
}

// Kind returns one of KindNone, KindNRZ or KindConsole.
func (m *Mirror) Kind() string {
	if m.kind == "" {
		return KindNone
	}
	return m.kind
}

// Draw copies img to the mirror.
func (m *Mirror) Draw(img image.Image) error {
	if m.drawer == nil {
		return nil
	}
	if err := m.drawer.Draw(m.drawer.Bounds(), img, img.Bounds().Min); err != nil {
		return fmt.Errorf("mirror: %w", err)
	}
	return nil
}

// Halt blanks the mirror and releases its port.
func (m *Mirror) Halt() error {
	var err error
	if m.drawer != nil {
		err = m.drawer.Halt()
	}
	if m.port != nil {
		if e := m.port.Close(); e != nil && err == nil {
			err = e
		}
		m.port = nil
	}
	return err
}
