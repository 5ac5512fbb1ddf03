package rainbowhat

import (
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/coreman2200/rainbowhat/internal/config"
)

// Sim holds the fakes behind a simulated board.
type Sim struct {
	Bus                 *i2ctest.Record
	Data, Clock, Select *gpiotest.Pin
	Red, Green, Blue    *gpiotest.Pin
}

// Simulated returns a board whose pins and bus are in-memory fakes, for
// running without the HAT.
func Simulated(cfg *config.Config, log zerolog.Logger) (*Board, *Sim, error) {
	s := &Sim{
		Bus:    &i2ctest.Record{},
		Data:   &gpiotest.Pin{N: cfg.Strip.DataPin},
		Clock:  &gpiotest.Pin{N: cfg.Strip.ClockPin},
		Select: &gpiotest.Pin{N: cfg.Strip.SelectPin},
		Red:    &gpiotest.Pin{N: cfg.Lights.Red},
		Green:  &gpiotest.Pin{N: cfg.Lights.Green},
		Blue:   &gpiotest.Pin{N: cfg.Lights.Blue},
	}
	b, err := build(cfg, log, s.Bus, s.Data, s.Clock, s.Select, s.Red, s.Green, s.Blue)
	if err != nil {
		return nil, nil, err
	}
	return b, s, nil
}
