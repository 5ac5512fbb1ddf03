// Package config loads the board configuration from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Strip struct {
	DataPin    string  `yaml:"data_pin"`   // e.g. GPIO10
	ClockPin   string  `yaml:"clock_pin"`  // e.g. GPIO11
	SelectPin  string  `yaml:"select_pin"` // e.g. GPIO8
	NumPixels  int     `yaml:"num_pixels"`
	Brightness float64 `yaml:"brightness"` // 0..1
}

type Display struct {
	Bus        string  `yaml:"bus"` // "" for the first I²C bus
	Address    uint16  `yaml:"address"`
	Brightness float64 `yaml:"brightness"` // 0..1
}

type Lights struct {
	Red   string `yaml:"red"`
	Green string `yaml:"green"`
	Blue  string `yaml:"blue"`
}

type Scroll struct {
	Speed float64 `yaml:"speed"` // seconds per step
	Loop  bool    `yaml:"loop"`
}

type Mirror struct {
	SPI     bool   `yaml:"spi"`
	Port    string `yaml:"port,omitempty"`
	Console bool   `yaml:"console"`
}

type Config struct {
	LogLevel string `yaml:"log_level"` // zerolog level name
	FPS      int    `yaml:"fps"`

	Strip   Strip   `yaml:"strip"`
	Display Display `yaml:"display"`
	Lights  Lights  `yaml:"lights"`
	Scroll  Scroll  `yaml:"scroll"`
	Mirror  Mirror  `yaml:"mirror"`
}

// Default returns the Rainbow HAT wiring.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		FPS:      30,
		Strip: Strip{
			DataPin:    "GPIO10",
			ClockPin:   "GPIO11",
			SelectPin:  "GPIO8",
			NumPixels:  7,
			Brightness: 0.2,
		},
		Display: Display{Address: 0x70, Brightness: 1},
		Lights:  Lights{Red: "GPIO6", Green: "GPIO19", Blue: "GPIO26"},
		Scroll:  Scroll{Speed: 0.3},
	}
}

// Load reads path over Default, so keys missing from the file keep their
// default value.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Level returns the parsed log level.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("config: log_level: %w", err)
	}
	return l, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	switch {
	case c.FPS <= 0:
		return fmt.Errorf("config: fps %d must be positive", c.FPS)
	case c.Strip.DataPin == "" || c.Strip.ClockPin == "" || c.Strip.SelectPin == "":
		return fmt.Errorf("config: strip pins must be set")
	case c.Strip.NumPixels <= 0:
		return fmt.Errorf("config: strip.num_pixels %d must be positive", c.Strip.NumPixels)
	case c.Strip.Brightness < 0 || c.Strip.Brightness > 1:
		return fmt.Errorf("config: strip.brightness %v not in [0,1]", c.Strip.Brightness)
	case c.Display.Address == 0 || c.Display.Address > 0x7F:
		return fmt.Errorf("config: display.address %#x is not a 7-bit address", c.Display.Address)
	case c.Display.Brightness < 0 || c.Display.Brightness > 1:
		return fmt.Errorf("config: display.brightness %v not in [0,1]", c.Display.Brightness)
	case c.Lights.Red == "" || c.Lights.Green == "" || c.Lights.Blue == "":
		return fmt.Errorf("config: light pins must be set")
	case !(c.Scroll.Speed > 0):
		return fmt.Errorf("config: scroll.speed %v must be positive", c.Scroll.Speed)
	}
	return nil
}
