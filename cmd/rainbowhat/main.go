// rainbowhat exercises the Rainbow HAT: it animates the strip, writes to the
// alphanumeric display or runs a self-test until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/rainbowhat"
	"github.com/coreman2200/rainbowhat/effects"
	"github.com/coreman2200/rainbowhat/internal/config"
)

func mainImpl() error {
	var (
		configPath = flag.String("config", "rainbowhat.yaml", "path to the YAML config")
		mode       = flag.String("mode", "rainbow", "rainbow | scroll | text | number | float | hex | selftest")
		text       = flag.String("text", "HELLO WORLD", "text or number to display")
		speed      = flag.Float64("speed", 0, "scroll delay per character in seconds (0: config)")
		loop       = flag.Bool("loop", false, "scroll forever")
		places     = flag.Int("places", 2, "decimal places in float mode")
		fps        = flag.Int("fps", 0, "strip frames per second (0: config)")
		brightness = flag.Float64("brightness", -1, "strip brightness 0..1 (<0: config)")
		sim        = flag.Bool("sim", false, "use in-memory fakes instead of the HAT")
		console    = flag.Bool("console", false, "mirror the strip at the console")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using defaults")
		cfg = config.Default()
	}
	if *speed > 0 {
		cfg.Scroll.Speed = *speed
	}
	if *loop {
		cfg.Scroll.Loop = true
	}
	if *fps > 0 {
		cfg.FPS = *fps
	}
	if *brightness >= 0 {
		cfg.Strip.Brightness = *brightness
	}
	if *console {
		cfg.Mirror.Console = true
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	lvl, _ := cfg.Level()
	zerolog.SetGlobalLevel(lvl)

	var b *rainbowhat.Board
	if *sim {
		b, _, err = rainbowhat.Simulated(cfg, log.Logger)
	} else {
		b, err = rainbowhat.Open(cfg, log.Logger)
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Error().Err(err).Msg("close")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, b, cfg, *mode, *text, *places); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func run(ctx context.Context, b *rainbowhat.Board, cfg *config.Config, mode, text string, places int) error {
	l := &effects.Loop{FPS: cfg.FPS, Logger: &log.Logger}
	switch mode {
	case "rainbow":
		if err := b.Display.DisplayText("RAIN", false); err != nil {
			return err
		}
		return l.Run(ctx, func(elapsed time.Duration) error {
			i := int(elapsed.Seconds()) % 3
			if err := b.Lights.RGB(i == 0, i == 1, i == 2); err != nil {
				return err
			}
			return effects.Rainbow(b, math.Mod(elapsed.Seconds()/4, 1), cfg.Strip.Brightness)
		})

	case "scroll":
		return b.Display.ScrollText(ctx, text, cfg.Scroll.Speed, cfg.Scroll.Loop)

	case "text":
		return hold(ctx, b.Display.DisplayText(text, true))

	case "number":
		return hold(ctx, b.Display.DisplayNumber(text, true))

	case "float":
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return err
		}
		return hold(ctx, b.Display.DisplayFloat(v, places, true))

	case "hex":
		v, err := strconv.ParseInt(text, 0, 32)
		if err != nil {
			return err
		}
		return hold(ctx, b.Display.DisplayHex(int(v), true))

	case "selftest":
		for _, k := range []effects.Kind{effects.IndexSweep, effects.RGBChannels} {
			if err := b.Display.DisplayText(string(k), false); err != nil {
				return err
			}
			r := effects.NewRunner(effects.Plan{Kind: k, Brightness: cfg.Strip.Brightness})
			st := &effects.Loop{FPS: 2, Logger: &log.Logger}
			errDone := errors.New("done")
			err := st.Run(ctx, func(time.Duration) error {
				ok, err := r.Step(b)
				if err != nil {
					return err
				}
				if !ok {
					return errDone
				}
				return nil
			})
			if err != nil && err != errDone {
				return err
			}
			log.Info().Str("test", string(k)).Msg("self-test complete")
		}
		return b.Display.DisplayText("OK", true)
	}
	return fmt.Errorf("unknown mode %q", mode)
}

// hold keeps the display lit until interrupted.
func hold(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "rainbowhat: %s.\n", err)
		os.Exit(1)
	}
}
