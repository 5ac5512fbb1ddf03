package effects

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// DefaultFPS is the frame rate used when Loop.FPS is not set.
const DefaultFPS = 30

// Loop calls a frame function at a fixed rate.
type Loop struct {
	FPS    int
	Clock  clockwork.Clock // Defaults to the real clock
	Logger *zerolog.Logger
}

// Run calls frame once per period with the time elapsed since Run started,
// until ctx is done or frame fails. Cancellation is not an error.
func (l *Loop) Run(ctx context.Context, frame func(elapsed time.Duration) error) error {
	fps := l.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	clk := l.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	log := zerolog.Nop()
	if l.Logger != nil {
		log = *l.Logger
	}

	period := time.Second / time.Duration(fps)
	start := clk.Now()
	ticker := clk.NewTicker(period)
	defer ticker.Stop()
	log.Debug().Int("fps", fps).Msg("loop start")

	for {
		select {
		case <-ticker.Chan():
			t := clk.Now()
			if err := frame(t.Sub(start)); err != nil {
				log.Debug().Err(err).Msg("loop frame failed")
				return err
			}
			if took := clk.Since(t); took > period {
				log.Debug().Dur("took", took).Dur("period", period).Msg("frame overrun")
			}
		case <-ctx.Done():
			log.Debug().Err(ctx.Err()).Msg("loop stopped")
			return nil
		}
	}
}
