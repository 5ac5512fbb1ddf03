package ht16k33

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ScrollText scrolls text across the display, one character per step.
//
// speed is the delay between steps in seconds, so a larger value scrolls
// slower. With loop set, a second copy of text follows the first one and the
// sweep restarts until ctx is done; otherwise text scrolls off the display
// once and ScrollText returns nil.
//
// ctx is checked while waiting between steps. When it is done the display
// is cleared and ctx.Err() is returned.
func (d *Dev) ScrollText(ctx context.Context, text string, speed float64, loop bool) error {
	if !(speed > 0) {
		return fmt.Errorf("%w: scroll speed %v must be positive", ErrOutOfRange, speed)
	}
	if d.halted {
		return ErrHalted
	}
	frames := scrollFrames(text, loop)
	delay := time.Duration(speed * 1000 * float64(time.Millisecond))
	d.log.Debug().Str("text", text).Dur("delay", delay).Bool("loop", loop).Msg("scroll start")
	for {
		for _, f := range frames {
			if err := d.DisplayText(f, false); err != nil {
				return err
			}
			t := d.clock.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				d.log.Debug().Err(ctx.Err()).Msg("scroll canceled")
				if err := d.Clear(); err != nil {
					return err
				}
				return ctx.Err()
			case <-t.Chan():
			}
		}
		if !loop {
			d.log.Debug().Msg("scroll done")
			return nil
		}
	}
}

// scrollFrames returns the successive 4-character windows shown while
// scrolling text.
func scrollFrames(text string, loop bool) []string {
	rs := []rune(text)
	for len(rs) < NumDigits {
		rs = append(rs, ' ')
	}
	if loop {
		rs = append(rs, []rune(text)...)
	} else {
		rs = append(rs, []rune(strings.Repeat(" ", NumDigits))...)
	}
	frames := make([]string, 0, len(rs)-NumDigits+1)
	for i := 0; i+NumDigits <= len(rs); i++ {
		frames = append(frames, string(rs[i:i+NumDigits]))
	}
	return frames
}
