package ht16k33

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestScrollFrames(t *testing.T) {
	tests := []struct {
		text string
		loop bool
		want []string
	}{
		{"AB", false, []string{"AB  ", "B   ", "    ", "    ", "    "}},
		{"AB", true, []string{"AB  ", "B  A", "  AB"}},
		{"HELLO", false, []string{"HELL", "ELLO", "LLO ", "LO  ", "O   ", "    "}},
		{"HELLO", true, []string{"HELL", "ELLO", "LLOH", "LOHE", "OHEL", "HELL", "ELLO"}},
		{"", false, []string{"    ", "    ", "    ", "    ", "    "}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scrollFrames(tt.text, tt.loop), "%q loop=%v", tt.text, tt.loop)
	}
}

func newScrollDev(t *testing.T) (*Dev, clockwork.FakeClock) {
	clk := clockwork.NewFakeClock()
	d, err := NewI2C(&i2ctest.Record{}, &Opts{Clock: clk})
	require.NoError(t, err)
	return d, clk
}

// textBuffer renders s left aligned on a scratch display.
func textBuffer(t *testing.T, s string) [BufferSize]byte {
	ref, _ := newTestDev(t)
	require.NoError(t, ref.DisplayText(s, false))
	return ref.Buffer()
}

func TestScrollTextOnce(t *testing.T) {
	d, clk := newScrollDev(t)
	const delay = 250 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- d.ScrollText(context.Background(), "AB", 0.25, false) }()

	for _, f := range scrollFrames("AB", false) {
		clk.BlockUntil(1)
		assert.Equal(t, textBuffer(t, f), d.Buffer(), "frame %q", f)
		select {
		case err := <-done:
			t.Fatalf("returned early: %v", err)
		default:
		}
		clk.Advance(delay)
	}
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ScrollText didn't return")
	}
	assert.Equal(t, [BufferSize]byte{}, d.Buffer())
}

func TestScrollTextLoopCanceled(t *testing.T) {
	d, clk := newScrollDev(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.ScrollText(ctx, "AB", 1, true) }()

	frames := scrollFrames("AB", true)
	for i := 0; i < 2*len(frames); i++ {
		clk.BlockUntil(1)
		assert.Equal(t, textBuffer(t, frames[i%len(frames)]), d.Buffer(), "step %d", i)
		clk.Advance(time.Second)
	}
	clk.BlockUntil(1)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("ScrollText ignored cancellation")
	}
	assert.Equal(t, [BufferSize]byte{}, d.Buffer())
}

func TestScrollTextSpeed(t *testing.T) {
	d, _ := newScrollDev(t)
	before := d.Buffer()
	for _, s := range []float64{0, -1, math.NaN()} {
		assert.ErrorIs(t, d.ScrollText(context.Background(), "AB", s, false), ErrOutOfRange)
	}
	assert.Equal(t, before, d.Buffer())
}

func TestScrollTextHalted(t *testing.T) {
	d, _ := newScrollDev(t)
	require.NoError(t, d.Halt())
	assert.ErrorIs(t, d.ScrollText(context.Background(), "AB", 1, false), ErrHalted)
}
