package effects

import "fmt"

// Kind is a self-test pattern.
type Kind string

const (
	None        Kind = ""
	IndexSweep  Kind = "index_sweep"  // one white pixel walking the strip
	RGBChannels Kind = "rgb_channels" // whole strip red, then green, then blue
)

// Plan describes a self-test.
type Plan struct {
	Kind       Kind
	Brightness float64
}

// Runner steps through a self-test pattern.
type Runner struct {
	plan Plan
	step int
}

func NewRunner(plan Plan) *Runner { return &Runner{plan: plan} }
func (r *Runner) Kind() Kind { return r.plan.Kind }

// Step shows the next frame of the pattern on s. It returns false, without
// touching s, once the pattern is complete.
func (r *Runner) Step(s Strip) (bool, error) {
	n := s.Len()
	switch r.plan.Kind {
	case IndexSweep:
		if r.step >= n {
			return false, nil
		}
	case RGBChannels:
		if r.step >= 3 {
			return false, nil
		}
	case None:
		return false, nil
	default:
		return false, fmt.Errorf("effects: unknown self-test %q", r.plan.Kind)
	}

	for i := 0; i < n; i++ {
		var c [3]uint8
		switch r.plan.Kind {
		case IndexSweep:
			if i == r.step {
				c = [3]uint8{255, 255, 255}
			}
		case RGBChannels:
			c[r.step] = 255
		}
		if err := s.SetPixel(i, c[0], c[1], c[2], r.plan.Brightness); err != nil {
			return false, err
		}
	}
	if err := s.Show(); err != nil {
		return false, err
	}
	r.step++
	return true, nil
}
