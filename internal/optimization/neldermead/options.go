package neldermead

import "go.uber.org/zap"

// Coefficients are the transformation factors of the simplex method. A zero
// field selects the default value for that factor.
type Coefficients struct {
	Reflection  float64 `json:"reflection,omitempty" yaml:"reflection"`
	Expansion   float64 `json:"expansion,omitempty" yaml:"expansion"`
	Contraction float64 `json:"contraction,omitempty" yaml:"contraction"`
	Shrink      float64 `json:"shrink,omitempty" yaml:"shrink"`
}

// DefaultCoefficients returns the classical factors α=1, γ=2, ρ=0.5, σ=0.5.
func DefaultCoefficients() Coefficients {
	return Coefficients{
		Reflection:  1.0,
		Expansion:   2.0,
		Contraction: 0.5,
		Shrink:      0.5,
	}
}

func (c Coefficients) withDefaults() Coefficients {
	d := DefaultCoefficients()
	if c.Reflection == 0 {
		c.Reflection = d.Reflection
	}
	if c.Expansion == 0 {
		c.Expansion = d.Expansion
	}
	if c.Contraction == 0 {
		c.Contraction = d.Contraction
	}
	if c.Shrink == 0 {
		c.Shrink = d.Shrink
	}
	return c
}

// ShrinkMode selects the arithmetic of the shrink step.
type ShrinkMode int

const (
	// ShrinkMirror moves every non-best vertex v to best + σ·(best − v),
	// i.e. to the far side of the best vertex.
	ShrinkMirror ShrinkMode = iota
	// ShrinkToward moves every non-best vertex v to best + σ·(v − best),
	// the textbook Nelder-Mead shrink.
	ShrinkToward
)

func (m ShrinkMode) String() string {
	switch m {
	case ShrinkMirror:
		return "mirror"
	case ShrinkToward:
		return "toward"
	default:
		return "unknown"
	}
}

// ParseShrinkMode maps "mirror" or "toward" to a ShrinkMode. The empty
// string selects ShrinkMirror.
func ParseShrinkMode(s string) (ShrinkMode, bool) {
	switch s {
	case "", "mirror":
		return ShrinkMirror, true
	case "toward":
		return ShrinkToward, true
	default:
		return ShrinkMirror, false
	}
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithCoefficients sets the transformation factors.
func WithCoefficients(c Coefficients) Option {
	return func(o *Optimizer) {
		o.coef = c.withDefaults()
	}
}

// WithSimplexLog enables or disables recording of one simplex snapshot per
// iteration.
func WithSimplexLog(enabled bool) Option {
	return func(o *Optimizer) {
		o.logSimplices = enabled
	}
}

// WithShrinkMode selects the shrink arithmetic.
func WithShrinkMode(mode ShrinkMode) Option {
	return func(o *Optimizer) {
		o.shrink = mode
	}
}

// WithLogger sets the logger used for per-iteration debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Optimizer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver registers a callback invoked once per ordered simplex.
func WithObserver(observer Observer) Option {
	return func(o *Optimizer) {
		o.observer = observer
	}
}
