package neldermead

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/simplex/internal/optimization"
)

// Unbounded disables the iteration cap. It must be combined with FTol or
// XTol, otherwise Minimize refuses to run.
const Unbounded = -1

// Settings controls when Minimize stops. A tolerance that is not positive is
// treated as unset.
type Settings struct {
	// MaxIterations is the number of transformation steps after which the
	// loop stops. Negative means no cap.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
	// FTol stops the loop when the best value changes by less than FTol
	// between two consecutive orderings.
	FTol float64 `json:"f_tol,omitempty" yaml:"f_tol"`
	// XTol stops the loop when the best vertex moves by less than XTol
	// (Euclidean distance) between two consecutive orderings.
	XTol float64 `json:"x_tol,omitempty" yaml:"x_tol"`
	// VarTol stops the loop when the norm of the per-coordinate variance of
	// the vertices drops below VarTol.
	VarTol float64 `json:"var_tol,omitempty" yaml:"var_tol"`
}

// terminates reports whether some criterion other than VarTol guarantees
// the loop ends.
func (s Settings) terminates() bool {
	return s.FTol > 0 || s.XTol > 0 || s.MaxIterations >= 0
}

// converged applies the enabled tolerance tests in order: function value,
// location, variance.
func (s Settings) converged(prev, cur optimization.Solution, sx simplex) (Status, bool) {
	if s.FTol > 0 && math.Abs(prev.Value-cur.Value) < s.FTol {
		return FunctionConvergence, true
	}
	if s.XTol > 0 && floats.Distance(prev.Parameters, cur.Parameters, 2) < s.XTol {
		return LocationConvergence, true
	}
	if s.VarTol > 0 && sx.spread() < s.VarTol {
		return VarianceConvergence, true
	}
	return NotTerminated, false
}

// Status tells why Minimize returned.
type Status int

const (
	NotTerminated Status = iota
	IterationLimit
	FunctionConvergence
	LocationConvergence
	VarianceConvergence
)

func (s Status) String() string {
	switch s {
	case NotTerminated:
		return "not_terminated"
	case IterationLimit:
		return "iteration_limit"
	case FunctionConvergence:
		return "function_convergence"
	case LocationConvergence:
		return "location_convergence"
	case VarianceConvergence:
		return "variance_convergence"
	default:
		return "unknown"
	}
}

// Converged reports whether a tolerance test stopped the loop.
func (s Status) Converged() bool {
	return s == FunctionConvergence || s == LocationConvergence || s == VarianceConvergence
}

// StepKind identifies the transformation applied in one iteration.
type StepKind int

const (
	StepNone StepKind = iota
	StepReflect
	StepExpand
	StepContract
	StepShrink
)

func (k StepKind) String() string {
	switch k {
	case StepReflect:
		return "reflect"
	case StepExpand:
		return "expand"
	case StepContract:
		return "contract"
	case StepShrink:
		return "shrink"
	default:
		return "none"
	}
}

// Steps counts the transformations applied during one Minimize call.
type Steps struct {
	Reflections  int `json:"reflections"`
	Expansions   int `json:"expansions"`
	Contractions int `json:"contractions"`
	Shrinks      int `json:"shrinks"`
}

func (s *Steps) add(k StepKind) {
	switch k {
	case StepReflect:
		s.Reflections++
	case StepExpand:
		s.Expansions++
	case StepContract:
		s.Contractions++
	case StepShrink:
		s.Shrinks++
	}
}

// Total returns the number of transformation steps.
func (s Steps) Total() int {
	return s.Reflections + s.Expansions + s.Contractions + s.Shrinks
}

// Result is the outcome of a Minimize call.
type Result struct {
	// X is the best vertex of the most recent ordering.
	X []float64
	// F is the objective value at X, or NaN if no iteration ran.
	F float64
	// Iterations is the number of transformation steps executed.
	Iterations int
	// Evaluations is the number of points passed to the objective.
	Evaluations int
	Status      Status
	Steps       Steps
}

// Solution returns the best point and its value.
func (r *Result) Solution() optimization.Solution {
	return optimization.Solution{
		Parameters: append([]float64(nil), r.X...),
		Value:      r.F,
	}
}

// Iteration is passed to an Observer once per ordered simplex.
type Iteration struct {
	// Number counts completed transformation steps before this ordering.
	Number int
	// Best is the best vertex of this ordering.
	Best optimization.Solution
	// Step is the transformation applied afterwards, StepNone if the loop
	// stopped on a tolerance test.
	Step StepKind
}

// Observer receives iteration progress. It runs on the Minimize goroutine.
type Observer func(Iteration)
