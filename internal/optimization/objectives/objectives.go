// Package objectives is a catalogue of named benchmark functions that can be
// minimized by name, e.g. from the optimization server.
package objectives

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/optimize/functions"

	"github.com/copyleftdev/simplex/internal/optimization"
)

// Objective is a benchmark function with a known global minimizer.
type Objective struct {
	Name        string
	Description string
	// Dim is the only dimension the function accepts, or 0 if any
	// dimension of at least MinDim works.
	Dim    int
	MinDim int
	// Start is a customary starting point for the dimension Dim, or nil
	// for dimension-free functions.
	Start []float64

	problem optimize.Problem
	minimum func(dim int) []float64
}

// Func returns the objective as a per-point function. Points of an
// unsupported dimension are reported as errors rather than evaluated.
func (o Objective) Func() optimization.ObjectiveFunction {
	eval := FromProblem(o.problem)
	return func(x []float64) (float64, error) {
		if err := o.CheckDim(len(x)); err != nil {
			return 0, err
		}
		return eval(x)
	}
}

// Batch returns the objective in batch form.
func (o Objective) Batch() optimization.BatchObjective {
	return optimization.Pointwise(o.Func())
}

// Minimum returns the global minimizer for the given dimension.
func (o Objective) Minimum(dim int) []float64 {
	return o.minimum(dim)
}

// CheckDim reports whether the objective accepts points of dimension dim.
func (o Objective) CheckDim(dim int) error {
	if o.Dim != 0 && dim != o.Dim {
		return optimization.NewErrorf("%s needs dimension %d, got %d", o.Name, o.Dim, dim).
			WithComponent("objectives")
	}
	if dim < o.MinDim {
		return optimization.NewErrorf("%s needs dimension at least %d, got %d", o.Name, o.MinDim, dim).
			WithComponent("objectives")
	}
	return nil
}

// FromProblem adapts a gonum optimization problem to a per-point objective.
func FromProblem(p optimize.Problem) optimization.ObjectiveFunction {
	return func(x []float64) (float64, error) {
		if p.Func == nil {
			return 0, optimization.NewErrorf("problem has no Func").WithComponent("objectives")
		}
		return p.Func(x), nil
	}
}

func fill(dim int, v float64) []float64 {
	x := make([]float64, dim)
	for i := range x {
		x[i] = v
	}
	return x
}

func fixed(x ...float64) func(int) []float64 {
	return func(int) []float64 {
		return append([]float64(nil), x...)
	}
}

var catalogue = map[string]Objective{}

func register(o Objective) {
	if _, exists := catalogue[o.Name]; exists {
		panic(fmt.Sprintf("objectives: duplicate objective %q", o.Name))
	}
	catalogue[o.Name] = o
}

func init() {
	register(Objective{
		Name:        "sphere",
		Description: "sum of squares, minimum 0 at the origin",
		MinDim:      1,
		problem: optimize.Problem{Func: func(x []float64) float64 {
			sum := 0.0
			for _, v := range x {
				sum += v * v
			}
			return sum
		}},
		minimum: func(dim int) []float64 { return fill(dim, 0) },
	})
	register(Objective{
		Name:        "rosenbrock",
		Description: "extended Rosenbrock valley, minimum 0 at (1, ..., 1)",
		MinDim:      2,
		Start:       []float64{-1.2, 1},
		problem:     optimize.Problem{Func: functions.ExtendedRosenbrock{}.Func},
		minimum:     func(dim int) []float64 { return fill(dim, 1) },
	})
	register(Objective{
		Name:        "beale",
		Description: "Beale function, minimum 0 at (3, 0.5)",
		Dim:         2,
		Start:       []float64{1, 1},
		problem:     optimize.Problem{Func: functions.Beale{}.Func},
		minimum:     fixed(3, 0.5),
	})
	register(Objective{
		Name:        "helical_valley",
		Description: "Fletcher-Powell helical valley, minimum 0 at (1, 0, 0)",
		Dim:         3,
		Start:       []float64{-1, 0, 0},
		problem:     optimize.Problem{Func: functions.HelicalValley{}.Func},
		minimum:     fixed(1, 0, 0),
	})
	register(Objective{
		Name:        "wood",
		Description: "Wood function, minimum 0 at (1, 1, 1, 1)",
		Dim:         4,
		Start:       []float64{-3, -1, -3, -1},
		problem:     optimize.Problem{Func: functions.Wood{}.Func},
		minimum:     fixed(1, 1, 1, 1),
	})
	register(Objective{
		Name:        "himmelblau",
		Description: "Himmelblau function, four minima of value 0, one at (3, 2)",
		Dim:         2,
		Start:       []float64{2, 1},
		problem: optimize.Problem{Func: func(x []float64) float64 {
			a := x[0]*x[0] + x[1] - 11
			b := x[0] + x[1]*x[1] - 7
			return a*a + b*b
		}},
		minimum: fixed(3, 2),
	})
	register(Objective{
		Name:        "booth",
		Description: "Booth function, minimum 0 at (1, 3)",
		Dim:         2,
		Start:       []float64{0, 0},
		problem: optimize.Problem{Func: func(x []float64) float64 {
			a := x[0] + 2*x[1] - 7
			b := 2*x[0] + x[1] - 5
			return a*a + b*b
		}},
		minimum: fixed(1, 3),
	})
}

// Lookup returns the objective registered under name.
func Lookup(name string) (Objective, bool) {
	o, ok := catalogue[name]
	return o, ok
}

// Names returns the registered objective names in sorted order.
func Names() []string {
	names := make([]string, 0, len(catalogue))
	for name := range catalogue {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered objective, sorted by name.
func All() []Objective {
	names := Names()
	out := make([]Objective, len(names))
	for i, name := range names {
		out[i] = catalogue[name]
	}
	return out
}
