// Package neldermead implements the Nelder-Mead simplex method, a
// derivative-free local minimizer driven by a batch-evaluated objective.
package neldermead

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/simplex/internal/optimization"
)

const component = "neldermead"

// Optimizer runs the Nelder-Mead method with a fixed set of coefficients.
// The coefficients never change after New. An Optimizer may be reused for
// any number of sequential Minimize calls but must not run two calls
// concurrently, since each call resets the simplex log.
type Optimizer struct {
	coef         Coefficients
	shrink       ShrinkMode
	logSimplices bool
	logger       *zap.Logger
	observer     Observer

	simplices []*mat.Dense
}

// New creates an Optimizer with the default coefficients unless overridden
// by opts.
func New(opts ...Option) *Optimizer {
	o := &Optimizer{
		coef:   DefaultCoefficients(),
		shrink: ShrinkMirror,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Coefficients returns the transformation factors in use.
func (o *Optimizer) Coefficients() Coefficients {
	return o.coef
}

// ShrinkMode returns the shrink arithmetic in use.
func (o *Optimizer) ShrinkMode() ShrinkMode {
	return o.shrink
}

// SimplexLog returns the simplices recorded by the last Minimize call, one
// per iteration, each captured before that iteration's ordering. It is empty
// unless logging was enabled with WithSimplexLog.
func (o *Optimizer) SimplexLog() []*mat.Dense {
	out := make([]*mat.Dense, len(o.simplices))
	for i, s := range o.simplices {
		out[i] = mat.DenseCopyOf(s)
	}
	return out
}

// Minimize searches for a local minimum of objective starting from the
// (n+1)×n matrix initial, whose rows are the starting vertices. The caller's
// matrix is not modified.
//
// It returns an error wrapping optimization.ErrNoTermination before doing
// any work when neither FTol nor XTol is set and MaxIterations is negative.
// Errors returned by the objective abort the call.
func (o *Optimizer) Minimize(objective optimization.BatchObjective, initial mat.Matrix, settings Settings) (*Result, error) {
	if !settings.terminates() {
		return nil, optimization.NewError(optimization.ErrNoTermination,
			"f_tol and x_tol are unset and max_iterations is unbounded").
			WithOperation("minimize").WithComponent(component)
	}
	if initial == nil {
		return nil, optimization.NewError(optimization.ErrInvalidSimplex, "initial simplex is nil").
			WithOperation("minimize").WithComponent(component)
	}
	if r, c := initial.Dims(); r < 2 || c < 1 {
		return nil, optimization.NewError(optimization.ErrInvalidSimplex,
			fmt.Sprintf("need at least 2 vertices of dimension 1, got %dx%d", r, c)).
			WithOperation("minimize").WithComponent(component)
	}

	o.simplices = nil

	s := newSimplex(initial)
	vertices, _ := s.size()
	res := &Result{F: math.NaN(), Status: IterationLimit}

	var prev *optimization.Solution
	for res.Iterations != settings.MaxIterations {
		if o.logSimplices {
			o.simplices = append(o.simplices, mat.DenseCopyOf(s.x))
		}

		ordered, values, err := s.ordered(objective)
		if err != nil {
			return nil, o.abort(err, res)
		}
		res.Evaluations += vertices
		s = ordered

		cur := optimization.Solution{Parameters: s.vertex(0), Value: values[0]}
		res.X, res.F = cur.Parameters, cur.Value

		if prev != nil {
			if status, ok := settings.converged(*prev, cur, s); ok {
				res.Status = status
				o.notify(res.Iterations, cur, StepNone)
				break
			}
		}

		number := res.Iterations
		res.Iterations++
		prev = &cur

		next, kind, evals, err := o.step(objective, s, values)
		res.Evaluations += evals
		if err != nil {
			return nil, o.abort(err, res)
		}
		s = next
		res.Steps.add(kind)

		o.logger.Debug("simplex iteration",
			zap.Int("iteration", number),
			zap.Float64("best", cur.Value),
			zap.Float64("worst", values[vertices-1]),
			zap.Stringer("step", kind),
		)
		o.notify(number, cur, kind)
	}

	if res.X == nil {
		res.X = s.vertex(0)
	}

	o.logger.Debug("minimization finished",
		zap.Stringer("status", res.Status),
		zap.Int("iterations", res.Iterations),
		zap.Int("evaluations", res.Evaluations),
		zap.Float64("best", res.F),
	)
	return res, nil
}

// step applies one reflect/expand/contract/shrink decision to the ordered
// simplex s with values f. It returns the next simplex, the transformation
// applied and the number of single-point evaluations spent.
func (o *Optimizer) step(objective optimization.BatchObjective, s simplex, f []float64) (simplex, StepKind, int, error) {
	n := len(f) - 1
	worst := s.vertex(n)
	c := s.centroid()

	xr := towards(c, o.coef.Reflection, c, worst)
	fr, err := evaluatePoint(objective, xr)
	if err != nil {
		return simplex{}, StepNone, 1, err
	}
	if f[0] <= fr && fr < f[n-1] {
		return s.withVertex(n, xr), StepReflect, 1, nil
	}

	if fr < f[0] {
		xe := towards(c, o.coef.Expansion, xr, c)
		fe, err := evaluatePoint(objective, xe)
		if err != nil {
			return simplex{}, StepNone, 2, err
		}
		if fe < fr {
			return s.withVertex(n, xe), StepExpand, 2, nil
		}
		return s.withVertex(n, xr), StepReflect, 2, nil
	}

	xc := towards(c, o.coef.Contraction, worst, c)
	fc, err := evaluatePoint(objective, xc)
	if err != nil {
		return simplex{}, StepNone, 2, err
	}
	if fc < f[n] {
		return s.withVertex(n, xc), StepContract, 2, nil
	}

	return s.shrunk(o.coef.Shrink, o.shrink), StepShrink, 2, nil
}

func (o *Optimizer) notify(number int, best optimization.Solution, kind StepKind) {
	if o.observer == nil {
		return
	}
	o.observer(Iteration{
		Number: number,
		Best: optimization.Solution{
			Parameters: append([]float64(nil), best.Parameters...),
			Value:      best.Value,
		},
		Step: kind,
	})
}

func (o *Optimizer) abort(err error, res *Result) error {
	o.logger.Debug("minimization aborted",
		zap.Error(err),
		zap.Int("iterations", res.Iterations),
		zap.Int("evaluations", res.Evaluations),
	)
	if e, ok := optimization.IsOptimizationError(err); ok && e.Component == "" {
		return e.WithComponent(component)
	}
	return err
}

// evaluatePoint evaluates a single point as a batch of one.
func evaluatePoint(objective optimization.BatchObjective, x []float64) (float64, error) {
	values, err := optimization.Evaluate(objective, mat.NewDense(1, len(x), append([]float64(nil), x...)))
	if err != nil {
		return 0, err
	}
	return values[0], nil
}
