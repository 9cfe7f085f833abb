package server

import (
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/simplex/internal/errors"
	"github.com/copyleftdev/simplex/internal/optimization/neldermead"
	"github.com/copyleftdev/simplex/internal/optimization/objectives"
)

// OptimizeRequest starts a job. Unset fields take the configured defaults.
// The starting simplex is either InitialSimplex or the axis-aligned simplex
// built from Start and Step; with neither, the objective's customary
// starting point is used.
type OptimizeRequest struct {
	Objective      string                   `json:"objective"`
	InitialSimplex [][]float64              `json:"initial_simplex,omitempty"`
	Start          []float64                `json:"start,omitempty"`
	Step           *float64                 `json:"step,omitempty"`
	MaxIterations  *int                     `json:"max_iterations,omitempty"`
	FTol           *float64                 `json:"f_tol,omitempty"`
	XTol           *float64                 `json:"x_tol,omitempty"`
	VarTol         *float64                 `json:"var_tol,omitempty"`
	Coefficients   *neldermead.Coefficients `json:"coefficients,omitempty"`
	Shrink         string                   `json:"shrink,omitempty"`
	LogSimplices   *bool                    `json:"log_simplices,omitempty"`
}

// jobSpec is a validated request.
type jobSpec struct {
	objective    objectives.Objective
	simplex      *mat.Dense
	settings     neldermead.Settings
	coef         neldermead.Coefficients
	shrink       neldermead.ShrinkMode
	logSimplices bool
}

func invalid(format string, args ...interface{}) error {
	return errors.Errorf(errors.KindInvalid, format, args...).WithComponent("server").WithOperation("validate")
}

func (s *Server) resolve(req OptimizeRequest) (jobSpec, error) {
	opt := s.cfg.Optimization
	var spec jobSpec

	if req.Objective == "" {
		return spec, invalid("objective is required")
	}
	obj, ok := objectives.Lookup(req.Objective)
	if !ok {
		return spec, invalid("unknown objective %q", req.Objective)
	}
	spec.objective = obj

	sx, err := startingSimplex(req, obj, opt.Step)
	if err != nil {
		return spec, err
	}
	_, dim := sx.Dims()
	if err := obj.CheckDim(dim); err != nil {
		return spec, invalid("%v", err)
	}
	spec.simplex = sx

	spec.settings = s.cfg.Settings()
	if req.MaxIterations != nil {
		spec.settings.MaxIterations = *req.MaxIterations
	}
	// Jobs always terminate: unbounded or oversized budgets are clamped.
	if spec.settings.MaxIterations < 0 || spec.settings.MaxIterations > opt.MaxIterationsLimit {
		spec.settings.MaxIterations = opt.MaxIterationsLimit
	}
	if req.FTol != nil {
		spec.settings.FTol = *req.FTol
	}
	if req.XTol != nil {
		spec.settings.XTol = *req.XTol
	}
	if req.VarTol != nil {
		spec.settings.VarTol = *req.VarTol
	}

	spec.coef = s.cfg.Coefficients()
	if req.Coefficients != nil {
		spec.coef = overrideCoefficients(spec.coef, *req.Coefficients)
	}

	shrink := req.Shrink
	if shrink == "" {
		shrink = opt.ShrinkMode
	}
	if spec.shrink, ok = neldermead.ParseShrinkMode(shrink); !ok {
		return spec, invalid("unknown shrink mode %q", req.Shrink)
	}

	spec.logSimplices = opt.LogSimplices
	if req.LogSimplices != nil {
		spec.logSimplices = *req.LogSimplices
	}
	return spec, nil
}

// overrideCoefficients replaces the fields of base that are set in req.
// Zero fields of req keep the configured values.
func overrideCoefficients(base, req neldermead.Coefficients) neldermead.Coefficients {
	if req.Reflection != 0 {
		base.Reflection = req.Reflection
	}
	if req.Expansion != 0 {
		base.Expansion = req.Expansion
	}
	if req.Contraction != 0 {
		base.Contraction = req.Contraction
	}
	if req.Shrink != 0 {
		base.Shrink = req.Shrink
	}
	return base
}

func startingSimplex(req OptimizeRequest, obj objectives.Objective, defaultStep float64) (*mat.Dense, error) {
	if len(req.InitialSimplex) > 0 {
		if len(req.Start) > 0 {
			return nil, invalid("give either initial_simplex or start, not both")
		}
		rows, cols := len(req.InitialSimplex), len(req.InitialSimplex[0])
		if rows < 2 || cols < 1 {
			return nil, invalid("initial_simplex needs at least 2 vertices of dimension 1 or more")
		}
		data := make([]float64, 0, rows*cols)
		for i, row := range req.InitialSimplex {
			if len(row) != cols {
				return nil, invalid("initial_simplex row %d has %d coordinates, want %d", i, len(row), cols)
			}
			data = append(data, row...)
		}
		return mat.NewDense(rows, cols, data), nil
	}

	start := req.Start
	if len(start) == 0 {
		start = obj.Start
	}
	if len(start) == 0 {
		return nil, invalid("%s has no default start; give start or initial_simplex", obj.Name)
	}
	step := defaultStep
	if req.Step != nil {
		step = *req.Step
	}
	if step == 0 {
		return nil, invalid("step must be non-zero")
	}
	return neldermead.InitialSimplex(start, step), nil
}
