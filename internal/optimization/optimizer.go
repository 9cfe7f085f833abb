package optimization

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ObjectiveFunction evaluates a single candidate point.
type ObjectiveFunction func([]float64) (float64, error)

// BatchObjective evaluates every row of batch as a candidate point and
// returns one value per row, in row order. Optimizers call it with batches
// of arbitrary size, so implementations must not assume a fixed row count.
type BatchObjective func(batch mat.Matrix) ([]float64, error)

// Solution represents a point in the search space together with its
// objective value.
type Solution struct {
	Parameters []float64 `json:"parameters"`
	Value      float64   `json:"value"`
}

// Pointwise lifts a per-point objective into a BatchObjective. Rows are
// evaluated in order and the first failing row aborts the batch.
func Pointwise(f ObjectiveFunction) BatchObjective {
	return func(batch mat.Matrix) ([]float64, error) {
		r, c := batch.Dims()
		values := make([]float64, r)
		row := make([]float64, c)
		for i := 0; i < r; i++ {
			mat.Row(row, i, batch)
			v, err := f(row)
			if err != nil {
				return nil, WrapErrorf(err, "row %d", i).WithOperation("pointwise")
			}
			values[i] = v
		}
		return values, nil
	}
}

// Evaluate runs objective on batch and checks that it produced exactly one
// value per row. Errors from the objective are wrapped with ErrObjective.
func Evaluate(objective BatchObjective, batch mat.Matrix) ([]float64, error) {
	values, err := objective(batch)
	if err != nil {
		return nil, WrapError(err, ErrObjective).WithOperation("evaluate")
	}
	if r, _ := batch.Dims(); len(values) != r {
		return nil, NewError(ErrBatchSize, fmt.Sprintf("got %d values for %d points", len(values), r)).
			WithOperation("evaluate")
	}
	return values, nil
}
