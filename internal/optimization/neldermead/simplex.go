package neldermead

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/simplex/internal/optimization"
)

// simplex holds the n+1 vertices of one iteration as rows of an
// (n+1)×n matrix. Transformations return a new simplex and leave the
// receiver untouched, so a simplex can be shared with the log safely.
type simplex struct {
	x *mat.Dense
}

func newSimplex(m mat.Matrix) simplex {
	return simplex{x: mat.DenseCopyOf(m)}
}

func (s simplex) size() (vertices, dim int) {
	return s.x.Dims()
}

// vertex returns a copy of row i.
func (s simplex) vertex(i int) []float64 {
	return mat.Row(nil, i, s.x)
}

// ordered evaluates all vertices in one batch and returns the simplex with
// rows sorted by ascending value, together with the sorted values. The sort
// is stable and places NaN values last.
func (s simplex) ordered(objective optimization.BatchObjective) (simplex, []float64, error) {
	values, err := optimization.Evaluate(objective, s.x)
	if err != nil {
		return simplex{}, nil, err
	}

	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := values[idx[a]], values[idx[b]]
		return va < vb || (!math.IsNaN(va) && math.IsNaN(vb))
	})

	r, c := s.x.Dims()
	sorted := mat.NewDense(r, c, nil)
	sortedValues := make([]float64, r)
	for i, j := range idx {
		sorted.SetRow(i, s.x.RawRowView(j))
		sortedValues[i] = values[j]
	}
	return simplex{x: sorted}, sortedValues, nil
}

// centroid is the mean of every vertex except the last one.
func (s simplex) centroid() []float64 {
	r, c := s.x.Dims()
	n := r - 1
	cen := make([]float64, c)
	for i := 0; i < n; i++ {
		floats.Add(cen, s.x.RawRowView(i))
	}
	floats.Scale(1/float64(n), cen)
	return cen
}

// withVertex returns a copy of s with row i replaced by v.
func (s simplex) withVertex(i int, v []float64) simplex {
	next := mat.DenseCopyOf(s.x)
	next.SetRow(i, v)
	return simplex{x: next}
}

// shrunk moves every vertex but the first relative to the first one.
func (s simplex) shrunk(sigma float64, mode ShrinkMode) simplex {
	next := mat.DenseCopyOf(s.x)
	r, _ := next.Dims()
	best := s.x.RawRowView(0)
	for i := 1; i < r; i++ {
		row := next.RawRowView(i)
		dir := make([]float64, len(best))
		if mode == ShrinkToward {
			floats.SubTo(dir, row, best)
		} else {
			floats.SubTo(dir, best, row)
		}
		floats.AddScaledTo(row, best, sigma, dir)
	}
	return simplex{x: next}
}

// spread is the Euclidean norm of the per-coordinate population variance of
// the vertices.
func (s simplex) spread() float64 {
	r, c := s.x.Dims()
	vars := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, s.x)
		_, v := stat.MeanVariance(col, nil)
		// MeanVariance is the unbiased estimate; rescale to divide by r.
		vars[j] = v * float64(r-1) / float64(r)
	}
	return floats.Norm(vars, 2)
}

// towards returns base + coef·(to − from).
func towards(base []float64, coef float64, to, from []float64) []float64 {
	dir := make([]float64, len(base))
	floats.SubTo(dir, to, from)
	out := make([]float64, len(base))
	floats.AddScaledTo(out, base, coef, dir)
	return out
}

// InitialSimplex builds an axis-aligned simplex around x0: the first vertex
// is x0 and vertex i+1 is x0 displaced by step along coordinate i. An empty
// x0 yields an empty matrix, which Minimize rejects.
func InitialSimplex(x0 []float64, step float64) *mat.Dense {
	n := len(x0)
	if n == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(n+1, n, nil)
	m.SetRow(0, x0)
	for i := 0; i < n; i++ {
		row := m.RawRowView(i + 1)
		copy(row, x0)
		row[i] += step
	}
	return m
}
