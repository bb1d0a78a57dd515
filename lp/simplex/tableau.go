package simplex

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/metnet/lp"
)

const (
	// pivotTol is the smallest tableau entry accepted as a pivot.
	pivotTol = 1e-9
	// dropTol is the smallest entry used to pivot an artificial out of the
	// basis after phase one.
	dropTol = 1e-7
	// blandAfter switches pricing to Bland's rule after this many
	// consecutive degenerate steps.
	blandAfter = 50
	// refreshEvery is the step interval between recomputations of the basic
	// values from the tableau.
	refreshEvery = 100
	// ctxEvery is the step interval between context checks.
	ctxEvery = 32
	// feasFactor scales Options.Tolerance into the phase-one threshold.
	feasFactor = 1e3
)

// tableau is a bounded-variable primal simplex over the row-activity form
//
//	A·x − r = 0,  l ≤ x ≤ u,  rl ≤ r ≤ ru
//
// Columns are the n structural variables, one activity variable r per row,
// then one artificial per row whose starting activity violates its bounds.
// Row i reads x_B(i) + Σ T[i][j]·x_j = 0 over nonbasic j.
type tableau struct {
	n     int
	art   int // first artificial column
	cols  int
	rows  [][]float64
	basis []int
	basic []bool
	lower []float64
	upper []float64
	x     []float64
	d     []float64 // reduced costs

	tol     float64
	steps   int
	maxStep int
}

func startValue(lo, hi float64) float64 {
	switch {
	case !math.IsInf(lo, -1):
		return lo
	case !math.IsInf(hi, 1):
		return hi
	default:
		return 0
	}
}

func rowBounds(c lp.Constraint) (float64, float64) {
	rhs := c.RHS - c.Expr.Constant
	switch c.Rel {
	case lp.LessEqual:
		return math.Inf(-1), rhs
	case lp.GreaterEqual:
		return rhs, math.Inf(1)
	default:
		return rhs, rhs
	}
}

// newTableau places every structural variable at a finite bound (0 when
// free) and starts from the basis of row activities, replacing the activity
// by an artificial wherever it falls outside the row bounds.
func newTableau(lower, upper []float64, cons []lp.Constraint, tol float64) *tableau {
	n, m := len(lower), len(cons)

	x0 := make([]float64, n)
	for j := range x0 {
		x0[j] = startValue(lower[j], upper[j])
	}
	rl, ru := make([]float64, m), make([]float64, m)
	act := make([]float64, m)
	artificial := 0
	for i, c := range cons {
		rl[i], ru[i] = rowBounds(c)
		for _, t := range c.Expr.Terms() {
			act[i] += t.Coeff * x0[t.Var]
		}
		if act[i] < rl[i]-tol || act[i] > ru[i]+tol {
			artificial++
		}
	}

	cols := n + m + artificial
	t := &tableau{
		n:       n,
		art:     n + m,
		cols:    cols,
		rows:    make([][]float64, m),
		basis:   make([]int, m),
		basic:   make([]bool, cols),
		lower:   make([]float64, cols),
		upper:   make([]float64, cols),
		x:       make([]float64, cols),
		d:       make([]float64, cols),
		tol:     tol,
		maxStep: 50*(m+cols) + 1000,
	}
	copy(t.lower, lower)
	copy(t.upper, upper)
	copy(t.x, x0)
	if m == 0 {
		return t
	}

	dense := mat.NewDense(m, cols, nil)
	next := t.art
	for i, c := range cons {
		row := dense.RawRowView(i)
		t.rows[i] = row
		for _, term := range c.Expr.Terms() {
			row[term.Var] += term.Coeff
		}
		r := n + i
		row[r] = -1
		t.lower[r], t.upper[r] = rl[i], ru[i]
		t.x[r] = act[i]

		if act[i] >= rl[i]-tol && act[i] <= ru[i]+tol {
			floats.Scale(-1, row)
			t.setBasic(i, r)
			continue
		}

		if act[i] < rl[i] {
			t.x[r] = rl[i]
		} else {
			t.x[r] = ru[i]
		}
		residual := act[i] - t.x[r]
		sigma := 1.0
		if residual > 0 {
			sigma = -1
		}
		row[next] = sigma
		t.lower[next], t.upper[next] = 0, math.Inf(1)
		t.x[next] = math.Abs(residual)
		floats.Scale(sigma, row)
		t.setBasic(i, next)
		next++
	}

	return t
}

func (t *tableau) setBasic(i, j int) {
	t.basis[i] = j
	t.basic[j] = true
}

// solve minimizes cost (over the structural columns) and returns the
// structural values.
func (t *tableau) solve(ctx context.Context, cost []float64) ([]float64, error) {
	if t.art < t.cols {
		c := make([]float64, t.cols)
		for j := t.art; j < t.cols; j++ {
			c[j] = 1
		}
		t.setCost(c)
		if err := t.iterate(ctx); err != nil {
			if errors.Is(err, lp.ErrUnbounded) {
				return nil, fmt.Errorf("%w: unbounded phase one", lp.ErrSolver)
			}
			return nil, err
		}
		t.refresh()
		if floats.Sum(t.x[t.art:]) > feasFactor*t.tol {
			return nil, lp.ErrInfeasible
		}
		t.dropArtificials()
	}

	c := make([]float64, t.cols)
	copy(c, cost)
	t.setCost(c)
	if err := t.iterate(ctx); err != nil {
		return nil, err
	}
	t.refresh()

	return append([]float64(nil), t.x[:t.n]...), nil
}

// setCost installs c and recomputes the reduced costs of the current basis.
func (t *tableau) setCost(c []float64) {
	copy(t.d, c)
	for i, row := range t.rows {
		if cb := c[t.basis[i]]; cb != 0 {
			floats.AddScaled(t.d, -cb, row)
		}
	}
}

// dropArtificials fixes the artificials at zero and pivots the basic ones
// out where the row still has a usable entry. Rows without one are
// redundant and keep their artificial.
func (t *tableau) dropArtificials() {
	for j := t.art; j < t.cols; j++ {
		t.lower[j], t.upper[j], t.x[j] = 0, 0, 0
	}
	for i, row := range t.rows {
		if t.basis[i] < t.art {
			continue
		}
		q, best := -1, dropTol
		for j := 0; j < t.art; j++ {
			if a := math.Abs(row[j]); !t.basic[j] && a > best {
				q, best = j, a
			}
		}
		if q >= 0 {
			t.pivot(i, q)
		}
	}
	t.refresh()
}

func (t *tableau) iterate(ctx context.Context) error {
	degenerate := 0
	for {
		if t.steps%ctxEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if t.steps >= t.maxStep {
			return fmt.Errorf("%w: no optimum after %d steps", lp.ErrSolver, t.steps)
		}
		if t.steps > 0 && t.steps%refreshEvery == 0 {
			t.refresh()
		}

		bland := degenerate > blandAfter
		q, dir := t.price(bland)
		if q < 0 {
			return nil
		}
		moved, err := t.step(q, dir, bland)
		if err != nil {
			return err
		}
		t.steps++
		if moved <= t.tol {
			degenerate++
		} else {
			degenerate = 0
		}
	}
}

// price picks an entering column and its direction (+1 up, −1 down):
// the largest reduced cost, or the lowest index under Bland's rule.
func (t *tableau) price(bland bool) (int, float64) {
	q, dir, best := -1, 0.0, 0.0
	for j, dj := range t.d {
		if t.basic[j] {
			continue
		}
		var s float64
		switch {
		case dj < -t.tol && t.x[j] < t.upper[j]:
			s = 1
		case dj > t.tol && t.x[j] > t.lower[j]:
			s = -1
		default:
			continue
		}
		if bland {
			return j, s
		}
		if a := math.Abs(dj); a > best {
			q, dir, best = j, s, a
		}
	}

	return q, dir
}

// rowLimit is how far the entering column may move before the basic
// variable of row i reaches a bound; alpha is dir·T[i][q].
func (t *tableau) rowLimit(i int, alpha float64) (float64, bool) {
	b := t.basis[i]
	switch {
	case alpha > pivotTol && !math.IsInf(t.lower[b], -1):
		return math.Max(0, (t.x[b]-t.lower[b])/alpha), true
	case alpha < -pivotTol && !math.IsInf(t.upper[b], 1):
		return math.Max(0, (t.upper[b]-t.x[b])/-alpha), true
	}
	return 0, false
}

// step moves column q in direction dir as far as the bounds allow, either
// flipping q to its opposite bound or pivoting it into the basis. It returns
// the distance moved.
func (t *tableau) step(q int, dir float64, bland bool) (float64, error) {
	flip := t.upper[q] - t.x[q]
	if dir < 0 {
		flip = t.x[q] - t.lower[q]
	}
	limit := math.Inf(1)
	for i, row := range t.rows {
		if l, ok := t.rowLimit(i, dir*row[q]); ok && l < limit {
			limit = l
		}
	}
	if math.IsInf(flip, 1) && math.IsInf(limit, 1) {
		return 0, lp.ErrUnbounded
	}

	if flip <= limit {
		t.move(q, dir*flip)
		if dir > 0 {
			t.x[q] = t.upper[q]
		} else {
			t.x[q] = t.lower[q]
		}
		return flip, nil
	}

	leave, best := -1, 0.0
	ties := limit + 1e-12*math.Max(1, limit)
	for i, row := range t.rows {
		alpha := dir * row[q]
		l, ok := t.rowLimit(i, alpha)
		if !ok || l > ties {
			continue
		}
		if bland {
			if leave < 0 || t.basis[i] < t.basis[leave] {
				leave = i
			}
			continue
		}
		if a := math.Abs(alpha); a > best {
			leave, best = i, a
		}
	}

	alpha := dir * t.rows[leave][q]
	t.move(q, dir*limit)
	b := t.basis[leave]
	if alpha > 0 {
		t.x[b] = t.lower[b]
	} else {
		t.x[b] = t.upper[b]
	}
	t.pivot(leave, q)

	return limit, nil
}

// move shifts column q by delta and updates the basic values.
func (t *tableau) move(q int, delta float64) {
	if delta == 0 {
		return
	}
	t.x[q] += delta
	for i, row := range t.rows {
		if a := row[q]; a != 0 {
			t.x[t.basis[i]] -= a * delta
		}
	}
}

// pivot makes q basic in row r.
func (t *tableau) pivot(r, q int) {
	pr := t.rows[r]
	floats.Scale(1/pr[q], pr)
	pr[q] = 1
	for i, row := range t.rows {
		if i == r {
			continue
		}
		if f := row[q]; f != 0 {
			floats.AddScaled(row, -f, pr)
			row[q] = 0
		}
	}
	if f := t.d[q]; f != 0 {
		floats.AddScaled(t.d, -f, pr)
		t.d[q] = 0
	}

	t.basic[t.basis[r]] = false
	t.setBasic(r, q)
}

// refresh recomputes the basic values from the nonbasic ones.
func (t *tableau) refresh() {
	for i, row := range t.rows {
		var s float64
		for j, a := range row {
			if a != 0 && !t.basic[j] {
				s += a * t.x[j]
			}
		}
		t.x[t.basis[i]] = -s
	}
}
