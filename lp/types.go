package lp

import (
	"context"
	"math"
	"sort"
)

// Inf is the bound value for an unbounded side of a variable.
var Inf = math.Inf(1)

// Sense is the optimization direction of the objective.
type Sense int

const (
	// Minimize the objective.
	Minimize Sense = iota
	// Maximize the objective.
	Maximize
)

// String returns "minimize" or "maximize".
func (s Sense) String() string {
	if s == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Relation is the comparison of a linear constraint.
type Relation int

const (
	// LessEqual is expr ≤ rhs.
	LessEqual Relation = iota
	// EqualTo is expr = rhs.
	EqualTo
	// GreaterEqual is expr ≥ rhs.
	GreaterEqual
)

// VarKind is the domain of a variable.
type VarKind int

const (
	// Continuous variables take any value within their bounds.
	Continuous VarKind = iota
	// BinaryKind variables take the value 0 or 1.
	BinaryKind
)

// Var is a handle to a problem variable. Handles are dense indices in
// definition order and are only meaningful for the problem that issued them.
type Var int

// ConstraintID is a handle returned by AddConstraints.
type ConstraintID int

// VarOption configures a variable at definition time.
type VarOption func(*VarSpec)

// VarSpec is the resolved definition of a variable. Backends receive it from
// ResolveVar.
type VarSpec struct {
	Name  string
	Lower float64
	Upper float64
	Kind  VarKind
}

// Binary declares a 0/1 integer variable. Bounds are intersected with [0, 1].
func Binary() VarOption {
	return func(s *VarSpec) { s.Kind = BinaryKind }
}

// ResolveVar applies opts and validates the bounds.
func ResolveVar(name string, lower, upper float64, opts ...VarOption) (VarSpec, error) {
	s := VarSpec{Name: name, Lower: lower, Upper: upper}
	for _, opt := range opts {
		opt(&s)
	}
	if s.Kind == BinaryKind {
		s.Lower = math.Max(s.Lower, 0)
		s.Upper = math.Min(s.Upper, 1)
	}
	if math.IsNaN(s.Lower) || math.IsNaN(s.Upper) || s.Lower > s.Upper {
		return VarSpec{}, ErrInvalidBounds
	}

	return s, nil
}

// Term is one coefficient·variable product.
type Term struct {
	Var   Var
	Coeff float64
}

// Expression is a linear combination of variables plus a constant.
// The zero value is the empty expression. Methods with pointer receivers
// mutate in place and return the receiver for chaining.
type Expression struct {
	terms    map[Var]float64
	Constant float64
}

// NewExpression returns an expression holding the given terms.
func NewExpression(terms ...Term) Expression {
	var e Expression
	for _, t := range terms {
		e.Add(t.Var, t.Coeff)
	}

	return e
}

// Sum returns the expression v1 + v2 + … .
func Sum(vars ...Var) Expression {
	var e Expression
	for _, v := range vars {
		e.Add(v, 1)
	}

	return e
}

// Add adds coeff·v to e.
func (e *Expression) Add(v Var, coeff float64) *Expression {
	if e.terms == nil {
		e.terms = make(map[Var]float64)
	}
	e.terms[v] += coeff

	return e
}

// AddExpr adds scale·o to e.
func (e *Expression) AddExpr(o Expression, scale float64) *Expression {
	for v, c := range o.terms {
		e.Add(v, scale*c)
	}
	e.Constant += scale * o.Constant

	return e
}

// Clone returns a deep copy of e.
func (e Expression) Clone() Expression {
	var c Expression
	c.AddExpr(e, 1)

	return c
}

// Coeff returns the coefficient of v.
func (e Expression) Coeff(v Var) float64 { return e.terms[v] }

// Len returns the number of variables with a stored coefficient.
func (e Expression) Len() int { return len(e.terms) }

// Terms returns the non-zero terms ordered by variable.
func (e Expression) Terms() []Term {
	out := make([]Term, 0, len(e.terms))
	for v, c := range e.terms {
		if c != 0 {
			out = append(out, Term{Var: v, Coeff: c})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Var < out[j].Var })

	return out
}

// Constraint is expr (rel) rhs.
type Constraint struct {
	Expr Expression
	Rel  Relation
	RHS  float64
}

// LessEq builds expr ≤ rhs.
func LessEq(expr Expression, rhs float64) Constraint {
	return Constraint{Expr: expr, Rel: LessEqual, RHS: rhs}
}

// Equal builds expr = rhs.
func Equal(expr Expression, rhs float64) Constraint {
	return Constraint{Expr: expr, Rel: EqualTo, RHS: rhs}
}

// GreaterEq builds expr ≥ rhs.
func GreaterEq(expr Expression, rhs float64) Constraint {
	return Constraint{Expr: expr, Rel: GreaterEqual, RHS: rhs}
}

// Result is the primal solution of the last Solve.
type Result struct {
	values    []float64
	objective float64
}

// NewResult wraps backend output. values is indexed by Var.
func NewResult(values []float64, objective float64) *Result {
	return &Result{values: values, objective: objective}
}

// Value returns the value of v (0 for an unknown handle).
func (r *Result) Value(v Var) float64 {
	if r == nil || int(v) < 0 || int(v) >= len(r.values) {
		return 0
	}

	return r.values[v]
}

// Objective returns the objective value at the solution.
func (r *Result) Objective() float64 {
	if r == nil {
		return math.NaN()
	}

	return r.objective
}

// Eval evaluates e at the solution.
func (r *Result) Eval(e Expression) float64 {
	total := e.Constant
	for v, c := range e.terms {
		total += c * r.Value(v)
	}

	return total
}

// Problem is a mutable LP/MILP under construction.
type Problem interface {
	// Define adds a variable with bounds [lower, upper] (use ±Inf for none).
	Define(name string, lower, upper float64, opts ...VarOption) (Var, error)

	// Var looks a variable up by its full name.
	Var(name string) (Var, bool)

	// AddConstraints adds constraints and returns their handles.
	AddConstraints(cs ...Constraint) ([]ConstraintID, error)

	// RemoveConstraints drops constraints; unknown handles are ignored.
	RemoveConstraints(ids ...ConstraintID)

	// SetObjective replaces the objective.
	SetObjective(e Expression, sense Sense)

	// Solve optimizes the current problem and stores the result.
	Solve(ctx context.Context) (*Result, error)

	// Result returns the result of the last successful Solve (nil if none).
	Result() *Result
}

// Solver creates problems. A Solver may be shared; a Problem may not.
type Solver interface {
	CreateProblem() Problem
}
