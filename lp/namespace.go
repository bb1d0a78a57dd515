package lp

import "fmt"

// Namespace groups a family of variables keyed by domain ids (reaction ids,
// compound names) under a common name prefix.
type Namespace struct {
	p      Problem
	prefix string
	vars   map[string]Var
}

// NewNamespace returns an empty namespace on p. Full variable names are
// prefix + "." + id.
func NewNamespace(p Problem, prefix string) *Namespace {
	return &Namespace{p: p, prefix: prefix, vars: make(map[string]Var)}
}

// Define adds the variable for id.
func (n *Namespace) Define(id string, lower, upper float64, opts ...VarOption) (Var, error) {
	if _, ok := n.vars[id]; ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrDuplicateVar, n.prefix, id)
	}
	v, err := n.p.Define(n.prefix+"."+id, lower, upper, opts...)
	if err != nil {
		return 0, fmt.Errorf("define %s.%s: %w", n.prefix, id, err)
	}
	n.vars[id] = v

	return v, nil
}

// DefineAll defines one variable per id with shared bounds.
func (n *Namespace) DefineAll(ids []string, lower, upper float64, opts ...VarOption) error {
	for _, id := range ids {
		if _, err := n.Define(id, lower, upper, opts...); err != nil {
			return err
		}
	}

	return nil
}

// Var returns the variable for id.
func (n *Namespace) Var(id string) (Var, bool) {
	v, ok := n.vars[id]
	return v, ok
}

// MustVar returns the variable for id and panics if it was never defined.
// Use it where the id set is known to match the namespace.
func (n *Namespace) MustVar(id string) Var {
	v, ok := n.vars[id]
	if !ok {
		panic(fmt.Sprintf("lp: namespace %q has no variable %q", n.prefix, id))
	}

	return v
}

// Has reports whether id is defined.
func (n *Namespace) Has(id string) bool {
	_, ok := n.vars[id]
	return ok
}

// Len returns the number of variables in the namespace.
func (n *Namespace) Len() int { return len(n.vars) }

// Expr builds Σ coeff·var(id). Ids without a variable are skipped.
func (n *Namespace) Expr(coeffs map[string]float64) Expression {
	var e Expression
	for id, c := range coeffs {
		if v, ok := n.vars[id]; ok {
			e.Add(v, c)
		}
	}

	return e
}

// Sum builds Σ var(id) over ids. Ids without a variable are skipped.
func (n *Namespace) Sum(ids []string) Expression {
	var e Expression
	for _, id := range ids {
		if v, ok := n.vars[id]; ok {
			e.Add(v, 1)
		}
	}

	return e
}

// Value returns the solution value for id in r (0 when undefined).
func (n *Namespace) Value(r *Result, id string) float64 {
	v, ok := n.vars[id]
	if !ok {
		return 0
	}

	return r.Value(v)
}
