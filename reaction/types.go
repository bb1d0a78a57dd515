package reaction

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Sentinel errors for reaction construction and parsing.
var (
	// ErrSyntax indicates malformed reaction notation.
	ErrSyntax = errors.New("reaction: syntax error")

	// ErrZeroCoefficient indicates a stoichiometric coefficient equal to zero.
	ErrZeroCoefficient = errors.New("reaction: zero coefficient")

	// ErrEmptyCompound indicates a compound with an empty name.
	ErrEmptyCompound = errors.New("reaction: compound name is empty")
)

// Compound identifies a chemical species, optionally located in a compartment.
// Compound is comparable and can be used directly as a map key.
type Compound struct {
	// Name is the compound identifier, e.g. "glc-D".
	Name string

	// Compartment is the optional compartment tag, e.g. "e". Empty means none.
	Compartment string
}

// NewCompound returns a compound without a compartment.
func NewCompound(name string) Compound { return Compound{Name: name} }

// InCompartment returns a copy of c placed in compartment.
func (c Compound) InCompartment(compartment string) Compound {
	return Compound{Name: c.Name, Compartment: compartment}
}

// String renders "name" or "name[compartment]".
func (c Compound) String() string {
	if c.Compartment == "" {
		return c.Name
	}

	return c.Name + "[" + c.Compartment + "]"
}

// Less orders compounds by name, then by compartment.
func (c Compound) Less(o Compound) bool {
	if c.Name != o.Name {
		return c.Name < o.Name
	}

	return c.Compartment < o.Compartment
}

// Direction is the allowed direction of a reaction.
type Direction int

const (
	// Forward allows flux from left to right only ("=>").
	Forward Direction = iota
	// Reverse allows flux from right to left only ("<=").
	Reverse
	// Both allows flux in either direction ("<=>").
	Both
)

// String returns the notation token for d.
func (d Direction) String() string {
	switch d {
	case Forward:
		return "=>"
	case Reverse:
		return "<="
	case Both:
		return "<=>"
	default:
		return "?"
	}
}

// Forward reports whether flux may run left to right.
func (d Direction) Forward() bool { return d == Forward || d == Both }

// Reverse reports whether flux may run right to left.
func (d Direction) Reverse() bool { return d == Reverse || d == Both }

// Term is one (compound, coefficient) pair of a reaction.
type Term struct {
	Compound Compound
	Value    float64
}

// Reaction is an immutable stoichiometric reaction.
//
// Terms keep the order in which they were given (left side first); a compound
// appearing several times is merged into a single term.
type Reaction struct {
	direction Direction
	terms     []Term
}

// New builds a Reaction from direction and terms.
// Repeated compounds are summed; a resulting zero coefficient is an error.
func New(direction Direction, terms ...Term) (Reaction, error) {
	index := make(map[Compound]int, len(terms))
	merged := make([]Term, 0, len(terms))
	for _, t := range terms {
		if t.Compound.Name == "" {
			return Reaction{}, ErrEmptyCompound
		}
		if i, ok := index[t.Compound]; ok {
			merged[i].Value += t.Value
			continue
		}
		index[t.Compound] = len(merged)
		merged = append(merged, t)
	}
	for _, t := range merged {
		if t.Value == 0 {
			return Reaction{}, ErrZeroCoefficient
		}
	}

	return Reaction{direction: direction, terms: merged}, nil
}

// MustNew is like New but panics on error. Intended for tests and fixtures.
func MustNew(direction Direction, terms ...Term) Reaction {
	r, err := New(direction, terms...)
	if err != nil {
		panic(err)
	}

	return r
}

// Direction returns the reaction direction.
func (r Reaction) Direction() Direction { return r.direction }

// Terms returns a copy of the reaction terms.
func (r Reaction) Terms() []Term {
	out := make([]Term, len(r.terms))
	copy(out, r.terms)

	return out
}

// Left returns the consumed compounds with positive coefficients.
func (r Reaction) Left() []Term {
	var out []Term
	for _, t := range r.terms {
		if t.Value < 0 {
			out = append(out, Term{Compound: t.Compound, Value: -t.Value})
		}
	}

	return out
}

// Right returns the produced compounds.
func (r Reaction) Right() []Term {
	var out []Term
	for _, t := range r.terms {
		if t.Value > 0 {
			out = append(out, t)
		}
	}

	return out
}

// Coefficient returns the signed coefficient of c, or 0 when c does not take part.
func (r Reaction) Coefficient(c Compound) float64 {
	for _, t := range r.terms {
		if t.Compound == c {
			return t.Value
		}
	}

	return 0
}

// Compounds returns the participating compounds sorted by name and compartment.
func (r Reaction) Compounds() []Compound {
	out := make([]Compound, 0, len(r.terms))
	for _, t := range r.terms {
		out = append(out, t.Compound)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })

	return out
}

// OneSided reports whether all compounds sit on the same side of the arrow.
// Such reactions exchange mass with the environment.
func (r Reaction) OneSided() bool {
	return len(r.Left()) == 0 || len(r.Right()) == 0
}

// Translated returns a new reaction whose compound names are replaced by fn.
// Compartments and term order are kept; terms are not merged even when fn maps
// two names to the same one.
func (r Reaction) Translated(fn func(name string) string) Reaction {
	terms := make([]Term, 0, len(r.terms))
	for _, t := range r.terms {
		c := Compound{Name: fn(t.Compound.Name), Compartment: t.Compound.Compartment}
		terms = append(terms, Term{Compound: c, Value: t.Value})
	}

	return Reaction{direction: r.direction, terms: terms}
}

// Equal reports whether r and o have the same direction and terms (order-insensitive).
func (r Reaction) Equal(o Reaction) bool {
	if r.direction != o.direction || len(r.terms) != len(o.terms) {
		return false
	}
	for _, t := range r.terms {
		if o.Coefficient(t.Compound) != t.Value {
			return false
		}
	}

	return true
}

// String renders the reaction in the notation accepted by Parse.
func (r Reaction) String() string {
	var b strings.Builder
	writeSide(&b, r.Left())
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(r.direction.String())
	right := r.Right()
	if len(right) > 0 {
		b.WriteByte(' ')
		writeSide(&b, right)
	}

	return b.String()
}

func writeSide(b *strings.Builder, side []Term) {
	for i, t := range side {
		if i > 0 {
			b.WriteString(" + ")
		}
		if t.Value != 1 {
			b.WriteByte('(')
			b.WriteString(strconv.FormatFloat(t.Value, 'g', -1, 64))
			b.WriteString(") ")
		}
		b.WriteByte('|')
		b.WriteString(t.Compound.String())
		b.WriteByte('|')
	}
}
