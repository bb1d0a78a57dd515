package reaction

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// parser is a single-pass scanner over the reaction notation.
type parser struct {
	src string
	pos int
}

// Parse reads a reaction written as "|A| + (2) |B| <=> |C[e]|".
//
// Errors:
//   - ErrSyntax (wrapped with the byte offset) on malformed input.
//   - ErrZeroCoefficient / ErrEmptyCompound from term validation.
func Parse(s string) (Reaction, error) {
	p := &parser{src: s}

	left, err := p.side()
	if err != nil {
		return Reaction{}, err
	}
	dir, err := p.direction()
	if err != nil {
		return Reaction{}, err
	}
	right, err := p.side()
	if err != nil {
		return Reaction{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Reaction{}, p.errorf("unexpected %q", p.src[p.pos:])
	}

	terms := make([]Term, 0, len(left)+len(right))
	for _, t := range left {
		terms = append(terms, Term{Compound: t.Compound, Value: -t.Value})
	}
	terms = append(terms, right...)

	return New(dir, terms...)
}

// MustParse is like Parse but panics on error. Intended for tests and fixtures.
func MustParse(s string) Reaction {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return r
}

// ParseCompound reads "name" or "name[compartment]" (pipes optional).
func ParseCompound(s string) (Compound, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "|"), "|")

	return splitCompound(s)
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}

	return p.src[p.pos]
}

// side reads zero or more '+'-separated terms. It stops before a direction
// token or at end of input.
func (p *parser) side() ([]Term, error) {
	var terms []Term
	for {
		p.skipSpace()
		c := p.peek()
		if c == 0 || c == '=' || c == '<' {
			return terms, nil
		}
		if len(terms) > 0 {
			if c != '+' {
				return nil, p.errorf("expected '+' between terms")
			}
			p.pos++
			p.skipSpace()
		}
		t, err := p.term()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
}

func (p *parser) term() (Term, error) {
	value := 1.0
	if p.peek() == '(' {
		end := strings.IndexByte(p.src[p.pos:], ')')
		if end < 0 {
			return Term{}, p.errorf("unterminated coefficient")
		}
		v, err := parseCoefficient(p.src[p.pos+1 : p.pos+end])
		if err != nil {
			return Term{}, p.errorf("bad coefficient %q", p.src[p.pos+1:p.pos+end])
		}
		value = v
		p.pos += end + 1
		p.skipSpace()
	}
	if p.peek() != '|' {
		return Term{}, p.errorf("expected '|'")
	}
	end := strings.IndexByte(p.src[p.pos+1:], '|')
	if end < 0 {
		return Term{}, p.errorf("unterminated compound")
	}
	c, err := splitCompound(p.src[p.pos+1 : p.pos+1+end])
	if err != nil {
		return Term{}, err
	}
	p.pos += end + 2

	return Term{Compound: c, Value: value}, nil
}

func (p *parser) direction() (Direction, error) {
	p.skipSpace()
	rest := p.src[p.pos:]
	switch {
	case strings.HasPrefix(rest, "<=>"):
		p.pos += 3
		return Both, nil
	case strings.HasPrefix(rest, "=>"):
		p.pos += 2
		return Forward, nil
	case strings.HasPrefix(rest, "<="):
		p.pos += 2
		return Reverse, nil
	default:
		return 0, p.errorf("expected direction token")
	}
}

// parseCoefficient accepts integers, decimals and a/b rationals. NaN and
// infinite values are rejected.
func parseCoefficient(s string) (float64, error) {
	v, err := parseNumber(s)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrRange
	}

	return v, nil
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, err
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil {
			return 0, err
		}
		if d == 0 {
			return 0, strconv.ErrRange
		}

		return n / d, nil
	}

	return strconv.ParseFloat(s, 64)
}

func splitCompound(s string) (Compound, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "]") {
		if i := strings.LastIndexByte(s, '['); i >= 0 {
			name := strings.TrimSpace(s[:i])
			if name == "" {
				return Compound{}, ErrEmptyCompound
			}
			return Compound{Name: name, Compartment: s[i+1 : len(s)-1]}, nil
		}
	}
	if s == "" {
		return Compound{}, ErrEmptyCompound
	}

	return Compound{Name: s}, nil
}
