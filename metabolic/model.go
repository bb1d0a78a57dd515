// Package metabolic holds the stoichiometric Model analysed by metnet: an
// active subset of a reaction Database, per-reaction flux limits and the
// biomass reaction.
//
// A Model is a value snapshot. Copy returns an independent model; mutating
// the copy (reaction set or limits) never affects the original. The Database
// itself is shared between copies and treated as read-only by the Model.
//
// Flux limits default from the reaction direction and the model's default
// flux limit vmax:
//
//	Forward → [0, vmax]    Reverse → [-vmax, 0]    Both → [-vmax, vmax]
//
// Explicit limits set with SetLimits override the default. WithLimits applies
// a temporary override and restores the previous limits afterwards, also when
// the callback fails.
//
// Errors:
//
//	ErrReactionNotFound - id is not defined in the database / not active.
//	ErrInvalidLimits    - lower > upper or NaN bounds.
package metabolic

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/katalvlaran/metnet/reaction"
)

// DefaultFluxLimit is the default magnitude bound for reaction fluxes.
const DefaultFluxLimit = 1000.0

// Sentinel errors for model operations.
var (
	// ErrReactionNotFound indicates the id is unknown to the database or model.
	ErrReactionNotFound = errors.New("metabolic: reaction not found")

	// ErrInvalidLimits indicates lower > upper or a NaN bound.
	ErrInvalidLimits = errors.New("metabolic: invalid flux limits")
)

// Limits are the lower and upper flux bounds of a reaction.
type Limits struct {
	Lower float64
	Upper float64
}

// Validate returns ErrInvalidLimits unless Lower ≤ Upper and both are numbers.
func (l Limits) Validate() error {
	if math.IsNaN(l.Lower) || math.IsNaN(l.Upper) || l.Lower > l.Upper {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidLimits, l.Lower, l.Upper)
	}

	return nil
}

// Entry is one non-zero cell of the stoichiometric matrix.
type Entry struct {
	Compound reaction.Compound
	Reaction string
	Value    float64
}

// Option configures a Model at load time.
type Option func(*Model)

// WithFluxLimit sets the default flux magnitude vmax (must be > 0).
func WithFluxLimit(vmax float64) Option {
	if !(vmax > 0) || math.IsInf(vmax, 0) {
		panic("metabolic: WithFluxLimit: vmax must be finite and > 0")
	}
	return func(m *Model) { m.vmax = vmax }
}

// WithBiomass names the biomass (objective) reaction.
func WithBiomass(id string) Option {
	return func(m *Model) { m.biomass = id }
}

// Model is an active reaction subset of a Database with flux limits.
type Model struct {
	db        Database
	reactions map[string]struct{}
	limits    map[string]Limits
	vmax      float64
	biomass   string
}

// LoadModel builds a model activating ids from db.
// Every id must be defined in db.
func LoadModel(db Database, ids []string, opts ...Option) (*Model, error) {
	m := &Model{
		db:        db,
		reactions: make(map[string]struct{}, len(ids)),
		limits:    make(map[string]Limits),
		vmax:      DefaultFluxLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, id := range ids {
		if err := m.AddReaction(id); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Database returns the backing database.
func (m *Model) Database() Database { return m.db }

// FluxLimit returns the default flux magnitude vmax.
func (m *Model) FluxLimit() float64 { return m.vmax }

// Biomass returns the biomass reaction id ("" if none).
func (m *Model) Biomass() string { return m.biomass }

// SetBiomass sets the biomass reaction id.
func (m *Model) SetBiomass(id string) { m.biomass = id }

// Reactions returns the active reaction ids in ascending order.
func (m *Model) Reactions() []string { return sortedKeys(m.reactions) }

// Len returns the number of active reactions.
func (m *Model) Len() int { return len(m.reactions) }

// HasReaction reports whether id is active.
func (m *Model) HasReaction(id string) bool {
	_, ok := m.reactions[id]
	return ok
}

// Reaction returns the database reaction for id (active or not).
func (m *Model) Reaction(id string) (reaction.Reaction, error) {
	r, ok := m.db.Reaction(id)
	if !ok {
		return reaction.Reaction{}, fmt.Errorf("%w: %q", ErrReactionNotFound, id)
	}

	return r, nil
}

// AddReaction activates id. Adding an active reaction is a no-op.
func (m *Model) AddReaction(id string) error {
	if !m.db.HasReaction(id) {
		return fmt.Errorf("%w: %q", ErrReactionNotFound, id)
	}
	m.reactions[id] = struct{}{}

	return nil
}

// RemoveReaction deactivates id and drops its explicit limits.
// Removing an inactive reaction is a no-op.
func (m *Model) RemoveReaction(id string) {
	delete(m.reactions, id)
	delete(m.limits, id)
}

// Limits returns the effective flux limits of id.
func (m *Model) Limits(id string) (Limits, error) {
	if l, ok := m.limits[id]; ok {
		return l, nil
	}
	r, ok := m.db.Reaction(id)
	if !ok {
		return Limits{}, fmt.Errorf("%w: %q", ErrReactionNotFound, id)
	}

	return m.defaultLimits(r.Direction()), nil
}

func (m *Model) defaultLimits(d reaction.Direction) Limits {
	switch d {
	case reaction.Forward:
		return Limits{Lower: 0, Upper: m.vmax}
	case reaction.Reverse:
		return Limits{Lower: -m.vmax, Upper: 0}
	default:
		return Limits{Lower: -m.vmax, Upper: m.vmax}
	}
}

// SetLimits overrides the flux limits of an active reaction.
func (m *Model) SetLimits(id string, l Limits) error {
	if !m.HasReaction(id) {
		return fmt.Errorf("%w: %q", ErrReactionNotFound, id)
	}
	if err := l.Validate(); err != nil {
		return err
	}
	m.limits[id] = l

	return nil
}

// ResetLimits drops the explicit limits of id, restoring the direction default.
func (m *Model) ResetLimits(id string) { delete(m.limits, id) }

// WithLimits applies l to id, runs fn and restores the previous limits
// afterwards, whether fn returns an error or not.
func (m *Model) WithLimits(id string, l Limits, fn func() error) error {
	if !m.HasReaction(id) {
		return fmt.Errorf("%w: %q", ErrReactionNotFound, id)
	}
	saved, explicit := m.limits[id]
	if err := m.SetLimits(id, l); err != nil {
		return err
	}
	defer func() {
		if explicit {
			m.limits[id] = saved
		} else {
			delete(m.limits, id)
		}
	}()

	return fn()
}

// IsReversible reports whether id may carry flux in both directions.
func (m *Model) IsReversible(id string) bool {
	l, err := m.Limits(id)
	return err == nil && l.Lower < 0 && l.Upper > 0
}

// IsExchange reports whether id has compounds on one side only.
func (m *Model) IsExchange(id string) bool {
	r, ok := m.db.Reaction(id)
	return ok && r.OneSided()
}

// Compounds returns every compound taking part in an active reaction, sorted.
func (m *Model) Compounds() []reaction.Compound {
	seen := make(map[reaction.Compound]struct{})
	for id := range m.reactions {
		r, _ := m.db.Reaction(id)
		for _, c := range r.Compounds() {
			seen[c] = struct{}{}
		}
	}
	out := make([]reaction.Compound, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })

	return out
}

// Matrix returns the stoichiometric matrix of the active reactions as entries
// sorted by compound, then reaction.
func (m *Model) Matrix() []Entry {
	var out []Entry
	for _, id := range m.Reactions() {
		r, _ := m.db.Reaction(id)
		for _, t := range r.Terms() {
			out = append(out, Entry{Compound: t.Compound, Reaction: id, Value: t.Value})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Compound != out[j].Compound {
			return out[i].Compound.Less(out[j].Compound)
		}
		return out[i].Reaction < out[j].Reaction
	})

	return out
}

// Copy returns an independent snapshot sharing the database.
func (m *Model) Copy() *Model {
	c := &Model{
		db:        m.db,
		reactions: make(map[string]struct{}, len(m.reactions)),
		limits:    make(map[string]Limits, len(m.limits)),
		vmax:      m.vmax,
		biomass:   m.biomass,
	}
	for id := range m.reactions {
		c.reactions[id] = struct{}{}
	}
	for id, l := range m.limits {
		c.limits[id] = l
	}

	return c
}

// Rebase returns a copy of m backed by db. Every active reaction must be
// defined in db; explicit limits and the biomass id are carried over.
func (m *Model) Rebase(db Database) (*Model, error) {
	c := m.Copy()
	c.db = db
	for id := range c.reactions {
		if !db.HasReaction(id) {
			return nil, fmt.Errorf("%w: %q", ErrReactionNotFound, id)
		}
	}

	return c, nil
}
