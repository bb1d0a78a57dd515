package metabolic

import (
	"sort"

	"github.com/katalvlaran/metnet/reaction"
)

// Database resolves reaction ids to reactions. Models reference a Database
// and activate a subset of its reactions.
type Database interface {
	// Reaction returns the reaction with id and whether it exists.
	Reaction(id string) (reaction.Reaction, bool)

	// HasReaction reports whether id is defined.
	HasReaction(id string) bool

	// Reactions returns all reaction ids in ascending order.
	Reactions() []string
}

// DictDatabase is an in-memory Database backed by a map.
type DictDatabase struct {
	reactions map[string]reaction.Reaction
}

// Ensure interface compliance at compile time.
var _ Database = (*DictDatabase)(nil)

// NewDictDatabase returns an empty database.
func NewDictDatabase() *DictDatabase {
	return &DictDatabase{reactions: make(map[string]reaction.Reaction)}
}

// SetReaction defines or replaces reaction id.
func (d *DictDatabase) SetReaction(id string, r reaction.Reaction) {
	d.reactions[id] = r
}

// Reaction implements Database.
func (d *DictDatabase) Reaction(id string) (reaction.Reaction, bool) {
	r, ok := d.reactions[id]
	return r, ok
}

// HasReaction implements Database.
func (d *DictDatabase) HasReaction(id string) bool {
	_, ok := d.reactions[id]
	return ok
}

// Reactions implements Database.
func (d *DictDatabase) Reactions() []string {
	return sortedKeys(d.reactions)
}

// Len returns the number of defined reactions.
func (d *DictDatabase) Len() int { return len(d.reactions) }

// ChainedDatabase looks reactions up in several databases; the first database
// defining an id wins.
type ChainedDatabase struct {
	dbs []Database
}

var _ Database = (*ChainedDatabase)(nil)

// NewChainedDatabase chains dbs in priority order.
func NewChainedDatabase(dbs ...Database) *ChainedDatabase {
	return &ChainedDatabase{dbs: append([]Database(nil), dbs...)}
}

// Reaction implements Database.
func (c *ChainedDatabase) Reaction(id string) (reaction.Reaction, bool) {
	for _, db := range c.dbs {
		if r, ok := db.Reaction(id); ok {
			return r, true
		}
	}

	return reaction.Reaction{}, false
}

// HasReaction implements Database.
func (c *ChainedDatabase) HasReaction(id string) bool {
	for _, db := range c.dbs {
		if db.HasReaction(id) {
			return true
		}
	}

	return false
}

// Reactions implements Database.
func (c *ChainedDatabase) Reactions() []string {
	seen := make(map[string]struct{})
	for _, db := range c.dbs {
		for _, id := range db.Reactions() {
			seen[id] = struct{}{}
		}
	}

	return sortedKeys(seen)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}
