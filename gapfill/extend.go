package gapfill

import (
	"fmt"
	"sort"

	"github.com/katalvlaran/metnet/metabolic"
	"github.com/katalvlaran/metnet/reaction"
)

// Prefixes of synthesized reaction ids.
const (
	SourcePrefix    = "SO_"
	SinkPrefix      = "SK_"
	TransportPrefix = "TP_"
)

// Penalties sets the weights of reactions added by ExtendModel. A zero
// default leaves that class at weight 1.
type Penalties struct {
	Database  float64
	Source    float64
	Sink      float64
	Transport float64

	// Boundaries lists compartment pairs that get transport reactions.
	// Nil means every pair of compartments found in the extended model.
	Boundaries [][2]string

	// Overrides replaces the weight of individual reactions.
	Overrides map[string]float64
}

// ExtendModel returns a copy of model with every reaction of db activated,
// plus a source and a sink per compound and a reversible transport per
// compound and compartment boundary. Synthesized reactions live in a private
// database chained after model's and db; existing ids are never redefined.
// The returned weights cover every added reaction with a non-default penalty.
func ExtendModel(model *metabolic.Model, db metabolic.Database, p Penalties) (*metabolic.Model, map[string]float64, error) {
	extra := metabolic.NewDictDatabase()
	chained := metabolic.NewChainedDatabase(model.Database(), db, extra)
	ext, err := model.Rebase(chained)
	if err != nil {
		return nil, nil, err
	}

	weights := make(map[string]float64)
	assign := func(id string, penalty float64) {
		if penalty != 0 {
			weights[id] = penalty
		}
	}

	for _, id := range db.Reactions() {
		if ext.HasReaction(id) {
			continue
		}
		if err := ext.AddReaction(id); err != nil {
			return nil, nil, err
		}
		assign(id, p.Database)
	}

	compounds := ext.Compounds()
	add := func(id string, r reaction.Reaction, penalty float64) error {
		if ext.HasReaction(id) {
			return nil
		}
		if !chained.HasReaction(id) {
			extra.SetReaction(id, r)
		}
		if err := ext.AddReaction(id); err != nil {
			return err
		}
		assign(id, penalty)

		return nil
	}

	for _, c := range compounds {
		source := reaction.MustNew(reaction.Forward, reaction.Term{Compound: c, Value: 1})
		if err := add(SourcePrefix+c.String(), source, p.Source); err != nil {
			return nil, nil, err
		}
		sink := reaction.MustNew(reaction.Forward, reaction.Term{Compound: c, Value: -1})
		if err := add(SinkPrefix+c.String(), sink, p.Sink); err != nil {
			return nil, nil, err
		}
	}

	boundaries := p.Boundaries
	if boundaries == nil {
		boundaries = compartmentPairs(compounds)
	}
	for _, name := range compoundNames(compounds) {
		for _, b := range normalizePairs(boundaries) {
			from := reaction.NewCompound(name).InCompartment(b[0])
			to := reaction.NewCompound(name).InCompartment(b[1])
			tp := reaction.MustNew(reaction.Both,
				reaction.Term{Compound: from, Value: -1},
				reaction.Term{Compound: to, Value: 1})
			id := fmt.Sprintf("%s%s_%s_%s", TransportPrefix, name, b[0], b[1])
			if err := add(id, tp, p.Transport); err != nil {
				return nil, nil, err
			}
		}
	}

	for id, w := range p.Overrides {
		weights[id] = w
	}

	return ext, weights, nil
}

func compoundNames(compounds []reaction.Compound) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range compounds {
		if !seen[c.Name] {
			seen[c.Name] = true
			out = append(out, c.Name)
		}
	}
	sort.Strings(out)

	return out
}

func compartmentPairs(compounds []reaction.Compound) [][2]string {
	seen := make(map[string]bool)
	var comps []string
	for _, c := range compounds {
		if !seen[c.Compartment] {
			seen[c.Compartment] = true
			comps = append(comps, c.Compartment)
		}
	}
	sort.Strings(comps)

	var out [][2]string
	for i := range comps {
		for j := i + 1; j < len(comps); j++ {
			out = append(out, [2]string{comps[i], comps[j]})
		}
	}

	return out
}

// normalizePairs orders each pair, drops self pairs and duplicates.
func normalizePairs(pairs [][2]string) [][2]string {
	seen := make(map[[2]string]bool)
	var out [][2]string
	for _, p := range pairs {
		if p[0] == p[1] {
			continue
		}
		if p[1] < p[0] {
			p[0], p[1] = p[1], p[0]
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})

	return out
}
