package dataset

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/katalvlaran/metnet/metabolic"
	"github.com/katalvlaran/metnet/reaction"
)

// Document is the YAML model document.
type Document struct {
	Name               string               `yaml:"name"`
	Biomass            string               `yaml:"biomass,omitempty"`
	DefaultFluxLimit   float64              `yaml:"default_flux_limit,omitempty"`
	DefaultCompartment string               `yaml:"default_compartment,omitempty"`
	Databases          []string             `yaml:"databases"`
	Model              string               `yaml:"model,omitempty"`
	Limits             map[string][]float64 `yaml:"limits,omitempty"`
	Exchange           []string             `yaml:"exchange,omitempty"`
	ZeroMass           []string             `yaml:"zeromass,omitempty"`
	Boundaries         [][]string           `yaml:"boundaries,omitempty"`
	Genes              map[string]string    `yaml:"genes,omitempty"`
}

// Validate checks the fields that do not need the filesystem.
func (d *Document) Validate() error {
	if len(d.Databases) == 0 {
		return fmt.Errorf("%w: no databases listed", ErrFormat)
	}
	if d.DefaultFluxLimit < 0 {
		return fmt.Errorf("%w: default_flux_limit must be > 0, got %g", ErrFormat, d.DefaultFluxLimit)
	}
	for id, l := range d.Limits {
		if len(l) != 2 {
			return fmt.Errorf("%w: limits of %q need [lower, upper]", ErrFormat, id)
		}
	}
	for _, b := range d.Boundaries {
		if len(b) != 2 {
			return fmt.Errorf("%w: boundary %v needs two compartments", ErrFormat, b)
		}
	}

	return nil
}

// Model is a loaded model document.
type Model struct {
	Document

	// Database chains the listed reaction tables, first wins.
	Database metabolic.Database
	// Metabolic is the active model with limits applied.
	Metabolic *metabolic.Model
}

// BoundaryPairs returns the declared compartment boundaries, nil if none.
func (m *Model) BoundaryPairs() [][2]string {
	if len(m.Boundaries) == 0 {
		return nil
	}
	out := make([][2]string, 0, len(m.Boundaries))
	for _, b := range m.Boundaries {
		out = append(out, [2]string{b[0], b[1]})
	}

	return out
}

// GeneAssociation returns the gene association recorded for reaction id, "" if none.
func (m *Model) GeneAssociation(id string) string {
	return m.Genes[id]
}

// Compound places a compound lacking a compartment in the default one.
func (m *Model) Compound(c reaction.Compound) reaction.Compound {
	if c.Compartment == "" && m.DefaultCompartment != "" {
		return c.InCompartment(m.DefaultCompartment)
	}
	return c
}

// LoadModel reads the document at path and everything it references.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	m, err := ParseModel(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}

	return m, nil
}

// ParseModel decodes a model document and loads its files relative to dir.
// Unknown document fields are rejected.
func ParseModel(data []byte, dir string) (*Model, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	dbs := make([]metabolic.Database, 0, len(doc.Databases))
	for _, name := range doc.Databases {
		db, err := loadFile(dir, name, LoadReactions)
		if err != nil {
			return nil, err
		}
		dbs = append(dbs, db)
	}
	chained := metabolic.NewChainedDatabase(dbs...)

	ids := chained.Reactions()
	if doc.Model != "" {
		listed, err := loadFile(dir, doc.Model, LoadIDs)
		if err != nil {
			return nil, err
		}
		ids = dedupe(listed)
	}

	return finish(doc, chained, ids)
}

func finish(doc Document, db metabolic.Database, ids []string) (*Model, error) {
	var opts []metabolic.Option
	if doc.DefaultFluxLimit > 0 {
		opts = append(opts, metabolic.WithFluxLimit(doc.DefaultFluxLimit))
	}
	if doc.Biomass != "" {
		opts = append(opts, metabolic.WithBiomass(doc.Biomass))
	}
	mm, err := metabolic.LoadModel(db, ids, opts...)
	if err != nil {
		return nil, err
	}

	limitIDs := make([]string, 0, len(doc.Limits))
	for id := range doc.Limits {
		limitIDs = append(limitIDs, id)
	}
	sort.Strings(limitIDs)
	for _, id := range limitIDs {
		l := doc.Limits[id]
		if err := mm.SetLimits(id, metabolic.Limits{Lower: l[0], Upper: l[1]}); err != nil {
			return nil, fmt.Errorf("limits of %q: %w", id, err)
		}
	}
	if doc.Biomass != "" && !mm.HasReaction(doc.Biomass) {
		return nil, fmt.Errorf("biomass %w: %q", metabolic.ErrReactionNotFound, doc.Biomass)
	}

	return &Model{Document: doc, Database: db, Metabolic: mm}, nil
}

func loadFile[T any](dir, name string, load func(io.Reader) (T, error)) (T, error) {
	var zero T
	if !filepath.IsAbs(name) {
		name = filepath.Join(dir, name)
	}
	f, err := os.Open(name)
	if err != nil {
		return zero, err
	}
	defer f.Close()

	v, err := load(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", name, err)
	}

	return v, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
