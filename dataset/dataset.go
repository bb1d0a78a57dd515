// Package dataset loads metabolic models from files: reaction tables,
// YAML model documents and penalty lists.
//
// Reaction tables are tab-separated "id<TAB>equation" lines. Penalty lists and
// model lists are whitespace-separated. In every format blank lines are
// skipped and '#' starts a comment.
//
// A model document names the databases (reaction tables), an optional list of
// active reaction ids, explicit limits and the metadata used by the analyses:
//
//	name: toy
//	biomass: Biomass
//	default_flux_limit: 1000
//	databases: [reactions.tsv]
//	model: model.tsv
//	limits: {EX_A: [-10, 1000]}
//	exchange: [EX_A]
//	zeromass: [H2O]
//
// Relative paths resolve against the document's directory.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/katalvlaran/metnet/metabolic"
	"github.com/katalvlaran/metnet/reaction"
)

// ErrFormat wraps every malformed line.
var ErrFormat = errors.New("dataset: malformed input")

// lineError locates a problem in an input.
type lineError struct {
	Line int
	Err  error
}

func (e *lineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *lineError) Unwrap() error { return e.Err }

// scanLines calls fn with the content of every non-empty, comment-stripped
// line and its 1-based number.
func scanLines(r io.Reader, fn func(line string, n int) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line, _, _ := strings.Cut(sc.Text(), "#")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := fn(line, n); err != nil {
			return &lineError{Line: n, Err: err}
		}
	}

	return sc.Err()
}

// LoadReactions reads a reaction table into a new database.
// A repeated id is an error.
func LoadReactions(r io.Reader) (*metabolic.DictDatabase, error) {
	db := metabolic.NewDictDatabase()
	err := scanLines(r, func(line string, _ int) error {
		id, eq, ok := strings.Cut(line, "\t")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return fmt.Errorf("%w: want id<TAB>equation, got %q", ErrFormat, line)
		}
		if db.HasReaction(id) {
			return fmt.Errorf("%w: duplicate reaction %q", ErrFormat, id)
		}
		rx, err := reaction.Parse(strings.TrimSpace(eq))
		if err != nil {
			return fmt.Errorf("reaction %q: %w", id, err)
		}
		db.SetReaction(id, rx)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}

// LoadPenalties reads "id penalty" lines.
func LoadPenalties(r io.Reader) (map[string]float64, error) {
	out := make(map[string]float64)
	err := scanLines(r, func(line string, _ int) error {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return fmt.Errorf("%w: want id and penalty, got %q", ErrFormat, line)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("%w: penalty of %q: %v", ErrFormat, fields[0], err)
		}
		out[fields[0]] = v

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// LoadIDs reads one reaction or compound id per line (first field).
func LoadIDs(r io.Reader) ([]string, error) {
	var out []string
	err := scanLines(r, func(line string, _ int) error {
		out = append(out, strings.Fields(line)[0])
		return nil
	})

	return out, err
}
