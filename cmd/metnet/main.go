// Command metnet runs constraint-based analyses on a metabolic model.
//
// Usage:
//
//	metnet <command> [flags]
//
// Commands print tab-separated results on stdout and log on stderr.
// Settings come from flags, METNET_* environment variables and an optional
// metnet.toml, in that order of precedence.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/katalvlaran/metnet/dataset"
	"github.com/katalvlaran/metnet/logging"
	"github.com/katalvlaran/metnet/lp"
	"github.com/katalvlaran/metnet/lp/lpmetrics"
	"github.com/katalvlaran/metnet/lp/simplex"
)

// errUsage is returned for unknown commands and bad flags.
var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// env is what a command runs against.
type env struct {
	cfg    *Config
	model  *dataset.Model
	solver lp.Solver
	log    *slog.Logger
	out    *bufio.Writer
}

// command is one metnet subcommand.
type command struct {
	name    string
	summary string
	flags   func(f *pflag.FlagSet)
	run     func(ctx context.Context, e *env) error
}

func commands() []command {
	return []command{
		fbaCommand(),
		fvaCommand(),
		massCheckCommand(),
		fastCCCommand(),
		fastCoreCommand(),
		gapFillCommand(),
		completePathCommand(),
		fastGapFillCommand(),
		randomSparseCommand(),
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: metnet <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands() {
		fmt.Fprintf(w, "  %-14s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'metnet <command> --help' for command flags.")
}

// run executes one invocation. Errors are logged before being returned.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(stderr)
		if len(args) == 0 {
			return errUsage
		}
		return nil
	}

	var cmd *command
	for _, c := range commands() {
		if c.name == args[0] {
			cmd = &c
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", args[0])
		usage(stderr)
		return errUsage
	}

	f := pflag.NewFlagSet("metnet "+cmd.name, pflag.ContinueOnError)
	f.SetOutput(stderr)
	globalFlags(f)
	if cmd.flags != nil {
		cmd.flags(f)
	}
	if err := f.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return err
	}
	logger := logging.New(stderr, logging.Format(cfg.LogFormat), cfg.Verbose)

	if err := execute(ctx, cmd, cfg, logger, stdout); err != nil {
		logger.Error("command failed", slog.String("command", cmd.name), slog.Any("error", err))
		return err
	}

	return nil
}

func execute(ctx context.Context, cmd *command, cfg *Config, logger *slog.Logger, stdout io.Writer) (err error) {
	model, err := dataset.LoadModel(cfg.Model)
	if err != nil {
		return err
	}
	logger.Debug("model loaded",
		slog.String("name", model.Name), slog.Int("reactions", model.Metabolic.Len()))

	reg := prometheus.NewRegistry()
	metrics, err := lpmetrics.NewMetrics(reg)
	if err != nil {
		return err
	}
	solver := lpmetrics.Instrument(simplex.New(
		simplex.WithTolerance(cfg.Tolerance),
		simplex.WithNodeLimit(cfg.NodeLimit),
	), metrics)

	if cfg.MetricsFile != "" {
		defer func() {
			if werr := prometheus.WriteToTextfile(cfg.MetricsFile, reg); werr != nil && err == nil {
				err = fmt.Errorf("writing metrics: %w", werr)
			}
		}()
	}

	out := bufio.NewWriter(stdout)
	defer func() {
		if ferr := out.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}()

	return cmd.run(ctx, &env{cfg: cfg, model: model, solver: solver, log: logger, out: out})
}

// row writes one tab-separated output record.
func (e *env) row(fields ...any) {
	for i, f := range fields {
		if i > 0 {
			e.out.WriteByte('\t')
		}
		switch v := f.(type) {
		case float64:
			fmt.Fprintf(e.out, "%g", v)
		default:
			fmt.Fprint(e.out, v)
		}
	}
	e.out.WriteByte('\n')
}

// equation renders reaction id of the model database, "" if unknown.
func (e *env) equation(id string) string {
	r, ok := e.model.Database.Reaction(id)
	if !ok {
		return ""
	}
	return r.String()
}

// objective returns --objective or the model's biomass reaction.
func (e *env) objective() (string, error) {
	if e.cfg.Objective != "" {
		return e.cfg.Objective, nil
	}
	if b := e.model.Metabolic.Biomass(); b != "" {
		return b, nil
	}
	return "", errors.New("no objective: pass --objective or set biomass in the model")
}

// expandList resolves "@path" entries to the ids listed in that file.
func expandList(values []string) ([]string, error) {
	var out []string
	for _, v := range values {
		path, ok := strings.CutPrefix(v, "@")
		if !ok {
			out = append(out, v)
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		ids, err := dataset.LoadIDs(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, ids...)
	}

	return out, nil
}

// loadPenalties reads --penalty, nil when unset.
func (e *env) loadPenalties() (map[string]float64, error) {
	if e.cfg.Penalty == "" {
		return nil, nil
	}
	f, err := os.Open(e.cfg.Penalty)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return dataset.LoadPenalties(f)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}
