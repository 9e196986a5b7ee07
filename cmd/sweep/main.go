// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Command sweep runs the confidence sweep of the Hegselmann-Krause
// simulation: it runs the simulation for every grid point whose output is
// missing, aggregates every output file, and prints or plots the result.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/petenewcomb/sweep-go"
	"github.com/petenewcomb/sweep-go/internal/config"
	"github.com/petenewcomb/sweep-go/internal/present"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// options holds the command-line flags. Flags override the config file only
// when given explicitly.
type options struct {
	configPath string
	verbose    bool
	trace      bool

	systemSize  int
	samples     int
	epsilonMin  float64
	epsilonMax  float64
	epsilonStep float64
	baseSeed    uint64
	dataDir     string
	program     string
	workers     int
	onError     string
	plot        string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "sweep",
		Short:        "Run and aggregate a confidence sweep of the simulation",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "sweep.toml", "Path to config file")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Log every job at debug level")
	pf.BoolVar(&opts.trace, "trace", false, "Write a trace span per job to stderr")
	pf.IntVarP(&opts.systemSize, "agents", "n", 0, "Number of agents in the simulated system")
	pf.IntVar(&opts.samples, "samples", 0, "Samples per sweep point")
	pf.Float64Var(&opts.epsilonMin, "eps-min", 0, "Smallest confidence")
	pf.Float64Var(&opts.epsilonMax, "eps-max", 0, "Largest confidence")
	pf.Float64Var(&opts.epsilonStep, "eps-step", 0, "Confidence step")
	pf.Uint64Var(&opts.baseSeed, "seed", 0, "Base seed; the first point uses seed+1")
	pf.StringVar(&opts.dataDir, "data-dir", "", "Directory holding the simulation output files")
	pf.StringVar(&opts.program, "program", "", "Path of the simulation program")
	pf.IntVarP(&opts.workers, "workers", "j", 0, "Simulations to run at once (0 = one per CPU)")
	pf.StringVar(&opts.onError, "on-error", "", `What to do with a missing or empty output file: "abort" or "skip"`)
	root.Flags().StringVar(&opts.plot, "plot", "", "Write a chart to this file instead of printing a table")

	root.AddCommand(newPlanCmd(opts), newConfigCmd(opts))
	return root
}

func newPlanCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "List the sweep's jobs and whether their output already exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			jobs, err := cfg.Grid().Plan()
			if err != nil {
				return err
			}
			cached, _, err := sweep.Partition(jobs, nil)
			if err != nil {
				return err
			}
			isCached := make(map[int]bool, len(cached))
			for _, jd := range cached {
				isCached[jd.Index] = true
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EPSILON\tSEED\tSTATUS\tOUTPUT\tCOMMAND")
			for _, jd := range jobs {
				status := "pending"
				if isCached[jd.Index] {
					status = "cached"
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s %s\n",
					sweep.FormatEpsilon(jd.Point.Epsilon), jd.Point.Seed, status, jd.OutputPath,
					cfg.Program.Path, strings.Join(jd.Args(), " "))
			}
			fmt.Fprintf(tw, "\n%d jobs, %d cached, %d pending\n", len(jobs), len(cached), len(jobs)-len(cached))
			return tw.Flush()
		},
	}
}

func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			data, err := cfg.Encode()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

// load reads the config file and applies the explicitly given flags.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("agents") {
		cfg.Sweep.SystemSize = o.systemSize
	}
	if f.Changed("samples") {
		cfg.Sweep.Samples = o.samples
	}
	if f.Changed("eps-min") {
		cfg.Sweep.EpsilonMin = o.epsilonMin
	}
	if f.Changed("eps-max") {
		cfg.Sweep.EpsilonMax = o.epsilonMax
	}
	if f.Changed("eps-step") {
		cfg.Sweep.EpsilonStep = o.epsilonStep
	}
	if f.Changed("seed") {
		cfg.Sweep.BaseSeed = o.baseSeed
	}
	if f.Changed("data-dir") {
		cfg.Output.DataDir = o.dataDir
	}
	if f.Changed("program") {
		cfg.Program.Path = o.program
		cfg.Program.Build = nil
	}
	if f.Changed("workers") {
		cfg.Execution.Workers = o.workers
	}
	if f.Changed("on-error") {
		cfg.Aggregation.OnError = o.onError
	}
	if f.Changed("plot") {
		cfg.Present.Plot = o.plot
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds a logger with zap's production settings that writes to w.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level.SetLevel(zap.DebugLevel)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), zapcore.AddSync(w), cfg.Level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

func runSweep(cmd *cobra.Command, opts *options) (err error) {
	ctx := cmd.Context()
	cfg, err := opts.load(cmd)
	if err != nil {
		return err
	}
	policy, err := cfg.ErrorPolicy()
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.verbose)
	defer func() { _ = logger.Sync() }()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	var tp trace.TracerProvider
	if opts.trace {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(cmd.ErrOrStderr()))
		if err != nil {
			return fmt.Errorf("creating trace exporter: %w", err)
		}
		sdktp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		defer func() {
			if shutdownErr := sdktp.Shutdown(context.Background()); shutdownErr != nil && err == nil {
				err = shutdownErr
			}
		}()
		tp = sdktp
	}

	if err := os.MkdirAll(cfg.Output.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	p := &sweep.Pipeline{
		Grid: cfg.Grid(),
		Executor: &sweep.Executor{
			Runner:         cfg.Command(),
			Workers:        cfg.Execution.Workers,
			Logger:         logger,
			TracerProvider: tp,
		},
		OnError: policy,
		Logger:  logger,
	}
	out, err := p.Run(ctx)
	if err != nil {
		logger.Error("Sweep failed", zap.Error(err))
		return err
	}
	if n := len(out.Summary.Skipped); n > 0 {
		logger.Warn("Sweep finished with skipped points", zap.Int("skipped", n))
	}

	if cfg.Present.Plot != "" {
		if err := present.Plot(cfg.Present.Plot, out.Summary, cfg.Present.Title); err != nil {
			return err
		}
		logger.Info("Wrote plot", zap.String("path", cfg.Present.Plot))
		return nil
	}
	return present.Table(cmd.OutOrStdout(), out.Summary)
}
