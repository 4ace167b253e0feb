package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/gridtune/internal/config"
	"github.com/ogulcanaydogan/gridtune/internal/hash"
	"github.com/ogulcanaydogan/gridtune/internal/pipeline"
	"github.com/ogulcanaydogan/gridtune/internal/report"
	"github.com/ogulcanaydogan/gridtune/internal/space"
	"github.com/ogulcanaydogan/gridtune/internal/store"
	"github.com/ogulcanaydogan/gridtune/internal/tune"
	"github.com/ogulcanaydogan/gridtune/pkg/logger"
	"github.com/ogulcanaydogan/gridtune/pkg/schema"
)

const (
	exitFault       = 1
	exitInterrupted = 130
)

type cliError struct {
	code int
	err  error
}

func (e cliError) Error() string { return e.err.Error() }

func (e cliError) Unwrap() error { return e.err }

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		var ce cliError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, ce.err)
			os.Exit(ce.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFault)
	}
}

var ociPullFunc = store.PullOCI
var ociPublishFunc = store.PublishOCI

var newExecutor = func(env pipeline.Environment) tune.Executor {
	return pipeline.New(env, nil)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "gridtune",
		Short:         "Grid search over compiler pass parameters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newInitCommand())
	root.AddCommand(newPlanCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newBestCommand())
	root.AddCommand(newReportCommand())
	root.AddCommand(newVerifyCommand())
	root.AddCommand(newPublishCommand())
	root.AddCommand(newPullCommand())
	return root
}

func newInitCommand() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default gridtune configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if hash.FileExists(cfgPath) {
				fmt.Fprintf(out, "%s already exists\n", cfgPath)
				return nil
			}
			if dir := filepath.Dir(cfgPath); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := os.WriteFile(cfgPath, []byte(config.DefaultYAML), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(out, "initialized gridtune config at %s\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", config.DefaultPath, "config file path")
	return cmd
}

func newPlanCommand() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "List the configurations a run would test",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			s, err := space.New(cfg.SearchParameters())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Parameters: %s\n", strings.Join(s.Names(), ", "))
			fmt.Fprintf(out, "Configurations: %d\n", s.Size())
			i := 0
			for c := range s.All() {
				i++
				fmt.Fprintf(out, "%d: %s\n", i, c)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", config.DefaultPath, "config file path")
	return cmd
}

func newRunCommand() *cobra.Command {
	var cfgPath, outDir, logLevel, logFormat string
	var iterations int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build, run and score every configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("out") {
				cfg.OutputDir = outDir
			}
			if cmd.Flags().Changed("iterations") {
				cfg.Iterations = iterations
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			var log *slog.Logger
			switch logFormat {
			case "text":
				log = logger.NewText(cfg.LogLevel, cmd.ErrOrStderr())
			case "json":
				log = logger.New(cfg.LogLevel, cmd.ErrOrStderr())
			default:
				return fmt.Errorf("unsupported --log-format %q (use text|json)", logFormat)
			}
			logger.SetDefault(log)

			s, err := space.New(cfg.SearchParameters())
			if err != nil {
				return err
			}
			env, err := cfg.PipelineEnvironment()
			if err != nil {
				return err
			}
			pause, err := cfg.PauseDuration()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err = tune.Run(ctx, tune.Options{
				Space:     s,
				Executor:  newExecutor(env),
				OutputDir: cfg.OutputDir,
				Pause:     pause,
				Logger:    log,
				Out:       cmd.OutOrStdout(),
			})
			switch {
			case err == nil:
				return nil
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				return cliError{code: exitInterrupted, err: err}
			default:
				return cliError{code: exitFault, err: err}
			}
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", config.DefaultPath, "config file path")
	cmd.Flags().StringVar(&outDir, "out", "", "results directory (overrides output_dir)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "benchmark iterations (overrides iterations)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "log format (text|json)")
	return cmd
}

func newBestCommand() *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "best",
		Short: "Print the best configuration of a trial file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inPath == "" {
				return fmt.Errorf("--in is required")
			}
			trials, err := store.LoadTrials(inPath)
			if err != nil {
				return err
			}
			best, ok := report.Best(trials)
			if !ok {
				return fmt.Errorf("no trials in %s", inPath)
			}
			report.WriteBest(cmd.OutOrStdout(), best)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "trial file")
	return cmd
}

func newReportCommand() *cobra.Command {
	var inPath, outPath, format string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a ranked report from a trial file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inPath == "" || outPath == "" {
				return fmt.Errorf("--in and --out are required")
			}
			trials, err := store.LoadTrials(inPath)
			if err != nil {
				return err
			}
			switch format {
			case "md":
				err = report.WriteMarkdown(outPath, trials)
			case "json":
				err = report.WriteJSON(outPath, trials)
			default:
				return fmt.Errorf("unsupported --format %q (use md|json)", format)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "trial file")
	cmd.Flags().StringVar(&outPath, "out", "", "report output path")
	cmd.Flags().StringVar(&format, "format", "md", "output format (md|json)")
	return cmd
}

func newVerifyCommand() *cobra.Command {
	var inPath, schemaPath string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Validate a trial file and print its digest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inPath == "" {
				return fmt.Errorf("--in is required")
			}
			trials, err := store.LoadTrials(inPath)
			if err != nil {
				return cliError{code: exitFault, err: err}
			}
			if schemaPath != "" {
				if err := checkSchemaFile(schemaPath, inPath); err != nil {
					return cliError{code: exitFault, err: err}
				}
			}
			digest, size, err := hash.DigestFile(inPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "valid: %d trials\n", len(trials))
			fmt.Fprintf(out, "digest: %s (%d bytes)\n", digest, size)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "trial file")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "additional JSON schema to check against")
	return cmd
}

func checkSchemaFile(schemaPath, inPath string) error {
	abs, err := filepath.Abs(schemaPath)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode %s: %w", inPath, err)
	}
	violations, err := schema.Validate(abs, doc)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return fmt.Errorf("%s does not match %s: %s", inPath, schemaPath, strings.Join(violations, "; "))
	}
	return nil
}

func newPublishCommand() *cobra.Command {
	var inPath, ociRef string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a trial file to an OCI registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inPath == "" || ociRef == "" {
				return fmt.Errorf("--in and --oci are required")
			}
			pinned, err := ociPublishFunc(inPath, ociRef)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pinned)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "trial file")
	cmd.Flags().StringVar(&ociRef, "oci", "", "OCI destination")
	return cmd
}

func newPullCommand() *cobra.Command {
	var ociRef, outPath string
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Fetch a trial file from an OCI registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ociRef == "" || outPath == "" {
				return fmt.Errorf("--oci and --out are required")
			}
			if err := ociPullFunc(ociRef, outPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&ociRef, "oci", "", "OCI source")
	cmd.Flags().StringVar(&outPath, "out", "", "output trial file")
	return cmd
}
