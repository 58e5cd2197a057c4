// Command ngcompress compresses n-gram frequency corpora by expressing
// each n-gram as a non-negative linear combination of its sub-n-grams,
// subject to a normalized L-infinity error bound.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/armchr/ngcompress/internal/children"
	"github.com/armchr/ngcompress/internal/config"
	"github.com/armchr/ngcompress/internal/loader"
	"github.com/armchr/ngcompress/internal/orchestrator"
	"github.com/armchr/ngcompress/internal/preprocess"
	"github.com/armchr/ngcompress/internal/writer"
)

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level.SetLevel(zapcore.DebugLevel)
	cfg.OutputPaths = []string{"stdout"}
	return cfg.Build()
}

func main() {
	logger, err := newLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	root := &cobra.Command{
		Use:   "ngcompress",
		Short: "Compress n-gram corpus frequency time-series",
		Long: `ngcompress expresses each n-gram's frequency vector as a non-negative
linear combination of its sub-n-grams' vectors, subject to a normalized
L-infinity error bound, in passes over n=1..5.`,
	}

	root.AddCommand(newPreprocessCmd(logger))
	root.AddCommand(newOptimizeCmd(logger))

	if err := root.Execute(); err != nil {
		logger.Fatal("command failed", zap.Error(err))
	}
}

func newPreprocessCmd(logger *zap.Logger) *cobra.Command {
	var opts preprocess.Options
	var configPath string

	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Convert raw tab-separated input into the optimizer's columnar layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				cfg, err := config.LoadConfig(configPath)
				if err != nil {
					return fmt.Errorf("loading config %q: %w", configPath, err)
				}
				applyPreprocessConfig(cmd, cfg.Preprocess, &opts)
			}
			if opts.InputDir == "" || opts.OutputDir == "" {
				return fmt.Errorf("--input and --output are required, whether set directly or via --config")
			}
			return preprocess.Run(opts, logger)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file providing defaults for unset flags (preprocess: section)")
	cmd.Flags().StringVarP(&opts.InputDir, "input", "i", "", "root directory containing 1/, 2/, ..., 5/ subdirectories of raw files")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "output directory")
	cmd.Flags().BoolVarP(&opts.Gzip, "gzip", "g", false, "inputs are gzip-compressed")
	cmd.Flags().BoolVarP(&opts.Continue, "continue", "c", false, "skip output files that already exist")
	cmd.Flags().BoolVarP(&opts.DuckDB, "duckdb", "d", false, "also materialize <output>.db as the union of all columnar files")

	return cmd
}

// applyPreprocessConfig overlays cfg onto opts for every flag the caller
// didn't set explicitly on the command line.
func applyPreprocessConfig(cmd *cobra.Command, cfg config.Preprocess, opts *preprocess.Options) {
	if !cmd.Flags().Changed("input") && cfg.InputDir != "" {
		opts.InputDir = cfg.InputDir
	}
	if !cmd.Flags().Changed("output") && cfg.OutputDir != "" {
		opts.OutputDir = cfg.OutputDir
	}
	if !cmd.Flags().Changed("gzip") && cfg.Gzip {
		opts.Gzip = cfg.Gzip
	}
	if !cmd.Flags().Changed("continue") && cfg.Continue {
		opts.Continue = cfg.Continue
	}
	if !cmd.Flags().Changed("duckdb") && cfg.DuckDB {
		opts.DuckDB = cfg.DuckDB
	}
}

func newOptimizeCmd(logger *zap.Logger) *cobra.Command {
	var (
		configPath string
		inputPath  string
		outputDir  string
		chunkSize  uint64
		errorBound float64
		verbose    bool
		outputAll  bool
		cores      int
		policyName string
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Run the compression passes over a prepared corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				cfg, err := config.LoadConfig(configPath)
				if err != nil {
					return fmt.Errorf("loading config %q: %w", configPath, err)
				}
				applyOptimizeConfig(cmd, cfg.Optimize, &inputPath, &outputDir, &chunkSize, &errorBound, &verbose, &outputAll, &cores, &policyName)
			}
			if inputPath == "" || outputDir == "" {
				return fmt.Errorf("--input and --output are required, whether set directly or via --config")
			}

			policy, err := parsePolicy(policyName)
			if err != nil {
				return err
			}

			l, closer, err := openLoader(inputPath, logger)
			if err != nil {
				return fmt.Errorf("opening input %q: %w", inputPath, err)
			}
			defer closer.Close()

			resolvedCores := cores
			if resolvedCores <= 0 {
				resolvedCores = runtime.NumCPU() / 2
				if resolvedCores < 1 {
					resolvedCores = 1
				}
			}

			o := orchestrator.New(l, writer.New(outputDir, verbose), logger, orchestrator.Config{
				ChunkSize:  chunkSize,
				ErrorBound: errorBound,
				Cores:      resolvedCores,
				OutputAll:  outputAll,
				Verbose:    verbose,
				Policy:     policy,
			})

			return o.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file providing defaults for unset flags (optimize: section)")
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "input path: a directory of columnar files, or a .db file for the embedded-DB backend")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output root")
	cmd.Flags().Uint64VarP(&chunkSize, "chunk-size", "c", 2_500_000, "rows processed per step")
	cmd.Flags().Float64VarP(&errorBound, "error-bound", "b", 0.5, "normalized L-infinity error bound")
	cmd.Flags().BoolVarP(&verbose, "verbose", "V", false, "fill the error/rmse/summed_error columns of the compressed table (they hold 0 otherwise)")
	cmd.Flags().BoolVarP(&outputAll, "output-all", "a", false, "include rejected n-grams in the compressed table too")
	cmd.Flags().IntVarP(&cores, "cores", "C", 0, "worker count (default: available_cpus / 2)")
	cmd.Flags().StringVar(&policyName, "policy", "full-recursive", "child enumeration policy: full-recursive, direct-children, highly-selective")

	return cmd
}

// applyOptimizeConfig overlays cfg onto the optimize flags for every one the
// caller didn't set explicitly on the command line.
func applyOptimizeConfig(cmd *cobra.Command, cfg config.Optimize, inputPath, outputDir *string, chunkSize *uint64, errorBound *float64, verbose, outputAll *bool, cores *int, policyName *string) {
	if !cmd.Flags().Changed("input") && cfg.Loader.Path != "" {
		*inputPath = cfg.Loader.Path
	}
	if !cmd.Flags().Changed("output") && cfg.OutputDir != "" {
		*outputDir = cfg.OutputDir
	}
	if !cmd.Flags().Changed("chunk-size") && cfg.ChunkSize != 0 {
		*chunkSize = cfg.ChunkSize
	}
	if !cmd.Flags().Changed("error-bound") && cfg.ErrorBound != 0 {
		*errorBound = cfg.ErrorBound
	}
	if !cmd.Flags().Changed("verbose") && cfg.Verbose {
		*verbose = cfg.Verbose
	}
	if !cmd.Flags().Changed("output-all") && cfg.OutputAll {
		*outputAll = cfg.OutputAll
	}
	if !cmd.Flags().Changed("cores") && cfg.Cores != 0 {
		*cores = cfg.Cores
	}
	if !cmd.Flags().Changed("policy") && cfg.PolicyName != "" {
		*policyName = cfg.PolicyName
	}
}

func parsePolicy(name string) (children.Policy, error) {
	switch name {
	case "full-recursive", "":
		return children.FullRecursive, nil
	case "direct-children":
		return children.DirectChildren, nil
	case "highly-selective":
		return children.HighlySelective, nil
	default:
		return 0, fmt.Errorf("unknown policy %q", name)
	}
}

// openLoader selects the backend by the input path's extension: a ".db"
// file selects the embedded-DB backend, anything else a columnar
// directory. It also returns an io.Closer to release the backend's
// resources.
func openLoader(path string, logger *zap.Logger) (loader.Loader, io.Closer, error) {
	if (config.Loader{Path: path}).IsEmbeddedDB() {
		l, err := loader.NewSQLiteLoader(path)
		if err != nil {
			return nil, nil, err
		}
		return l, l, nil
	}
	return loader.NewParquetLoader(path, logger), nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
