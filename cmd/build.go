package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/assetry/internal/build"
	"github.com/conneroisu/assetry/internal/errors"
	"github.com/conneroisu/assetry/internal/metrics"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile the assets of every template",
	Long: `Compile every stale asset referenced by any template of any application, so
that the first request in production does not pay for the compile.

Every failure is reported before the command exits with an error.

Examples:
  assetry build                                   # Compile stale assets
  assetry build -v                                # List every asset
  assetry build --metrics-file build/assetry.prom # Export compile metrics`,
	RunE: runBuild,
}

var (
	buildMetricsFile string
	buildVerbose     bool
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVar(&buildMetricsFile, "metrics-file", "", "Write compile metrics in the Prometheus text format")
	buildCmd.Flags().BoolVarP(&buildVerbose, "verbose", "v", false, "List every asset, including fresh ones")

	BindFlags(buildCmd.Flags(), map[string]string{
		"metrics-file": "build.metrics_file",
	})
}

func runBuild(cmd *cobra.Command, args []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	return precompile(cmd.Context(), cmd.OutOrStdout(), env, buildVerbose)
}

// precompile compiles every stale asset, prints a report and writes the
// metrics textfile when configured.
func precompile(ctx context.Context, w io.Writer, env *environment, verbose bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	collector := errors.NewErrorCollector()

	results, err := env.engine.Precompile(ctx, collector)
	if err != nil {
		return err
	}

	report(w, results, collector, verbose, time.Since(start))

	if path := env.cfg.Build.MetricsFile; path != "" {
		if err := metrics.WriteTextfile(path, env.gatherer); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	if collector.HasErrors() {
		return fmt.Errorf("%d assets failed to build: %w", collector.Count(), collector.Err())
	}
	return nil
}

func report(w io.Writer, results []build.Result, collector *errors.ErrorCollector, verbose bool, elapsed time.Duration) {
	compiled := 0
	for _, result := range results {
		if result.Compiled {
			compiled++
			fmt.Fprintf(w, "compiled %s -> %s (%v)\n", result.Source, result.Output, result.Duration.Round(time.Millisecond))
		} else if verbose {
			fmt.Fprintf(w, "fresh    %s\n", result.Output)
		}
	}

	for _, e := range collector.GetErrors() {
		fmt.Fprintf(w, "failed   %s\n", e.Error())
	}

	fmt.Fprintf(w, "%d assets, %d compiled, %d failed in %v\n",
		len(results), compiled, collector.Count(), elapsed.Round(time.Millisecond))
}
