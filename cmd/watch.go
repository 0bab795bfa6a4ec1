package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/assetry/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Recompile assets and reload templates on change",
	Long: `Watch every application directory. Editing a stylesheet source such as a
.scss file recompiles the stale assets; adding, editing or removing a template
reloads the application's templates.

Examples:
  assetry watch                   # Watch with the default delay
  assetry watch --delay 500ms     # Wait longer for editors that save twice
  assetry watch --skip-initial    # Do not compile before watching`,
	RunE: runWatch,
}

var (
	watchDelay       time.Duration
	watchSkipInitial bool
)

// sourceExtensions are the stylesheet sources whose change triggers a compile.
var sourceExtensions = []string{".scss", ".scssm", ".sass", ".less"}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchDelay, "delay", 300*time.Millisecond, "Quiet period before a batch of changes is handled")
	watchCmd.Flags().BoolVar(&watchSkipInitial, "skip-initial", false, "Skip the initial build")
}

func runWatch(cmd *cobra.Command, args []string) error {
	env, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	if !watchSkipInitial {
		// failures are reported and fixed while watching
		if err := precompile(ctx, out, env, false); err != nil {
			env.logger.Warn(ctx, err, "initial build failed")
		}
	}

	fileWatcher, err := watcher.NewFileWatcher(watchDelay, env.logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.NoTempFilter)
	fileWatcher.AddFilter(watcher.NoGitFilter)

	reg := env.engine.Registry()
	fileWatcher.AddHandler(watcher.TemplateHandler(reg, env.engine.Forget))
	fileWatcher.AddHandler(watcher.SourceHandler(
		watcher.ExtensionFilter(sourceExtensions...),
		func(ctx context.Context) error {
			return precompile(ctx, out, env, false)
		},
	))

	for _, app := range reg.GetAll() {
		if err := fileWatcher.AddRecursive(app.Dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", app.Dir, err)
		}
		env.logger.Info(ctx, "watching application", "app", app.Name, "dir", app.Dir)
	}

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	fmt.Fprintln(out, "Watching for changes... (Press Ctrl+C to stop)")
	<-ctx.Done()
	fmt.Fprintln(out, "Stopping file watcher...")

	return nil
}
