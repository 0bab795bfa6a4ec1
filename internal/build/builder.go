package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/conneroisu/assetry/internal/errors"
	"github.com/conneroisu/assetry/internal/logging"
)

// Result describes one Ensure call.
type Result struct {
	Source   string
	Output   string
	Compiled bool
	Duration time.Duration
}

// Observer is notified after every compile attempt.
type Observer interface {
	CompileFinished(source string, duration time.Duration, err error)
}

// Builder keeps compiled outputs fresh relative to their sources.
type Builder struct {
	// Timeout bounds a single compile; zero means no limit beyond ctx.
	Timeout  time.Duration
	Observer Observer

	flight  singleflight.Group
	checked sync.Map // pair key -> struct{}, used by check-once mode
}

// NewBuilder creates a builder with the given per-compile timeout.
func NewBuilder(timeout time.Duration) *Builder {
	return &Builder{Timeout: timeout}
}

// EnsureOptions tune a single Ensure call.
type EnsureOptions struct {
	// CheckOnce skips the freshness check for a pair that was already checked
	// by this builder.
	CheckOnce bool
}

// Stale reports whether output must be rebuilt from source. It returns an
// error wrapping os.ErrNotExist when source does not exist.
func Stale(source, output string) (bool, error) {
	srcInfo, err := os.Stat(source)
	if err != nil {
		return false, err
	}
	outInfo, err := os.Stat(output)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return outInfo.ModTime().Before(srcInfo.ModTime()), nil
}

// Ensure rebuilds output from source with c when output is missing or older
// than source. Concurrent calls for the same pair share one build. A missing
// source is reported as an error wrapping os.ErrNotExist.
//
// The shared build runs detached from the cancellation of whichever caller
// started it; each caller stops waiting when its own ctx is done.
func (b *Builder) Ensure(ctx context.Context, source, output string, c Compiler, opts EnsureOptions) (Result, error) {
	key := source + "\x00" + output

	if opts.CheckOnce {
		if _, done := b.checked.Load(key); done {
			return Result{Source: source, Output: output}, nil
		}
	}

	buildCtx := context.WithoutCancel(ctx)
	ch := b.flight.DoChan(key, func() (interface{}, error) {
		return b.ensure(buildCtx, source, output, c)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return Result{Source: source, Output: output}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return Result{Source: source, Output: output}, res.Err
	}

	if opts.CheckOnce {
		b.checked.Store(key, struct{}{})
	}

	return res.Val.(Result), nil
}

func (b *Builder) ensure(ctx context.Context, source, output string, c Compiler) (Result, error) {
	result := Result{Source: source, Output: output}

	stale, err := Stale(source, output)
	if err != nil {
		return result, err
	}
	if !stale {
		return result, nil
	}
	srcInfo, err := os.Stat(source)
	if err != nil {
		return result, err
	}

	logger := logging.FromContext(ctx).WithComponent("build")
	perf := logging.StartOperation(logger, "compile")

	start := time.Now()
	err = b.compileAtomic(ctx, source, output, srcInfo.ModTime(), c)
	result.Duration = time.Since(start)
	if b.Observer != nil {
		b.Observer.CompileFinished(source, result.Duration, err)
	}
	if err != nil {
		perf.EndWithError(ctx, err, "source", source)
		return result, err
	}

	perf.End(ctx, "source", source, "output", output)
	result.Compiled = true
	return result, nil
}

// compileAtomic compiles into a temporary file next to output and renames it
// into place, so readers only ever see a complete file. The output takes the
// source mtime observed before the compile, so an edit made while the
// compiler runs still leaves the output stale.
func (b *Builder) compileAtomic(ctx context.Context, source, output string, srcMod time.Time, c Compiler) error {
	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewIOError(errors.ErrCodeBuildFailed, "create output directory", err).
			WithLocation(source, 0, 0)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(output)+".*.tmp")
	if err != nil {
		return errors.NewIOError(errors.ErrCodeBuildFailed, "create temporary output", err).
			WithLocation(source, 0, 0)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() {
		_ = os.Remove(tmpPath)
		_ = os.Remove(tmpPath + ".map")
	}()

	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	if err := c.Compile(ctx, source, tmpPath); err != nil {
		if errors.IsBuildError(err) {
			return err
		}
		return errors.ErrBuildFailed(source, err)
	}

	// CreateTemp opens 0600; keep the mode of the output being replaced
	mode := os.FileMode(0o644)
	if info, err := os.Stat(output); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return errors.NewIOError(errors.ErrCodeBuildFailed, "set output mode", err).
			WithLocation(source, 0, 0)
	}
	if err := os.Chtimes(tmpPath, time.Now(), srcMod); err != nil {
		return errors.NewIOError(errors.ErrCodeBuildFailed, "set output mtime", err).
			WithLocation(source, 0, 0)
	}

	if err := os.Rename(tmpPath, output); err != nil {
		return errors.NewIOError(errors.ErrCodeBuildFailed, "replace output", err).
			WithLocation(source, 0, 0)
	}
	// source maps follow their stylesheet when the compiler wrote one
	if _, err := os.Stat(tmpPath + ".map"); err == nil {
		_ = os.Rename(tmpPath+".map", output+".map")
	}

	return nil
}

// Forget drops the check-once state, forcing the next Ensure of every pair to
// check freshness again.
func (b *Builder) Forget() {
	b.checked.Range(func(key, _ interface{}) bool {
		b.checked.Delete(key)
		return true
	})
}

// String implements fmt.Stringer for log output.
func (r Result) String() string {
	if r.Compiled {
		return fmt.Sprintf("%s -> %s (%s)", r.Source, r.Output, r.Duration)
	}
	return fmt.Sprintf("%s -> %s (fresh)", r.Source, r.Output)
}
