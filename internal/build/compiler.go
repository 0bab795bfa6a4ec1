// Package build compiles source assets such as scss or less stylesheets into
// browser-ready files. Builds are incremental (skipped while the output is
// newer than its source), atomic (written to a temporary file and renamed),
// and deduplicated across goroutines per source and output pair.
package build

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/conneroisu/assetry/internal/errors"
	"github.com/conneroisu/assetry/internal/validation"
)

// Compiler transforms the file at source into the file at output.
type Compiler interface {
	Compile(ctx context.Context, source, output string) error
}

// CompilerFunc adapts an ordinary function to the Compiler interface.
type CompilerFunc func(ctx context.Context, source, output string) error

// Compile calls f(ctx, source, output).
func (f CompilerFunc) Compile(ctx context.Context, source, output string) error {
	return f(ctx, source, output)
}

// CommandCompiler runs an external transformer. The {source} and {output}
// placeholders in Args are replaced with the paths of each compile.
type CommandCompiler struct {
	Command string
	Args    []string
	// Dir is the working directory of the command; empty means the current one.
	Dir     string
	Allowed map[string]bool
	// Vars are extra placeholders replaced in Args, such as {appdir}.
	Vars map[string]string

	parser *errors.ErrorParser
}

// NewCommandCompiler creates a compiler from a full command line.
func NewCommandCompiler(argv []string, allowed map[string]bool) (*CommandCompiler, error) {
	if allowed == nil {
		allowed = validation.DefaultAllowedCommands
	}
	if err := validation.ValidateCommandLine(argv, allowed); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeCommandInvalid,
			fmt.Sprintf("command validation failed: %v", err))
	}
	return &CommandCompiler{
		Command: argv[0],
		Args:    append([]string(nil), argv[1:]...),
		Allowed: allowed,
		parser:  errors.NewErrorParser(),
	}, nil
}

// Compile runs the command with context-based cancellation.
func (cc *CommandCompiler) Compile(ctx context.Context, source, output string) error {
	// Validate command and arguments to prevent command injection
	if err := cc.validateCommand(); err != nil {
		return errors.NewValidationError(errors.ErrCodeCommandInvalid,
			fmt.Sprintf("command validation failed: %v", err))
	}

	pairs := []string{"{source}", source, "{output}", output}
	for k, v := range cc.Vars {
		pairs = append(pairs, k, v)
	}
	replacer := strings.NewReplacer(pairs...)
	args := make([]string, len(cc.Args))
	for i, arg := range cc.Args {
		args[i] = replacer.Replace(arg)
	}

	cmd := exec.CommandContext(ctx, cc.Command, args...)
	cmd.Dir = cc.Dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return errors.ErrBuildFailed(source, fmt.Errorf("%s timed out: %w", cc.Command, ctx.Err()))
		}
		parser := cc.parser
		if parser == nil {
			parser = errors.NewErrorParser()
		}
		text := string(out)
		if text == "" {
			text = err.Error()
		}
		return parser.ToBuildError(source, text, err)
	}

	return nil
}

// String returns the configured command line.
func (cc *CommandCompiler) String() string {
	return strings.Join(append([]string{cc.Command}, cc.Args...), " ")
}

func (cc *CommandCompiler) validateCommand() error {
	allowed := cc.Allowed
	if allowed == nil {
		allowed = validation.DefaultAllowedCommands
	}
	return validation.ValidateCommandLine(append([]string{cc.Command}, cc.Args...), allowed)
}
