package errors

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CompilerErrorType represents the kind of compiler that produced an error.
type CompilerErrorType int

const (
	CompilerErrorTypeUnknown CompilerErrorType = iota
	CompilerErrorTypeSass
	CompilerErrorTypeLess
	CompilerErrorTypeCommand
)

// ParsedError represents a parsed error with structured information
type ParsedError struct {
	Type     CompilerErrorType `json:"type"`
	Severity ErrorSeverity     `json:"severity"`
	File     string            `json:"file"`
	Line     int               `json:"line"`
	Column   int               `json:"column"`
	Message  string            `json:"message"`
	RawError string            `json:"raw_error"`
	Context  []string          `json:"context,omitempty"`
}

// ErrorParser parses stylesheet compiler output into structured errors.
type ErrorParser struct {
	patterns []errorPattern
}

type errorPattern struct {
	regex       *regexp.Regexp
	errorType   CompilerErrorType
	severity    ErrorSeverity
	parseFields func(matches []string) (file string, line int, column int, message string)
}

// NewErrorParser creates a new error parser
func NewErrorParser() *ErrorParser {
	return &ErrorParser{
		patterns: buildCompilerPatterns(),
	}
}

// ParseError parses compiler output into structured errors. Dart Sass prints
// the message first and the location a few lines later, so a message line
// without a location is held until a location line completes it.
func (ep *ErrorParser) ParseError(output string) []*ParsedError {
	var errors []*ParsedError
	var pending *ParsedError

	lines := strings.Split(output, "\n")

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		parsed := ep.tryParseWithPatterns(line)
		if parsed == nil {
			continue
		}
		parsed.Context = ep.getContextLines(lines, i, 2)

		switch {
		case parsed.File == "" && parsed.Message != "":
			if pending != nil {
				errors = append(errors, pending)
			}
			pending = parsed
		case parsed.Message == "" && pending != nil:
			pending.File = parsed.File
			pending.Line = parsed.Line
			pending.Column = parsed.Column
			pending.Type = parsed.Type
			errors = append(errors, pending)
			pending = nil
		case parsed.Message == "":
			// a location with no message to attach it to
		default:
			if pending != nil {
				errors = append(errors, pending)
				pending = nil
			}
			errors = append(errors, parsed)
		}
	}

	if pending != nil {
		errors = append(errors, pending)
	}

	return errors
}

// ToBuildError converts the first parsed error in output into a located build
// error for source, falling back to the raw output when nothing matched.
func (ep *ErrorParser) ToBuildError(source string, output string, cause error) *AssetError {
	buildErr := ErrBuildFailed(source, cause)
	parsed := ep.ParseError(output)
	if len(parsed) == 0 {
		if trimmed := strings.TrimSpace(output); trimmed != "" {
			buildErr.WithContext("output", trimmed)
		}
		return buildErr
	}

	first := parsed[0]
	buildErr.Message = "compile failed: " + first.Message
	if first.Line > 0 {
		buildErr.Line = first.Line
		buildErr.Column = first.Column
	}
	if len(parsed) > 1 {
		buildErr.WithContext("additional_errors", len(parsed)-1)
	}
	return buildErr
}

func (ep *ErrorParser) tryParseWithPatterns(line string) *ParsedError {
	for _, pattern := range ep.patterns {
		matches := pattern.regex.FindStringSubmatch(line)
		if matches != nil {
			file, lineNum, column, message := pattern.parseFields(matches)

			return &ParsedError{
				Type:     pattern.errorType,
				Severity: pattern.severity,
				File:     file,
				Line:     lineNum,
				Column:   column,
				Message:  message,
				RawError: line,
			}
		}
	}
	return nil
}

func (ep *ErrorParser) getContextLines(lines []string, index int, radius int) []string {
	start := max(0, index-radius)
	end := min(len(lines), index+radius+1)

	var context []string
	for i := start; i < end; i++ {
		prefix := "  "
		if i == index {
			prefix = "→ "
		}
		context = append(context, fmt.Sprintf("%s%s", prefix, lines[i]))
	}

	return context
}

func buildCompilerPatterns() []errorPattern {
	return []errorPattern{
		{
			// lessc: ParseError: Unrecognised input in styles/base.less on line 3, column 5:
			regex:     regexp.MustCompile(`^(\w*Error): (.+?) in (.+?) on line (\d+), column (\d+):?$`),
			errorType: CompilerErrorTypeLess,
			severity:  ErrorSeverityError,
			parseFields: func(matches []string) (string, int, int, string) {
				line, _ := strconv.Atoi(matches[4])
				column, _ := strconv.Atoi(matches[5])
				return matches[3], line, column, matches[1] + ": " + matches[2]
			},
		},
		{
			// ruby sass: on line 3 of styles/base.scss
			regex:     regexp.MustCompile(`^on line (\d+)(?::(\d+))? of (.+?)(?:, in .*)?$`),
			errorType: CompilerErrorTypeSass,
			severity:  ErrorSeverityError,
			parseFields: func(matches []string) (string, int, int, string) {
				line, _ := strconv.Atoi(matches[1])
				column, _ := strconv.Atoi(matches[2])
				return matches[3], line, column, ""
			},
		},
		{
			// dart sass: styles/base.scss 3:5  root stylesheet
			regex:     regexp.MustCompile(`^(\S+\.s[ac]ss[m]?) (\d+):(\d+)\s+.*$`),
			errorType: CompilerErrorTypeSass,
			severity:  ErrorSeverityError,
			parseFields: func(matches []string) (string, int, int, string) {
				line, _ := strconv.Atoi(matches[2])
				column, _ := strconv.Atoi(matches[3])
				return matches[1], line, column, ""
			},
		},
		{
			regex:     regexp.MustCompile(`^Error: (.+)$`),
			errorType: CompilerErrorTypeUnknown,
			severity:  ErrorSeverityError,
			parseFields: func(matches []string) (string, int, int, string) {
				return "", 0, 0, matches[1]
			},
		},
		{
			regex:     regexp.MustCompile(`^(?:exec: )?"?([^":]+)"?: executable file not found in \$PATH$`),
			errorType: CompilerErrorTypeCommand,
			severity:  ErrorSeverityFatal,
			parseFields: func(matches []string) (string, int, int, string) {
				return "", 0, 0, fmt.Sprintf("compiler %q is not installed", matches[1])
			},
		},
	}
}
