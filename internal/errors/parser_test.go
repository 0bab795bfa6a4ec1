package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorParserDartSass(t *testing.T) {
	output := `Error: expected "{".
  ╷
3 │ .foo
  │     ^
  ╵
  styles/base.scss 3:5  root stylesheet`

	parsed := NewErrorParser().ParseError(output)
	require.Len(t, parsed, 1)
	assert.Equal(t, CompilerErrorTypeSass, parsed[0].Type)
	assert.Equal(t, "styles/base.scss", parsed[0].File)
	assert.Equal(t, 3, parsed[0].Line)
	assert.Equal(t, 5, parsed[0].Column)
	assert.Equal(t, `expected "{".`, parsed[0].Message)
}

func TestErrorParserRubySass(t *testing.T) {
	output := "Error: Invalid CSS after \".foo\": expected \"{\", was \"\"\n        on line 7 of styles/index.scss\n"

	parsed := NewErrorParser().ParseError(output)
	require.Len(t, parsed, 1)
	assert.Equal(t, "styles/index.scss", parsed[0].File)
	assert.Equal(t, 7, parsed[0].Line)
	assert.Equal(t, 0, parsed[0].Column)
}

func TestErrorParserLess(t *testing.T) {
	output := "ParseError: Unrecognised input in styles/base.less on line 2, column 9:\n1 .a {\n2   color: ;"

	parsed := NewErrorParser().ParseError(output)
	require.Len(t, parsed, 1)
	assert.Equal(t, CompilerErrorTypeLess, parsed[0].Type)
	assert.Equal(t, "styles/base.less", parsed[0].File)
	assert.Equal(t, 2, parsed[0].Line)
	assert.Equal(t, 9, parsed[0].Column)
	assert.Equal(t, "ParseError: Unrecognised input", parsed[0].Message)
}

func TestErrorParserMissingCompiler(t *testing.T) {
	parsed := NewErrorParser().ParseError(`exec: "scss": executable file not found in $PATH`)
	require.Len(t, parsed, 1)
	assert.Equal(t, CompilerErrorTypeCommand, parsed[0].Type)
	assert.Equal(t, ErrorSeverityFatal, parsed[0].Severity)
	assert.Contains(t, parsed[0].Message, `"scss"`)
}

func TestToBuildError(t *testing.T) {
	cause := errors.New("exit status 65")
	parser := NewErrorParser()

	located := parser.ToBuildError("/app/styles/base.scss", "Error: bad\n  styles/base.scss 4:2  root stylesheet", cause)
	assert.Equal(t, "/app/styles/base.scss", located.FilePath)
	assert.Equal(t, 4, located.Line)
	assert.Equal(t, 2, located.Column)
	assert.Equal(t, "compile failed: bad", located.Message)
	assert.ErrorIs(t, located, cause)
	assert.True(t, IsBuildError(located))

	raw := parser.ToBuildError("/app/styles/base.scss", "something odd happened", cause)
	assert.Equal(t, "compile failed", raw.Message)
	assert.Equal(t, "something odd happened", raw.Context["output"])
}
