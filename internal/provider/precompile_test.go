package provider

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/assetry/internal/build"
	"github.com/conneroisu/assetry/internal/errors"
)

func TestPrecompile(t *testing.T) {
	s := newSite(t)
	s.write(t, "styles/base.scss", "body{}", fixedMtime)
	s.write(t, "styles/index.scss", "main{}", fixedMtime)
	s.write(t, "styles/broken.scss", "main{", fixedMtime)

	var calls atomic.Int32
	copyOrFail := build.CompilerFunc(func(ctx context.Context, source, output string) error {
		if source == filepath.Join(s.appDir, "styles", "broken.scss") {
			return stderrors.New("unclosed block")
		}
		return countingCopy(&calls, 0).Compile(ctx, source, output)
	})
	p, err := NewCompileProvider(scssOptions(copyOrFail), s.deps)
	require.NoError(t, err)
	install(t, Settings{Default: []Provider{p}})

	handles := []Handle{
		s.handle("base.htm", "index.html"),
		s.handle("base.htm", "about.html"),
		s.handle("base.htm", "broken.html"),
	}

	collector := errors.NewErrorCollector()
	results, err := Precompile(context.Background(), handles, collector)
	require.NoError(t, err)

	assert.Len(t, results, 2, "base is compiled once, about has no source")
	assert.Equal(t, int32(2), calls.Load())
	require.Equal(t, 1, collector.Count())
	assert.Len(t, collector.GetErrorsByTemplate("homepage/broken.html"), 1)

	// everything is fresh now
	results, err = Precompile(context.Background(), handles[:2], errors.NewErrorCollector())
	require.NoError(t, err)
	for _, res := range results {
		assert.False(t, res.Compiled, res.String())
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestPrecompileNotInitialized(t *testing.T) {
	Reset()
	_, err := Precompile(context.Background(), nil, errors.NewErrorCollector())
	assert.True(t, errors.HasErrorCode(err, errors.ErrCodeNotInitialized))
}
