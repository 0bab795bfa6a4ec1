package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCompiles(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.CompileFinished("a.scss", 10*time.Millisecond, nil)
	c.CompileFinished("b.scss", 20*time.Millisecond, errors.New("bad"))
	c.CompileFinished("c.scss", 5*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.compiles.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.compiles.WithLabelValues("failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.compileDuration))
}

func TestCollectorFragmentsAndRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.FragmentEmitted("styles")
	c.FragmentEmitted("styles")
	c.FragmentEmitted("")
	c.RunFinished(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.fragments.WithLabelValues("styles")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fragments.WithLabelValues("none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("success")))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.CompileFinished("a.scss", time.Second, nil)
		c.FragmentEmitted("styles")
		c.RunFinished(errors.New("x"))
	})
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.CompileFinished("a.scss", time.Millisecond, nil)

	path := filepath.Join(t.TempDir(), "assetry.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `assetry_compiles_total{result="success"} 1`))
}
