package monitoring

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace(n int, withTruth bool) *TracePlotter {
	tp := NewTracePlotter("Infantry3")
	for i := 0; i < n; i++ {
		s := TraceSample{
			Cycle:    i,
			Phase:    "track",
			Observed: true,
			Estimate: TraceValues{ThetaDeg: 45, DistanceMM: 2000, ArmorYawDeg: float64(i) * 0.3, SpinDps: 30},
		}
		if withTruth {
			s.Truth = &TraceValues{ThetaDeg: 45, DistanceMM: 2000, ArmorYawDeg: float64(i) * 0.3, SpinDps: 30}
		}
		tp.Add(s)
	}
	return tp
}

func TestTracePlotter_SavePNG(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "plots")
	files, err := sampleTrace(20, true).SavePNG(dir)
	require.NoError(t, err)
	require.Len(t, files, 4)
	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
	assert.FileExists(t, filepath.Join(dir, "Infantry3_v_spin.png"))
}

func TestTracePlotter_SavePNGEmpty(t *testing.T) {
	t.Parallel()
	files, err := NewTracePlotter("x").SavePNG(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestTracePlotter_RenderHTML(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, sampleTrace(10, false).RenderHTML(&buf))
	html := buf.String()
	assert.Contains(t, html, "Spin rate")
	assert.Contains(t, html, "estimate")
	assert.NotContains(t, html, "\"truth\"")
}

func TestTracePlotter_ConcurrentAdd(t *testing.T) {
	t.Parallel()
	tp := NewTracePlotter("x")
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				tp.Add(TraceSample{Cycle: g*50 + i})
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 400, tp.Len())
}

func TestTracePlotter_AddCopiesTruth(t *testing.T) {
	t.Parallel()
	tp := NewTracePlotter("x")
	truth := TraceValues{ThetaDeg: 1}
	tp.Add(TraceSample{Truth: &truth})
	truth.ThetaDeg = 99
	assert.Equal(t, 1.0, tp.snapshot()[0].Truth.ThetaDeg)
}
