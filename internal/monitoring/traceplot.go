package monitoring

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// TraceValues is the subset of an estimate worth plotting.
type TraceValues struct {
	ThetaDeg    float64
	DistanceMM  float64
	ArmorYawDeg float64
	SpinDps     float64
}

// TraceSample is one cycle of a trace. Truth is nil when ground truth is
// unknown (recorded logs).
type TraceSample struct {
	Cycle    int
	Phase    string
	Observed bool
	Estimate TraceValues
	Truth    *TraceValues
}

type traceQuantity struct {
	key   string
	title string
	unit  string
	get   func(TraceValues) float64
}

var traceQuantities = []traceQuantity{
	{"theta", "Bearing", "deg", func(v TraceValues) float64 { return v.ThetaDeg }},
	{"distance", "Distance", "mm", func(v TraceValues) float64 { return v.DistanceMM }},
	{"armor_yaw", "Plate yaw", "deg", func(v TraceValues) float64 { return v.ArmorYawDeg }},
	{"v_spin", "Spin rate", "deg/s", func(v TraceValues) float64 { return v.SpinDps }},
}

// TracePlotter accumulates estimate samples for one enemy and renders them
// after a run, as PNG files (gonum/plot) or an HTML page (go-echarts).
type TracePlotter struct {
	mu      sync.Mutex
	name    string
	samples []TraceSample
}

// NewTracePlotter creates an empty plotter labelled name.
func NewTracePlotter(name string) *TracePlotter {
	return &TracePlotter{name: name}
}

// Add appends a sample.
func (tp *TracePlotter) Add(s TraceSample) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if s.Truth != nil {
		truth := *s.Truth
		s.Truth = &truth
	}
	tp.samples = append(tp.samples, s)
}

// Len returns the number of samples recorded.
func (tp *TracePlotter) Len() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.samples)
}

func (tp *TracePlotter) snapshot() []TraceSample {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	out := make([]TraceSample, len(tp.samples))
	copy(out, tp.samples)
	return out
}

// SavePNG writes one PNG per plotted quantity into dir and returns the
// paths written. Nothing is written for an empty trace.
func (tp *TracePlotter) SavePNG(dir string) ([]string, error) {
	samples := tp.snapshot()
	if len(samples) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}

	var written []string
	for _, q := range traceQuantities {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s - %s", tp.name, q.title)
		p.X.Label.Text = "Cycle"
		p.Y.Label.Text = fmt.Sprintf("%s (%s)", q.title, q.unit)

		est := make(plotter.XYs, 0, len(samples))
		truth := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			est = append(est, plotter.XY{X: float64(s.Cycle), Y: q.get(s.Estimate)})
			if s.Truth != nil {
				truth = append(truth, plotter.XY{X: float64(s.Cycle), Y: q.get(*s.Truth)})
			}
		}

		estLine, err := plotter.NewLine(est)
		if err != nil {
			return written, err
		}
		estLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		estLine.Width = vg.Points(1)
		p.Add(estLine)
		p.Legend.Add("estimate", estLine)

		if len(truth) > 0 {
			truthLine, err := plotter.NewLine(truth)
			if err != nil {
				return written, err
			}
			truthLine.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
			truthLine.Width = vg.Points(1)
			truthLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			p.Add(truthLine)
			p.Legend.Add("truth", truthLine)
		}

		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10

		file := filepath.Join(dir, fmt.Sprintf("%s_%s.png", tp.name, q.key))
		if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
			return written, fmt.Errorf("save %s plot: %w", q.key, err)
		}
		written = append(written, file)
	}
	return written, nil
}

// RenderHTML writes an interactive page with one line chart per quantity.
func (tp *TracePlotter) RenderHTML(w io.Writer) error {
	samples := tp.snapshot()

	xs := make([]int, len(samples))
	for i, s := range samples {
		xs[i] = s.Cycle
	}

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s trace", tp.name)
	for _, q := range traceQuantities {
		est := make([]opts.LineData, len(samples))
		truth := make([]opts.LineData, len(samples))
		hasTruth := false
		for i, s := range samples {
			est[i] = opts.LineData{Value: q.get(s.Estimate), Name: s.Phase}
			if s.Truth != nil {
				truth[i] = opts.LineData{Value: q.get(*s.Truth)}
				hasTruth = true
			} else {
				truth[i] = opts.LineData{Value: "-"}
			}
		}

		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
			charts.WithTitleOpts(opts.Title{Title: q.title, Subtitle: fmt.Sprintf("%s samples=%d", tp.name, len(samples))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithXAxisOpts(opts.XAxis{Name: "cycle"}),
			charts.WithYAxisOpts(opts.YAxis{Name: q.unit, Scale: opts.Bool(true)}),
		)
		line.SetXAxis(xs).AddSeries("estimate", est)
		if hasTruth {
			line.AddSeries("truth", truth)
		}
		page.AddCharts(line)
	}
	return page.Render(w)
}
