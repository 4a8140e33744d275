package tracking

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/autoaim/internal/config"
	"github.com/banshee-data/autoaim/internal/enemy"
	"github.com/banshee-data/autoaim/internal/eskf"
	"gonum.org/v1/gonum/mat"
)

// TrackerConfig holds the parameters of one tracker.
type TrackerConfig struct {
	LostTimeout time.Duration // how long Lost persists before Sleep
	CycleDt     float64       // nominal cycle, seconds; the switch horizon and the step when timestamps stall

	InitialCovarianceDiag []float64 // P0, one entry per state component
	ProcessNoiseDiag      []float64 // Q, continuous, scaled by dt
	MeasurementNoiseDiag  []float64 // R, one entry per measurement component
	WidenedNoiseScale     float64   // Q multiplier in Recovery and the first Track pass

	SwitchBands enemy.SwitchBands

	MinArmorRadiusMM float64
	MaxArmorRadiusMM float64
}

// DefaultTrackerConfig returns tracker configuration loaded from the
// canonical tuning defaults file (config/tuning.defaults.json).
// Panics if the file cannot be found; intended for tests and binaries
// that have already validated config availability.
func DefaultTrackerConfig() TrackerConfig {
	cfg := config.MustLoadDefaultConfig()
	return TrackerConfigFromTuning(cfg)
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		LostTimeout:           cfg.GetLostTimeout(),
		CycleDt:               cfg.GetCycleDtSeconds(),
		InitialCovarianceDiag: cfg.GetInitialCovarianceDiag(),
		ProcessNoiseDiag:      cfg.GetProcessNoiseDiag(),
		MeasurementNoiseDiag:  cfg.GetMeasurementNoiseDiag(),
		WidenedNoiseScale:     cfg.GetWidenedNoiseScale(),
		SwitchBands: enemy.SwitchBands{
			HalfWidthDeg:  cfg.GetSwitchBandDeg(),
			SpeedTiersDps: cfg.GetSwitchSpeedTiersDps(),
		},
		MinArmorRadiusMM: cfg.GetMinArmorRadiusMM(),
		MaxArmorRadiusMM: cfg.GetMaxArmorRadiusMM(),
	}
}

func (c TrackerConfig) validate() error {
	if len(c.InitialCovarianceDiag) != enemy.StateDim ||
		len(c.ProcessNoiseDiag) != enemy.StateDim ||
		len(c.MeasurementNoiseDiag) != enemy.MeasurementDim {
		return fmt.Errorf("noise diagonals must have %d/%d/%d entries, got %d/%d/%d",
			enemy.StateDim, enemy.StateDim, enemy.MeasurementDim,
			len(c.InitialCovarianceDiag), len(c.ProcessNoiseDiag), len(c.MeasurementNoiseDiag))
	}
	if !(c.CycleDt > 0) || math.IsInf(c.CycleDt, 0) {
		return fmt.Errorf("%w: cycle dt %v", eskf.ErrInvalidTimeStep, c.CycleDt)
	}
	if c.LostTimeout <= 0 {
		return fmt.Errorf("lost timeout must be positive, got %s", c.LostTimeout)
	}
	if c.WidenedNoiseScale < 1 {
		return fmt.Errorf("widened noise scale must be at least 1, got %f", c.WidenedNoiseScale)
	}
	if c.MinArmorRadiusMM <= 0 || c.MaxArmorRadiusMM <= c.MinArmorRadiusMM {
		return fmt.Errorf("armor radius limits must satisfy 0 < min < max, got [%f, %f]",
			c.MinArmorRadiusMM, c.MaxArmorRadiusMM)
	}
	return nil
}

// noise holds the matrices derived from a TrackerConfig.
type noise struct {
	p0, q, qWide, r *mat.SymDense
}

func diag(v []float64, scale float64) *mat.SymDense {
	m := mat.NewSymDense(len(v), nil)
	for i, x := range v {
		m.SetSym(i, i, x*scale)
	}
	return m
}

func (c TrackerConfig) noise() noise {
	return noise{
		p0:    diag(c.InitialCovarianceDiag, 1),
		q:     diag(c.ProcessNoiseDiag, 1),
		qWide: diag(c.ProcessNoiseDiag, c.WidenedNoiseScale),
		r:     diag(c.MeasurementNoiseDiag, 1),
	}
}
