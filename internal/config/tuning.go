package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

const (
	// StateDim is the length of the covariance and process-noise diagonals.
	StateDim = 11
	// MeasurementDim is the length of the measurement-noise diagonal.
	MeasurementDim = 4
)

// Built-in fallbacks used by the Get* accessors. State order is theta,
// distance, v_tang, v_norm, v_spin, a_tang, a_norm, a_spin, armor_yaw,
// armor_r, armor_height. Measurement order is bearing, distance, plate
// yaw, plate height.
var (
	defaultInitialCovariance = []float64{1, 100, 1e4, 1e4, 1e4, 1e4, 1e4, 1e4, 1, 400, 100}
	defaultProcessNoise      = []float64{0.01, 1, 100, 100, 10, 1e4, 1e4, 1e3, 0.01, 1, 1}
	defaultMeasurementNoise  = []float64{0.01, 4, 0.25, 4}
	defaultSwitchBand        = []float64{30, 20, 10}
	defaultSwitchSpeedTiers  = []float64{100, 200}
)

// TuningConfig represents the root configuration for tracker tuning.
// Fields omitted from the JSON fall back to built-in defaults through the
// Get* accessors, so partial configs are safe.
type TuningConfig struct {
	// Lifecycle params
	LostTimeout    *string  `json:"lost_timeout,omitempty"` // duration string like "500ms"
	CycleDtSeconds *float64 `json:"cycle_dt_seconds,omitempty"`

	// Filter params (diagonals)
	InitialCovarianceDiag []float64 `json:"initial_covariance_diag,omitempty"`
	ProcessNoiseDiag      []float64 `json:"process_noise_diag,omitempty"`
	MeasurementNoiseDiag  []float64 `json:"measurement_noise_diag,omitempty"`
	WidenedNoiseScale     *float64  `json:"widened_noise_scale,omitempty"`

	// Plate switch params
	SwitchBandDeg       []float64 `json:"switch_band_deg,omitempty"`
	SwitchSpeedTiersDps []float64 `json:"switch_speed_tiers_dps,omitempty"`

	// Radius limits
	MinArmorRadiusMM *float64 `json:"min_armor_radius_mm,omitempty"`
	MaxArmorRadiusMM *float64 `json:"max_armor_radius_mm,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		LostTimeout:           ptrString("500ms"),
		CycleDtSeconds:        ptrFloat64(0.01),
		InitialCovarianceDiag: clone(defaultInitialCovariance),
		ProcessNoiseDiag:      clone(defaultProcessNoise),
		MeasurementNoiseDiag:  clone(defaultMeasurementNoise),
		WidenedNoiseScale:     ptrFloat64(10),
		SwitchBandDeg:         clone(defaultSwitchBand),
		SwitchSpeedTiersDps:   clone(defaultSwitchSpeedTiers),
		MinArmorRadiusMM:      ptrFloat64(120),
		MaxArmorRadiusMM:      ptrFloat64(400),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // nested packages
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.LostTimeout != nil && *c.LostTimeout != "" {
		d, err := time.ParseDuration(*c.LostTimeout)
		if err != nil {
			return fmt.Errorf("invalid lost_timeout '%s': %w", *c.LostTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("lost_timeout must be positive, got %s", d)
		}
	}

	if c.CycleDtSeconds != nil && !(*c.CycleDtSeconds > 0) {
		return fmt.Errorf("cycle_dt_seconds must be positive, got %f", *c.CycleDtSeconds)
	}

	if err := validateDiag("initial_covariance_diag", c.InitialCovarianceDiag, StateDim, false); err != nil {
		return err
	}
	if err := validateDiag("process_noise_diag", c.ProcessNoiseDiag, StateDim, true); err != nil {
		return err
	}
	if err := validateDiag("measurement_noise_diag", c.MeasurementNoiseDiag, MeasurementDim, false); err != nil {
		return err
	}

	if c.WidenedNoiseScale != nil && *c.WidenedNoiseScale < 1 {
		return fmt.Errorf("widened_noise_scale must be at least 1, got %f", *c.WidenedNoiseScale)
	}

	if c.SwitchBandDeg != nil {
		if len(c.SwitchBandDeg) != 3 {
			return fmt.Errorf("switch_band_deg must have 3 entries, got %d", len(c.SwitchBandDeg))
		}
		for i, v := range c.SwitchBandDeg {
			if !(v > 0) || v > 180 {
				return fmt.Errorf("switch_band_deg[%d] must be in (0, 180], got %f", i, v)
			}
		}
	}
	if c.SwitchSpeedTiersDps != nil {
		if len(c.SwitchSpeedTiersDps) != 2 {
			return fmt.Errorf("switch_speed_tiers_dps must have 2 entries, got %d", len(c.SwitchSpeedTiersDps))
		}
		if c.SwitchSpeedTiersDps[0] < 0 || c.SwitchSpeedTiersDps[1] <= c.SwitchSpeedTiersDps[0] {
			return fmt.Errorf("switch_speed_tiers_dps must be non-negative and increasing, got %v", c.SwitchSpeedTiersDps)
		}
	}

	if c.GetMinArmorRadiusMM() <= 0 || c.GetMaxArmorRadiusMM() <= c.GetMinArmorRadiusMM() {
		return fmt.Errorf("armor radius limits must satisfy 0 < min < max, got [%f, %f]",
			c.GetMinArmorRadiusMM(), c.GetMaxArmorRadiusMM())
	}

	return nil
}

func validateDiag(name string, v []float64, n int, allowZero bool) error {
	if v == nil {
		return nil
	}
	if len(v) != n {
		return fmt.Errorf("%s must have %d entries, got %d", name, n, len(v))
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 || (!allowZero && x == 0) {
			return fmt.Errorf("%s[%d] out of range: %v", name, i, x)
		}
	}
	return nil
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// GetLostTimeout parses and returns the LostTimeout as a time.Duration.
func (c *TuningConfig) GetLostTimeout() time.Duration {
	if c.LostTimeout == nil || *c.LostTimeout == "" {
		return 500 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.LostTimeout)
	if err != nil {
		return 500 * time.Millisecond // default on parse error
	}
	return d
}

// GetCycleDtSeconds returns the cycle_dt_seconds value or the default.
func (c *TuningConfig) GetCycleDtSeconds() float64 {
	if c.CycleDtSeconds == nil {
		return 0.01
	}
	return *c.CycleDtSeconds
}

// GetInitialCovarianceDiag returns a copy of initial_covariance_diag or the default.
func (c *TuningConfig) GetInitialCovarianceDiag() []float64 {
	if len(c.InitialCovarianceDiag) != StateDim {
		return clone(defaultInitialCovariance)
	}
	return clone(c.InitialCovarianceDiag)
}

// GetProcessNoiseDiag returns a copy of process_noise_diag or the default.
func (c *TuningConfig) GetProcessNoiseDiag() []float64 {
	if len(c.ProcessNoiseDiag) != StateDim {
		return clone(defaultProcessNoise)
	}
	return clone(c.ProcessNoiseDiag)
}

// GetMeasurementNoiseDiag returns a copy of measurement_noise_diag or the default.
func (c *TuningConfig) GetMeasurementNoiseDiag() []float64 {
	if len(c.MeasurementNoiseDiag) != MeasurementDim {
		return clone(defaultMeasurementNoise)
	}
	return clone(c.MeasurementNoiseDiag)
}

// GetWidenedNoiseScale returns the widened_noise_scale value or the default.
func (c *TuningConfig) GetWidenedNoiseScale() float64 {
	if c.WidenedNoiseScale == nil {
		return 10
	}
	return *c.WidenedNoiseScale
}

// GetSwitchBandDeg returns the low/medium/high-speed switch half-widths.
func (c *TuningConfig) GetSwitchBandDeg() [3]float64 {
	v := defaultSwitchBand
	if len(c.SwitchBandDeg) == 3 {
		v = c.SwitchBandDeg
	}
	return [3]float64{v[0], v[1], v[2]}
}

// GetSwitchSpeedTiersDps returns the spin-rate boundaries between bands.
func (c *TuningConfig) GetSwitchSpeedTiersDps() [2]float64 {
	v := defaultSwitchSpeedTiers
	if len(c.SwitchSpeedTiersDps) == 2 {
		v = c.SwitchSpeedTiersDps
	}
	return [2]float64{v[0], v[1]}
}

// GetMinArmorRadiusMM returns the min_armor_radius_mm value or the default.
func (c *TuningConfig) GetMinArmorRadiusMM() float64 {
	if c.MinArmorRadiusMM == nil {
		return 120
	}
	return *c.MinArmorRadiusMM
}

// GetMaxArmorRadiusMM returns the max_armor_radius_mm value or the default.
func (c *TuningConfig) GetMaxArmorRadiusMM() float64 {
	if c.MaxArmorRadiusMM == nil {
		return 400
	}
	return *c.MaxArmorRadiusMM
}
