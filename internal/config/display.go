package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/trace.report/internal/focus"
	"github.com/banshee-data/trace.report/internal/playback"
	"github.com/banshee-data/trace.report/internal/signal"
)

// DefaultConfigPath is the path to the canonical display defaults file.
const DefaultConfigPath = "config/display.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// DisplayConfig holds acquisition timing and chart settings. Fields left out
// of the JSON fall back to the defaults returned by the Get* methods, so
// partial configs are safe.
type DisplayConfig struct {
	// Acquisition
	SamplingRate    *int     `json:"sampling_rate,omitempty"`
	SegmentDuration *float64 `json:"segment_duration,omitempty"`

	// Chart geometry, in pixels
	GraphWidth        *float64 `json:"graph_width,omitempty"`
	GraphHeight       *float64 `json:"graph_height,omitempty"`
	BrushHeight       *float64 `json:"brush_height,omitempty"`
	BrushInitDuration *float64 `json:"brush_init_duration,omitempty"` // seconds

	// Playback
	SamplesPerMillisecond *float64  `json:"samples_per_millisecond,omitempty"`
	FrameInterval         *string   `json:"frame_interval,omitempty"` // duration string like "16ms"
	SpeedPresets          []float64 `json:"speed_presets,omitempty"`

	// Labels
	LeadNames   []string `json:"lead_names,omitempty"`
	ClassLabels []string `json:"class_labels,omitempty"`
	NormalClass *int     `json:"normal_class,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultDisplayConfig returns a config with every field set to its default.
func DefaultDisplayConfig() *DisplayConfig {
	return &DisplayConfig{
		SamplingRate:          ptrInt(signal.DefaultSamplingRate),
		SegmentDuration:       ptrFloat64(signal.DefaultSegmentDuration),
		GraphWidth:            ptrFloat64(1250),
		GraphHeight:           ptrFloat64(740),
		BrushHeight:           ptrFloat64(75),
		BrushInitDuration:     ptrFloat64(focus.DefaultInitialDuration),
		SamplesPerMillisecond: ptrFloat64(float64(signal.DefaultSamplingRate) / 256),
		FrameInterval:         ptrString("16ms"),
		SpeedPresets:          defaultSpeedPresets(),
		LeadNames:             defaultLeadNames(),
		NormalClass:           ptrInt(signal.NoNormalClass),
	}
}

func defaultSpeedPresets() []float64 { return []float64{0, 0.5, 1, 5, 10} }

func defaultLeadNames() []string {
	return []string{"FP1-F7", "FP2-F8", "P7-O1", "P8-O2", "FZ-CZ"}
}

// LoadDisplayConfig loads a DisplayConfig from a JSON file with a .json
// extension no larger than 1MB.
func LoadDisplayConfig(path string) (*DisplayConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &DisplayConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upwards from the
// working directory. It panics when the file is missing and is meant for
// test setup.
func MustLoadDefaultConfig() *DisplayConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadDisplayConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set.
func (c *DisplayConfig) Validate() error {
	if c.SamplingRate != nil && *c.SamplingRate <= 0 {
		return fmt.Errorf("sampling_rate must be positive, got %d", *c.SamplingRate)
	}
	if c.SegmentDuration != nil && *c.SegmentDuration <= 0 {
		return fmt.Errorf("segment_duration must be positive, got %f", *c.SegmentDuration)
	}
	for name, v := range map[string]*float64{
		"graph_width":             c.GraphWidth,
		"graph_height":            c.GraphHeight,
		"brush_height":            c.BrushHeight,
		"brush_init_duration":     c.BrushInitDuration,
		"samples_per_millisecond": c.SamplesPerMillisecond,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}
	if c.FrameInterval != nil && *c.FrameInterval != "" {
		d, err := time.ParseDuration(*c.FrameInterval)
		if err != nil {
			return fmt.Errorf("invalid frame_interval '%s': %w", *c.FrameInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("frame_interval must be positive, got %s", d)
		}
	}
	for _, s := range c.SpeedPresets {
		if s < 0 {
			return fmt.Errorf("speed_presets must be non-negative, got %f", s)
		}
	}
	if c.NormalClass != nil && *c.NormalClass < signal.NoNormalClass {
		return fmt.Errorf("normal_class must be -1 or a class index, got %d", *c.NormalClass)
	}
	if c.NormalClass != nil && len(c.ClassLabels) > 0 && *c.NormalClass >= len(c.ClassLabels) {
		return fmt.Errorf("normal_class %d out of range for %d class labels", *c.NormalClass, len(c.ClassLabels))
	}
	return nil
}

// GetSamplingRate returns the sampling rate in Hz.
func (c *DisplayConfig) GetSamplingRate() int {
	if c.SamplingRate == nil {
		return signal.DefaultSamplingRate
	}
	return *c.SamplingRate
}

// GetSegmentDuration returns the segment length in seconds.
func (c *DisplayConfig) GetSegmentDuration() float64 {
	if c.SegmentDuration == nil {
		return signal.DefaultSegmentDuration
	}
	return *c.SegmentDuration
}

func (c *DisplayConfig) GetGraphWidth() float64 {
	if c.GraphWidth == nil {
		return 1250
	}
	return *c.GraphWidth
}

func (c *DisplayConfig) GetGraphHeight() float64 {
	if c.GraphHeight == nil {
		return 740
	}
	return *c.GraphHeight
}

func (c *DisplayConfig) GetBrushHeight() float64 {
	if c.BrushHeight == nil {
		return 75
	}
	return *c.BrushHeight
}

func (c *DisplayConfig) GetBrushInitDuration() float64 {
	if c.BrushInitDuration == nil {
		return focus.DefaultInitialDuration
	}
	return *c.BrushInitDuration
}

// GetSamplesPerMillisecond returns the reveal rate at speed 1. It defaults to
// a quarter of the sampling rate per second.
func (c *DisplayConfig) GetSamplesPerMillisecond() float64 {
	if c.SamplesPerMillisecond == nil {
		return float64(c.GetSamplingRate()) / 256
	}
	return *c.SamplesPerMillisecond
}

// GetFrameInterval parses FrameInterval, falling back to 16ms.
func (c *DisplayConfig) GetFrameInterval() time.Duration {
	if c.FrameInterval == nil || *c.FrameInterval == "" {
		return 16 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.FrameInterval)
	if err != nil || d <= 0 {
		return 16 * time.Millisecond
	}
	return d
}

func (c *DisplayConfig) GetSpeedPresets() []float64 {
	if len(c.SpeedPresets) == 0 {
		return defaultSpeedPresets()
	}
	return c.SpeedPresets
}

func (c *DisplayConfig) GetLeadNames() []string {
	if len(c.LeadNames) == 0 {
		return defaultLeadNames()
	}
	return c.LeadNames
}

// LeadName returns the configured name of lead i, or "lead_<i>".
func (c *DisplayConfig) LeadName(i int) string {
	names := c.GetLeadNames()
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("lead_%d", i)
}

func (c *DisplayConfig) GetNormalClass() int {
	if c.NormalClass == nil {
		return signal.NoNormalClass
	}
	return *c.NormalClass
}

// Timing returns the acquisition timing.
func (c *DisplayConfig) Timing() signal.Timing {
	return signal.Timing{SamplingRate: c.GetSamplingRate(), SegmentDuration: c.GetSegmentDuration()}
}

// Geometry returns the focus chart geometry.
func (c *DisplayConfig) Geometry() focus.Geometry {
	return focus.Geometry{
		Width:        c.GetGraphWidth(),
		Height:       c.GetGraphHeight(),
		BrushHeight:  c.GetBrushHeight(),
		SamplingRate: c.GetSamplingRate(),
	}
}

// Playback returns the frame pacing settings.
func (c *DisplayConfig) Playback() playback.Config {
	return playback.Config{SamplesPerMillisecond: c.GetSamplesPerMillisecond()}
}

// ApplyDefaults fills recording-level labels the upload did not provide.
func (c *DisplayConfig) ApplyDefaults(preds *signal.Predictions) {
	if len(preds.Labels) == 0 && len(c.ClassLabels) > 0 && len(c.ClassLabels) == preds.ClassCount() {
		preds.Labels = append([]string(nil), c.ClassLabels...)
	}
	if preds.NormalClass == signal.NoNormalClass && c.NormalClass != nil {
		if n := *c.NormalClass; n < preds.ClassCount() {
			preds.NormalClass = n
		}
	}
}
