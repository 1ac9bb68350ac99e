package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/trace.report/internal/signal"
)

func TestDefaultDisplayConfig(t *testing.T) {
	cfg := DefaultDisplayConfig()

	if cfg.SamplingRate == nil || *cfg.SamplingRate != 64 {
		t.Errorf("Expected SamplingRate 64, got %v", cfg.SamplingRate)
	}
	if cfg.FrameInterval == nil || *cfg.FrameInterval != "16ms" {
		t.Errorf("Expected FrameInterval '16ms', got %v", cfg.FrameInterval)
	}
	if got := cfg.GetSamplesPerMillisecond(); got != 0.25 {
		t.Errorf("GetSamplesPerMillisecond() = %f, want 0.25", got)
	}
	if got := cfg.Timing().SegmentLength(); got != 384 {
		t.Errorf("SegmentLength() = %d, want 384", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadDisplayConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "display.json")

	testJSON := `{
  "sampling_rate": 128,
  "segment_duration": 4,
  "graph_width": 900,
  "frame_interval": "33ms",
  "speed_presets": [0, 1, 2],
  "lead_names": ["C3", "C4"]
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadDisplayConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.Timing(); got != (signal.Timing{SamplingRate: 128, SegmentDuration: 4}) {
		t.Errorf("Timing() = %+v", got)
	}
	if got := cfg.GetSamplesPerMillisecond(); got != 0.5 {
		t.Errorf("samples per ms should follow the sampling rate, got %f", got)
	}
	if got := cfg.GetFrameInterval(); got != 33*time.Millisecond {
		t.Errorf("GetFrameInterval() = %v, want 33ms", got)
	}
	if diff := cmp.Diff([]float64{0, 1, 2}, cfg.GetSpeedPresets()); diff != "" {
		t.Errorf("speed presets mismatch (-want +got):\n%s", diff)
	}
	if got := cfg.LeadName(1); got != "C4" {
		t.Errorf("LeadName(1) = %q, want C4", got)
	}
	if got := cfg.LeadName(4); got != "lead_4" {
		t.Errorf("LeadName(4) = %q, want lead_4", got)
	}

	g := cfg.Geometry()
	if g.Width != 900 || g.Height != 740 || g.SamplingRate != 128 {
		t.Errorf("Geometry() = %+v", g)
	}
}

func TestLoadDisplayConfigPartial(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")
	if err := os.WriteFile(configPath, []byte(`{"brush_height": 90}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadDisplayConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}
	if cfg.GetBrushHeight() != 90 {
		t.Errorf("Expected overridden BrushHeight 90, got %f", cfg.GetBrushHeight())
	}
	if cfg.GetGraphWidth() != 1250 {
		t.Errorf("Expected default GraphWidth 1250, got %f", cfg.GetGraphWidth())
	}
	if cfg.GetBrushInitDuration() != 5 {
		t.Errorf("Expected default BrushInitDuration 5, got %f", cfg.GetBrushInitDuration())
	}
	if cfg.GetFrameInterval() != 16*time.Millisecond {
		t.Errorf("Expected default FrameInterval 16ms, got %v", cfg.GetFrameInterval())
	}
	if diff := cmp.Diff(defaultLeadNames(), cfg.GetLeadNames()); diff != "" {
		t.Errorf("lead names mismatch (-want +got):\n%s", diff)
	}
	if cfg.GetNormalClass() != signal.NoNormalClass {
		t.Errorf("Expected default NormalClass -1, got %d", cfg.GetNormalClass())
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadDisplayConfig("../../config/display.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if diff := cmp.Diff(DefaultDisplayConfig(), cfg); diff != "" {
		t.Errorf("defaults file drifted from DefaultDisplayConfig (-want +got):\n%s", diff)
	}
	if MustLoadDefaultConfig().GetSamplingRate() != 64 {
		t.Error("MustLoadDefaultConfig returned unexpected sampling rate")
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadDisplayConfig("../../config/display.example.json")
	if err != nil {
		t.Fatalf("Failed to load example: %v", err)
	}
	if cfg.GetSamplingRate() != 256 {
		t.Errorf("Expected 256, got %d", cfg.GetSamplingRate())
	}
	if cfg.GetSamplesPerMillisecond() != 1 {
		t.Errorf("Expected 1, got %f", cfg.GetSamplesPerMillisecond())
	}
}

func TestLoadDisplayConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	invalid := filepath.Join(tmpDir, "invalid.json")
	if err := os.WriteFile(invalid, []byte(`{"graph_width": "wide"`), 0644); err != nil {
		t.Fatal(err)
	}
	large := filepath.Join(tmpDir, "large.json")
	if err := os.WriteFile(large, make([]byte, 2*1024*1024), 0644); err != nil {
		t.Fatal(err)
	}
	negative := filepath.Join(tmpDir, "negative.json")
	if err := os.WriteFile(negative, []byte(`{"sampling_rate": -1}`), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing", "/nonexistent/path/to/config.json"},
		{"non json extension", "/some/path/config.yaml"},
		{"traversal without extension", "../../etc/passwd"},
		{"invalid json", invalid},
		{"too large", large},
		{"fails validation", negative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadDisplayConfig(tt.path); err == nil {
				t.Errorf("expected error for %s", tt.path)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DisplayConfig
		wantErr bool
	}{
		{"empty", DisplayConfig{}, false},
		{"zero segment duration", DisplayConfig{SegmentDuration: ptrFloat64(0)}, true},
		{"negative width", DisplayConfig{GraphWidth: ptrFloat64(-5)}, true},
		{"bad interval", DisplayConfig{FrameInterval: ptrString("soon")}, true},
		{"zero interval", DisplayConfig{FrameInterval: ptrString("0s")}, true},
		{"negative speed", DisplayConfig{SpeedPresets: []float64{1, -1}}, true},
		{"normal class below -1", DisplayConfig{NormalClass: ptrInt(-2)}, true},
		{"normal class beyond labels", DisplayConfig{NormalClass: ptrInt(2), ClassLabels: []string{"a", "b"}}, true},
		{"normal class within labels", DisplayConfig{NormalClass: ptrInt(1), ClassLabels: []string{"a", "b"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &DisplayConfig{ClassLabels: []string{"normal", "seizure"}, NormalClass: ptrInt(0)}
	preds := signal.Predictions{
		Mode:        signal.ThresholdMatrix,
		Thresholds:  []float64{0.5, 0.5},
		NormalClass: signal.NoNormalClass,
	}
	cfg.ApplyDefaults(&preds)
	if diff := cmp.Diff([]string{"normal", "seizure"}, preds.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if preds.NormalClass != 0 {
		t.Errorf("NormalClass = %d, want 0", preds.NormalClass)
	}

	own := signal.Predictions{Mode: signal.ThresholdMatrix, Thresholds: []float64{0.5}, Labels: []string{"x"}, NormalClass: signal.NoNormalClass}
	cfg.ApplyDefaults(&own)
	if own.Labels[0] != "x" {
		t.Errorf("recording labels should win, got %v", own.Labels)
	}
}
