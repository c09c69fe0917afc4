package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	VariantMarker = "marker"
	VariantFinder = "finder"

	GapPolicyFill   = "fill"
	GapPolicyReport = "report"
)

type AppConfig struct {
	Input          string
	Output         string
	Validity       string
	Endpoint       string
	FramesDir      string
	FrameLogDir    string
	PlotPath       string
	LayoutPath     string
	Variant        string
	Workers        int
	FPS            float64
	DurationMs     int
	Repeat         int
	GapPolicy      string
	MinConfidence  float64
	MaxFrames      int
	Timeout        time.Duration
	MonitorPort    int
	IngestLogEvery int
	Simulate       bool
	LogLevel       string
	LogJSON        bool
}

// LayoutConfig is the on-disk frame geometry. Zero values take defaults.
type LayoutConfig struct {
	Variant        string        `toml:"variant"`
	ModulePx       int           `toml:"module_px"`
	BorderModules  int           `toml:"border_modules"`
	GridModules    int           `toml:"grid_modules"`
	WidthModules   int           `toml:"width_modules"`
	HeightModules  int           `toml:"height_modules"`
	TargetCapacity int           `toml:"target_capacity"`
	Alignment      *bool         `toml:"alignment"`
	Fields         []FieldConfig `toml:"fields"`
}

// FieldConfig is a rectangular data field in canvas module coordinates
// (border included).
type FieldConfig struct {
	X      int `toml:"x"`
	Y      int `toml:"y"`
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

func DefaultLayoutConfig(variant string) LayoutConfig {
	cfg := LayoutConfig{Variant: variant}
	applyLayoutDefaults(&cfg)
	return cfg
}

// LoadLayoutConfig reads a TOML layout file. An empty path yields the
// defaults for variant; a variant set in the file wins over the argument.
func LoadLayoutConfig(path string, variant string) (LayoutConfig, error) {
	cfg := LayoutConfig{Variant: variant}
	if strings.TrimSpace(path) != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return LayoutConfig{}, fmt.Errorf("layout config parse failed (%s): %w", path, err)
		}
	}
	applyLayoutDefaults(&cfg)
	if err := ValidateLayoutConfig(cfg); err != nil {
		return LayoutConfig{}, err
	}
	return cfg, nil
}

func applyLayoutDefaults(cfg *LayoutConfig) {
	cfg.Variant = strings.ToLower(strings.TrimSpace(cfg.Variant))
	if cfg.Variant == "" {
		cfg.Variant = VariantMarker
	}
	if cfg.ModulePx == 0 {
		cfg.ModulePx = 8
	}
	if cfg.BorderModules == 0 {
		cfg.BorderModules = 4
	}
	switch cfg.Variant {
	case VariantMarker:
		if cfg.GridModules == 0 {
			cfg.GridModules = 48
		}
	case VariantFinder:
		if cfg.WidthModules == 0 && cfg.HeightModules == 0 && cfg.TargetCapacity == 0 {
			cfg.TargetCapacity = 256
		}
		if cfg.Alignment == nil {
			on := true
			cfg.Alignment = &on
		}
	}
}

func ValidateLayoutConfig(cfg LayoutConfig) error {
	switch cfg.Variant {
	case VariantMarker, VariantFinder:
	default:
		return fmt.Errorf("layout config: unknown variant %q", cfg.Variant)
	}
	if cfg.ModulePx < 3 {
		return fmt.Errorf("layout config: module_px must be at least 3, got %d", cfg.ModulePx)
	}
	if cfg.BorderModules < 1 {
		return fmt.Errorf("layout config: border_modules must be at least 1, got %d", cfg.BorderModules)
	}
	if cfg.Variant == VariantFinder && len(cfg.Fields) > 0 {
		return fmt.Errorf("layout config: fields are only supported by the marker variant")
	}
	for i, f := range cfg.Fields {
		if f.Width <= 0 || f.Height <= 0 {
			return fmt.Errorf("layout config: field[%d] has empty extent", i)
		}
	}
	return nil
}

func ValidateAppConfig(cfg AppConfig) error {
	switch cfg.GapPolicy {
	case "", GapPolicyFill, GapPolicyReport:
	default:
		return fmt.Errorf("unknown gap policy %q", cfg.GapPolicy)
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be within [0,1], got %v", cfg.MinConfidence)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}

// ValidateEncodeConfig checks the encode CLI's required inputs.
func ValidateEncodeConfig(cfg AppConfig) error {
	if strings.TrimSpace(cfg.Input) == "" {
		return fmt.Errorf("-input is required")
	}
	if cfg.Output == "" && cfg.FramesDir == "" {
		return fmt.Errorf("one of -output or -frames-dir is required")
	}
	if cfg.FPS < 0 || cfg.DurationMs < 0 {
		return fmt.Errorf("fps and duration must not be negative")
	}
	if cfg.Repeat < 0 {
		return fmt.Errorf("repeat must not be negative")
	}
	return ValidateAppConfig(cfg)
}

// ValidateDecodeConfig checks the decode CLI: exactly one source and both
// output paths.
func ValidateDecodeConfig(cfg AppConfig) error {
	hasInput := strings.TrimSpace(cfg.Input) != ""
	hasEndpoint := strings.TrimSpace(cfg.Endpoint) != ""
	switch {
	case hasInput == hasEndpoint:
		return fmt.Errorf("exactly one of -input or -endpoint is required")
	case cfg.Simulate && !hasInput:
		return fmt.Errorf("-simulate needs -input")
	case cfg.Output == "" || cfg.Validity == "":
		return fmt.Errorf("-output and -validity are required")
	case cfg.Output == cfg.Validity:
		return fmt.Errorf("-output and -validity must differ")
	case cfg.MaxFrames < 0 || cfg.Timeout < 0:
		return fmt.Errorf("max-frames and timeout must not be negative")
	}
	return ValidateAppConfig(cfg)
}

// FileExists is used by the CLIs to fail fast before any work starts.
func FileExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 && !info.IsDir() {
		return fmt.Errorf("%s is empty", path)
	}
	return nil
}
