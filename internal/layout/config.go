package layout

import (
	"fmt"

	"vlink-go/internal/config"
)

// FromConfig builds the layout a LayoutConfig describes.
func FromConfig(cfg config.LayoutConfig) (*FrameLayout, error) {
	switch cfg.Variant {
	case config.VariantMarker, "":
		var fields []RectangularField
		for _, f := range cfg.Fields {
			fields = append(fields, RectangularField{
				Origin: Cell{X: f.X, Y: f.Y},
				Width:  f.Width,
				Height: f.Height,
			})
		}
		return NewMarkerGrid(cfg.GridModules, cfg.ModulePx, cfg.BorderModules, fields)
	case config.VariantFinder:
		alignment := cfg.Alignment == nil || *cfg.Alignment
		if cfg.WidthModules > 0 || cfg.HeightModules > 0 {
			return NewFinderGrid(cfg.WidthModules, cfg.HeightModules, cfg.ModulePx, cfg.BorderModules, alignment)
		}
		return FinderGridForCapacity(cfg.TargetCapacity, cfg.ModulePx, cfg.BorderModules, alignment)
	default:
		return nil, fmt.Errorf("%w: unknown variant %q", ErrInvalidLayout, cfg.Variant)
	}
}
