package roicorrect

import (
	"strings"

	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
)

// Preset names.
const (
	PresetFast     = "fast"
	PresetBalanced = "balanced"
	PresetPrecise  = "precise"
)

// Options are the resolved search settings.
type Options struct {
	Preset               string  `json:"preset"`
	Tolerance            float64 `json:"tolerance"`
	XYStep               float64 `json:"xy_step"`
	XYRange              float64 `json:"xy_range"`
	NRange               [2]int  `json:"n_range"`
	IncludeScale         bool    `json:"include_scale"`
	ScaleStep            float64 `json:"scale_step"`
	ScaleRange           float64 `json:"scale_range"`
	IncludeRotation      bool    `json:"include_rotation"`
	RotationStep         float64 `json:"rotation_step"`
	RotationRange        float64 `json:"rotation_range"`
	RegularisationWeight float64 `json:"regularisation_weight"`
	ImprovementMargin    float64 `json:"improvement_margin"`
}

var presets = map[string]Options{
	PresetFast: {
		Preset:               PresetFast,
		Tolerance:            0.009,
		XYStep:               4,
		XYRange:              12,
		NRange:               [2]int{2, 6},
		IncludeScale:         true,
		ScaleStep:            0.01,
		ScaleRange:           0.01,
		IncludeRotation:      true,
		RotationStep:         0.5,
		RotationRange:        0.75,
		RegularisationWeight: 0.08,
		ImprovementMargin:    0.003,
	},
	PresetBalanced: {
		Preset:               PresetBalanced,
		Tolerance:            0.008,
		XYStep:               2,
		XYRange:              16,
		NRange:               [2]int{2, 6},
		IncludeScale:         true,
		ScaleStep:            0.005,
		ScaleRange:           0.015,
		IncludeRotation:      true,
		RotationStep:         0.25,
		RotationRange:        1,
		RegularisationWeight: 0.05,
		ImprovementMargin:    0.002,
	},
	PresetPrecise: {
		Preset:               PresetPrecise,
		Tolerance:            0.007,
		XYStep:               1,
		XYRange:              20,
		NRange:               [2]int{2, 6},
		IncludeScale:         true,
		ScaleStep:            0.0025,
		ScaleRange:           0.02,
		IncludeRotation:      true,
		RotationStep:         0.1,
		RotationRange:        1.5,
		RegularisationWeight: 0.03,
		ImprovementMargin:    0.001,
	},
}

// Preset returns the named preset, falling back to balanced for unknown names.
func Preset(name string) Options {
	if p, ok := presets[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return presets[PresetBalanced]
}

// Config is caller input: a preset name plus optional overrides.
type Config struct {
	Preset               string   `json:"preset,omitempty"`
	Tolerance            *float64 `json:"tolerance,omitempty"`
	XYStep               *float64 `json:"xy_step,omitempty"`
	XYRange              *float64 `json:"xy_range,omitempty"`
	NRange               []int    `json:"n_range,omitempty"`
	IncludeScale         *bool    `json:"include_scale,omitempty"`
	ScaleStep            *float64 `json:"scale_step,omitempty"`
	ScaleRange           *float64 `json:"scale_range,omitempty"`
	IncludeRotation      *bool    `json:"include_rotation,omitempty"`
	RotationStep         *float64 `json:"rotation_step,omitempty"`
	RotationRange        *float64 `json:"rotation_range,omitempty"`
	RegularisationWeight *float64 `json:"regularisation_weight,omitempty"`
	ImprovementMargin    *float64 `json:"improvement_margin,omitempty"`
}

// ResolveOptions applies cfg over its preset and clamps every field into range.
// A nil cfg resolves to the balanced preset.
func ResolveOptions(cfg *Config) Options {
	if cfg == nil {
		cfg = &Config{}
	}
	o := Preset(cfg.Preset)

	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setB := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setF(&o.Tolerance, cfg.Tolerance)
	setF(&o.XYStep, cfg.XYStep)
	setF(&o.XYRange, cfg.XYRange)
	setB(&o.IncludeScale, cfg.IncludeScale)
	setF(&o.ScaleStep, cfg.ScaleStep)
	setF(&o.ScaleRange, cfg.ScaleRange)
	setB(&o.IncludeRotation, cfg.IncludeRotation)
	setF(&o.RotationStep, cfg.RotationStep)
	setF(&o.RotationRange, cfg.RotationRange)
	setF(&o.RegularisationWeight, cfg.RegularisationWeight)
	setF(&o.ImprovementMargin, cfg.ImprovementMargin)

	if len(cfg.NRange) == 2 {
		n0 := clampInt(cfg.NRange[0], 2, 6)
		n1 := clampInt(cfg.NRange[1], n0, 6)
		o.NRange = [2]int{n0, n1}
	}

	o.Tolerance = geometry.Clamp(o.Tolerance, 0.001, 0.05)
	o.XYStep = geometry.Clamp(o.XYStep, 0.5, 8)
	o.XYRange = geometry.Clamp(o.XYRange, 4, 40)
	o.ScaleStep = geometry.Clamp(o.ScaleStep, 0.001, 0.05)
	o.ScaleRange = geometry.Clamp(o.ScaleRange, 0, 0.08)
	o.RotationStep = geometry.Clamp(o.RotationStep, 0.05, 2)
	o.RotationRange = geometry.Clamp(o.RotationRange, 0, 8)
	o.RegularisationWeight = geometry.Clamp(o.RegularisationWeight, 0, 1)
	o.ImprovementMargin = geometry.Clamp(o.ImprovementMargin, 0, 0.1)
	return o
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
