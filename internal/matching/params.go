package matching

import (
	"github.com/pkg/errors"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
)

// Tolerance and divisor bounds.
const (
	MinTolerance  = 0.001
	MaxTolerance  = 0.1
	MinStarcutN   = 2
	MaxStarcutN   = 12
	InsideMarginU = 0.02
)

// Params controls which template variants are built and how strictly bosses match.
type Params struct {
	StarcutMin         int     `json:"starcutMin"`
	StarcutMax         int     `json:"starcutMax"`
	IncludeStarcut     bool    `json:"includeStarcut"`
	IncludeInner       bool    `json:"includeInner"`
	IncludeOuter       bool    `json:"includeOuter"`
	AllowCrossTemplate bool    `json:"allowCrossTemplate"`
	Tolerance          float64 `json:"tolerance"`
}

// DefaultParams returns the default matching parameters.
func DefaultParams() Params {
	return Params{
		StarcutMin:         2,
		StarcutMax:         6,
		IncludeStarcut:     true,
		IncludeInner:       true,
		IncludeOuter:       true,
		AllowCrossTemplate: true,
		Tolerance:          0.01,
	}
}

// ParamsPatch carries caller overrides; nil fields keep their defaults.
type ParamsPatch struct {
	StarcutMin         *int     `json:"starcutMin,omitempty"`
	StarcutMax         *int     `json:"starcutMax,omitempty"`
	IncludeStarcut     *bool    `json:"includeStarcut,omitempty"`
	IncludeInner       *bool    `json:"includeInner,omitempty"`
	IncludeOuter       *bool    `json:"includeOuter,omitempty"`
	AllowCrossTemplate *bool    `json:"allowCrossTemplate,omitempty"`
	Tolerance          *float64 `json:"tolerance,omitempty"`
}

// Patch returns p as a patch with every field set.
func (p Params) Patch() *ParamsPatch {
	return &ParamsPatch{
		StarcutMin:         &p.StarcutMin,
		StarcutMax:         &p.StarcutMax,
		IncludeStarcut:     &p.IncludeStarcut,
		IncludeInner:       &p.IncludeInner,
		IncludeOuter:       &p.IncludeOuter,
		AllowCrossTemplate: &p.AllowCrossTemplate,
		Tolerance:          &p.Tolerance,
	}
}

// ResolveParams merges patch over the defaults and clamps the result.
func ResolveParams(patch *ParamsPatch) (Params, error) {
	p := DefaultParams()
	if patch != nil {
		if patch.StarcutMin != nil {
			p.StarcutMin = *patch.StarcutMin
		}
		if patch.StarcutMax != nil {
			p.StarcutMax = *patch.StarcutMax
		}
		if patch.IncludeStarcut != nil {
			p.IncludeStarcut = *patch.IncludeStarcut
		}
		if patch.IncludeInner != nil {
			p.IncludeInner = *patch.IncludeInner
		}
		if patch.IncludeOuter != nil {
			p.IncludeOuter = *patch.IncludeOuter
		}
		if patch.AllowCrossTemplate != nil {
			p.AllowCrossTemplate = *patch.AllowCrossTemplate
		}
		if patch.Tolerance != nil {
			p.Tolerance = *patch.Tolerance
		}
	}

	if p.StarcutMin < MinStarcutN {
		p.StarcutMin = MinStarcutN
	}
	if p.StarcutMin > MaxStarcutN {
		p.StarcutMin = MaxStarcutN
	}
	if p.StarcutMax > MaxStarcutN {
		p.StarcutMax = MaxStarcutN
	}
	if p.StarcutMax < p.StarcutMin {
		p.StarcutMax = p.StarcutMin
	}
	p.Tolerance = geometry.Clamp(p.Tolerance, MinTolerance, MaxTolerance)

	if !p.IncludeStarcut && !p.IncludeInner && !p.IncludeOuter {
		return Params{}, errors.WithStack(geomerr.ErrNoTemplateVariantsEnabled)
	}
	return p, nil
}

// SchemaField describes one tunable parameter for UI generation.
type SchemaField struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Step        *float64 `json:"step,omitempty"`
	Default     any      `json:"default"`
	Description string   `json:"description"`
}

func bound(v float64) *float64 { return &v }

// ParameterSchema lists the matching parameters with their bounds and defaults.
func ParameterSchema() []SchemaField {
	d := DefaultParams()
	return []SchemaField{
		{Key: "starcutMin", Label: "Starcut Min n", Type: "integer", Min: bound(MinStarcutN), Max: bound(MaxStarcutN), Step: bound(1), Default: d.StarcutMin, Description: "Lower bound for standardcut grid divisors."},
		{Key: "starcutMax", Label: "Starcut Max n", Type: "integer", Min: bound(MinStarcutN), Max: bound(MaxStarcutN), Step: bound(1), Default: d.StarcutMax, Description: "Upper bound for standardcut grid divisors."},
		{Key: "includeStarcut", Label: "Include standardcut grids", Type: "boolean", Default: d.IncludeStarcut, Description: "Enable standard n-by-n grid variants."},
		{Key: "includeInner", Label: "Include circlecut inner", Type: "boolean", Default: d.IncludeInner, Description: "Enable inner circlecut variant."},
		{Key: "includeOuter", Label: "Include circlecut outer", Type: "boolean", Default: d.IncludeOuter, Description: "Enable outer circlecut variant."},
		{Key: "allowCrossTemplate", Label: "Allow cross templates", Type: "boolean", Default: d.AllowCrossTemplate, Description: "Allow x-ratios and y-ratios from different variants."},
		{Key: "tolerance", Label: "Ratio tolerance", Type: "float", Min: bound(MinTolerance), Max: bound(MaxTolerance), Step: bound(0.001), Default: d.Tolerance, Description: "Maximum absolute ratio distance for a matched coordinate."},
	}
}
