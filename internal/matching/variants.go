package matching

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/ironsheep/vault-geometry-mcp/internal/geomerr"
	"github.com/ironsheep/vault-geometry-mcp/internal/geometry"
	"github.com/ironsheep/vault-geometry-mcp/internal/templates"
)

// TemplateType is the family a variant belongs to.
type TemplateType string

// Template families.
const (
	Starcut   TemplateType = "starcut"
	Circlecut TemplateType = "circlecut"
	Cross     TemplateType = "cross"
)

// Variant is one concrete template the bosses are matched against.
type Variant struct {
	Label     string
	Type      TemplateType
	Variant   string // "standard", "inner", "outer" or "cross"
	N         int    // grid divisor for starcut, 0 otherwise
	Keypoints []r2.Point
	Overlay   templates.Overlay

	// Cross variants take X ratios from XSource and Y ratios from YSource.
	XSource, YSource string

	XRatios, YRatios []float64
}

// IsCross reports whether v mixes ratios from two templates.
func (v Variant) IsCross() bool {
	return v.XSource != "" && v.YSource != ""
}

// StarcutLabel is the variant label of the n-by-n grid.
func StarcutLabel(n int) string {
	return fmt.Sprintf("starcut_n=%d", n)
}

// CirclecutLabel is the variant label of a circlecut subtype.
func CirclecutLabel(v templates.Variant) string {
	return "circlecut_" + string(v)
}

// CrossLabel is the variant label of a cross template.
func CrossLabel(x, y string) string {
	return x + "_x+" + y + "_y"
}

// BuildVariants returns the enabled variants in order: starcuts by n, inner, outer,
// then cross variants (starcut x circle, then circle x starcut).
func BuildVariants(roi geometry.ROI, p Params) ([]Variant, error) {
	if err := roi.Validate(); err != nil {
		return nil, err
	}
	var out []Variant

	if p.IncludeStarcut {
		for n := p.StarcutMin; n <= p.StarcutMax; n++ {
			kp, err := templates.Standard(n)
			if err != nil {
				return nil, err
			}
			out = append(out, newVariant(StarcutLabel(n), Starcut, "standard", n, kp,
				templates.Overlay{Lines: templates.GridOverlay(n), Points: kp}))
		}
	}

	for _, sub := range []struct {
		on bool
		v  templates.Variant
	}{{p.IncludeInner, templates.Inner}, {p.IncludeOuter, templates.Outer}} {
		if !sub.on {
			continue
		}
		kp, err := templates.Circle(sub.v, roi)
		if err != nil {
			return nil, err
		}
		ov, err := templates.CircleOverlay(sub.v, roi)
		if err != nil {
			return nil, err
		}
		out = append(out, newVariant(CirclecutLabel(sub.v), Circlecut, string(sub.v), 0, kp, ov))
	}

	if len(out) == 0 {
		return nil, errors.Wrap(geomerr.ErrNoTemplateVariantsEnabled, "no template variants enabled")
	}

	if p.AllowCrossTemplate {
		var starcuts, circles []Variant
		for _, v := range out {
			switch v.Type {
			case Starcut:
				starcuts = append(starcuts, v)
			case Circlecut:
				circles = append(circles, v)
			}
		}
		for _, sx := range starcuts {
			for _, cy := range circles {
				out = append(out, crossVariant(sx, cy))
			}
		}
		for _, cx := range circles {
			for _, sy := range starcuts {
				out = append(out, crossVariant(cx, sy))
			}
		}
	}
	return out, nil
}

func newVariant(label string, t TemplateType, sub string, n int, kp []r2.Point, ov templates.Overlay) Variant {
	xs, ys := ExtractRatios(kp)
	return Variant{
		Label:     label,
		Type:      t,
		Variant:   sub,
		N:         n,
		Keypoints: kp,
		Overlay:   ov,
		XRatios:   xs,
		YRatios:   ys,
	}
}

func crossVariant(x, y Variant) Variant {
	return Variant{
		Label:   CrossLabel(x.Label, y.Label),
		Type:    Cross,
		Variant: "cross",
		Overlay: templates.Merge(x.Overlay, y.Overlay),
		XSource: x.Label,
		YSource: y.Label,
		XRatios: x.XRatios,
		YRatios: y.YRatios,
	}
}
