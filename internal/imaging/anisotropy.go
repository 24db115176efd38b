package imaging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// colourSuffix is dropped from a projection image name to find its sidecar files.
const colourSuffix = "_colour"

// WorldScale relates a projection image to the world extents it was rendered from.
type WorldScale struct {
	// SX and SY are pixels per world unit along each axis.
	SX float64 `json:"sx"`
	SY float64 `json:"sy"`
	// Anisotropy is the world aspect ratio divided by the image aspect ratio.
	Anisotropy   float64 `json:"anisotropy"`
	WorldWidth   float64 `json:"worldWidth"`
	WorldHeight  float64 `json:"worldHeight"`
	MetadataPath string  `json:"metadataPath"`
}

// Ratio returns the world aspect ratio.
func (w *WorldScale) Ratio() float64 { return w.WorldWidth / w.WorldHeight }

type extentBounds struct {
	MinX *float64 `json:"min_x"`
	MaxX *float64 `json:"max_x"`
	MinY *float64 `json:"min_y"`
	MaxY *float64 `json:"max_y"`
}

func (b *extentBounds) size() (float64, float64, bool) {
	if b == nil || b.MinX == nil || b.MaxX == nil || b.MinY == nil || b.MaxY == nil {
		return 0, 0, false
	}
	w, h := *b.MaxX-*b.MinX, *b.MaxY-*b.MinY
	return w, h, w > 0 && h > 0
}

// projectionMetadata is <prefix>_metadata.json written beside a projection image.
type projectionMetadata struct {
	RangeVals []float64     `json:"range_vals"`
	Bounds    *extentBounds `json:"bounds"`
	extentBounds
}

func (m *projectionMetadata) extents() (float64, float64, bool) {
	if len(m.RangeVals) >= 2 && m.RangeVals[0] > 0 && m.RangeVals[1] > 0 {
		return m.RangeVals[0], m.RangeVals[1], true
	}
	if w, h, ok := m.Bounds.size(); ok {
		return w, h, true
	}
	return m.extentBounds.size()
}

// MetadataPath returns where the projection metadata of imagePath lives.
func MetadataPath(imagePath string) string {
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	base = strings.TrimSuffix(base, colourSuffix)
	return filepath.Join(filepath.Dir(imagePath), base+"_metadata.json")
}

// LoadWorldScale reads the projection metadata beside imagePath and relates its world
// extents to the image size.
//
// Extents come from range_vals, then a bounds object, then top-level min/max keys.
// A missing metadata file, or one without usable extents, yields nil and no error.
func LoadWorldScale(cache *ImageCache, imagePath string) (*WorldScale, error) {
	metaPath := MetadataPath(imagePath)
	raw, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read projection metadata")
	}
	var meta projectionMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", filepath.Base(metaPath))
	}
	ww, wh, ok := meta.extents()
	if !ok {
		return nil, nil
	}

	img, err := cache.Load(imagePath)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, nil
	}
	w, h := float64(b.Dx()), float64(b.Dy())
	return &WorldScale{
		SX:           w / ww,
		SY:           h / wh,
		Anisotropy:   (ww / wh) / (w / h),
		WorldWidth:   ww,
		WorldHeight:  wh,
		MetadataPath: metaPath,
	}, nil
}
