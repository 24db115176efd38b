package detection

import (
	"image"
	"sort"

	"github.com/ironsheep/vault-geometry-mcp/internal/ribs"
)

// DefaultMinBossArea is the smallest component, in pixels, reported as a boss.
const DefaultMinBossArea = 10

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// Bounds represents a rectangular bounding box in pixel coordinates.
//
// (X1, Y1) is the top-left pixel and (X2, Y2) the bottom-right pixel, both inclusive.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Boss is one connected blob of a boss-stone mask.
type Boss struct {
	// ID numbers bosses from 1 in reading order (top to bottom, then left to right).
	ID int `json:"id"`

	// X and Y are the centroid of the blob's pixels.
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Area is the pixel count of the blob.
	Area int `json:"area"`

	// Bounds is the bounding box of the blob.
	Bounds Bounds `json:"bounds"`
}

// BossesResult contains every boss found in a mask.
type BossesResult struct {
	// Bosses is sorted by centroid (Y, then X).
	Bosses []Boss `json:"bosses"`

	// Count is the number of bosses detected.
	Count int `json:"count"`

	// Discarded counts components smaller than the area threshold.
	Discarded int `json:"discarded"`
}

// DetectBosses finds boss centroids in a segmentation mask.
//
// The mask is binarised the same way rib masks are: the alpha channel when the image
// has transparency, grayscale otherwise, with any value above 1 counting as set.
//
// Parameters:
//   - mask: Boss-stone segmentation mask.
//   - minArea: Components with fewer pixels are discarded. Values below 1 use
//     DefaultMinBossArea.
//
// # Algorithm
//
//  1. Binarise the mask
//  2. Label 8-connected components with an iterative flood fill
//  3. Drop components below minArea
//  4. Report each component's pixel centroid, area and bounds
//  5. Sort by (Y, X) and number from 1
func DetectBosses(mask image.Image, minArea int) *BossesResult {
	if minArea < 1 {
		minArea = DefaultMinBossArea
	}
	bin := ribs.FromImage(mask)
	visited := make([]bool, len(bin.Pix))

	result := &BossesResult{Bosses: []Boss{}}
	var blob []Point
	for y := 0; y < bin.Height; y++ {
		for x := 0; x < bin.Width; x++ {
			if visited[y*bin.Width+x] || !bin.At(x, y) {
				continue
			}
			blob = blob[:0]
			floodFill(bin, visited, x, y, &blob)
			if len(blob) < minArea {
				result.Discarded++
				continue
			}
			result.Bosses = append(result.Bosses, summarise(blob))
		}
	}

	sort.SliceStable(result.Bosses, func(i, j int) bool {
		a, b := result.Bosses[i], result.Bosses[j]
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	for i := range result.Bosses {
		result.Bosses[i].ID = i + 1
	}
	result.Count = len(result.Bosses)
	return result
}

// floodFill collects the 8-connected component containing (startX, startY).
//
// Uses an explicit stack rather than recursion so large blobs cannot overflow the
// goroutine stack.
func floodFill(m *ribs.Mask, visited []bool, startX, startY int, blob *[]Point) {
	stack := []Point{{X: startX, Y: startY}}
	visited[startY*m.Width+startX] = true

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		*blob = append(*blob, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := p.X+dx, p.Y+dy
				if (dx == 0 && dy == 0) || nx < 0 || nx >= m.Width || ny < 0 || ny >= m.Height {
					continue
				}
				i := ny*m.Width + nx
				if visited[i] || !m.At(nx, ny) {
					continue
				}
				visited[i] = true
				stack = append(stack, Point{X: nx, Y: ny})
			}
		}
	}
}

func summarise(blob []Point) Boss {
	b := Boss{Area: len(blob), Bounds: Bounds{X1: blob[0].X, Y1: blob[0].Y, X2: blob[0].X, Y2: blob[0].Y}}
	var sx, sy int
	for _, p := range blob {
		sx += p.X
		sy += p.Y
		b.Bounds.X1 = min(b.Bounds.X1, p.X)
		b.Bounds.Y1 = min(b.Bounds.Y1, p.Y)
		b.Bounds.X2 = max(b.Bounds.X2, p.X)
		b.Bounds.Y2 = max(b.Bounds.Y2, p.Y)
	}
	b.X = float64(sx) / float64(len(blob))
	b.Y = float64(sy) / float64(len(blob))
	return b
}
