package ribs

import "math"

// DistanceField holds, for every pixel, the Euclidean distance to the nearest set
// pixel of a mask. Pixels of a mask with no set pixels are +Inf.
type DistanceField struct {
	Width, Height int
	D             []float64
}

// At returns the distance at (x, y), clamping the position into range.
func (f *DistanceField) At(x, y int) float64 {
	x = min(max(x, 0), f.Width-1)
	y = min(max(y, 0), f.Height-1)
	return f.D[y*f.Width+x]
}

// DistanceTransform computes the exact Euclidean distance transform of m using the
// two-pass lower-envelope method of Felzenszwalb and Huttenlocher.
func DistanceTransform(m *Mask) *DistanceField {
	w, h := m.Width, m.Height
	f := &DistanceField{Width: w, Height: h, D: make([]float64, w*h)}
	if w == 0 || h == 0 {
		return f
	}
	inf := math.Inf(1)
	for i, p := range m.Pix {
		if p {
			f.D[i] = 0
		} else {
			f.D[i] = inf
		}
	}

	n := max(w, h)
	buf := make([]float64, n)
	out := make([]float64, n)
	v := make([]int, n)
	z := make([]float64, n+1)

	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			buf[y] = f.D[y*w+x]
		}
		edt1d(buf[:h], out[:h], v, z)
		for y := 0; y < h; y++ {
			f.D[y*w+x] = out[y]
		}
	}
	for y := 0; y < h; y++ {
		row := f.D[y*w : (y+1)*w]
		copy(buf, row)
		edt1d(buf[:w], out[:w], v, z)
		copy(row, out[:w])
	}
	for i, d := range f.D {
		f.D[i] = math.Sqrt(d)
	}
	return f
}

// edt1d writes the squared 1-D distance transform of g into d. g holds squared
// distances (0 or +Inf on the first pass).
func edt1d(g, d []float64, v []int, z []float64) {
	n := len(g)
	k := -1
	for q := 0; q < n; q++ {
		if math.IsInf(g[q], 1) {
			continue
		}
		for k >= 0 {
			p := v[k]
			s := ((g[q] + float64(q*q)) - (g[p] + float64(p*p))) / float64(2*q-2*p)
			if s > z[k] {
				k++
				v[k] = q
				z[k] = s
				z[k+1] = math.Inf(1)
				break
			}
			k--
		}
		if k < 0 {
			k = 0
			v[0] = q
			z[0] = math.Inf(-1)
			z[1] = math.Inf(1)
		}
	}
	if k < 0 {
		for q := range d {
			d[q] = math.Inf(1)
		}
		return
	}
	j := 0
	for q := 0; q < n; q++ {
		for z[j+1] < float64(q) {
			j++
		}
		dq := float64(q - v[j])
		d[q] = dq*dq + g[v[j]]
	}
}
