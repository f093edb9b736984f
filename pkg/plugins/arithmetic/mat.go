package arithmetic

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch is returned when element-wise operands differ in shape.
var ErrShapeMismatch = errors.New("matrix shapes differ")

// Mat is a dense row-major float64 matrix, the buffer type of this plugin.
// Buffers handed between nodes are read-only; operations return new matrices
// unless documented otherwise.
type Mat struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// NewMat returns a zero-filled rows x cols matrix.
func NewMat(rows, cols int) *Mat {
	return &Mat{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// Full returns a rows x cols matrix with every cell set to v.
func Full(rows, cols int, v float64) *Mat {
	m := NewMat(rows, cols)
	for i := range m.Data {
		m.Data[i] = v
	}
	return m
}

// FromRows builds a matrix from a rectangular grid.
func FromRows(rows [][]float64) (*Mat, error) {
	if len(rows) == 0 {
		return NewMat(0, 0), nil
	}
	m := NewMat(len(rows), len(rows[0]))
	for i, row := range rows {
		if len(row) != m.Cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), m.Cols)
		}
		copy(m.Data[i*m.Cols:], row)
	}
	return m, nil
}

// At returns the cell at row i, column j.
func (m *Mat) At(i, j int) float64 {
	return m.Data[i*m.Cols+j]
}

// Set writes the cell at row i, column j.
func (m *Mat) Set(i, j int, v float64) {
	m.Data[i*m.Cols+j] = v
}

// Clone returns a deep copy.
func (m *Mat) Clone() *Mat {
	c := &Mat{Rows: m.Rows, Cols: m.Cols, Data: make([]float64, len(m.Data))}
	copy(c.Data, m.Data)
	return c
}

// SameShape reports whether m and o have equal dimensions.
func (m *Mat) SameShape(o *Mat) bool {
	return m.Rows == o.Rows && m.Cols == o.Cols
}

// Grid returns the matrix as nested rows.
func (m *Mat) Grid() [][]float64 {
	out := make([][]float64, m.Rows)
	for i := range out {
		out[i] = append([]float64(nil), m.Data[i*m.Cols:(i+1)*m.Cols]...)
	}
	return out
}

func (m *Mat) String() string {
	return fmt.Sprintf("Mat(%dx%d)%v", m.Rows, m.Cols, m.Grid())
}

// apply combines dst and src cell by cell into dst.
func apply(dst, src *Mat, op func(a, b float64) float64) error {
	if !dst.SameShape(src) {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, dst.Rows, dst.Cols, src.Rows, src.Cols)
	}
	for i := range dst.Data {
		dst.Data[i] = op(dst.Data[i], src.Data[i])
	}
	return nil
}

// combine returns op(a, b) cell by cell. Where mask is non-nil, cells whose
// mask value is zero are left at zero.
func combine(a, b, mask *Mat, op func(x, y float64) float64) (*Mat, error) {
	out := a.Clone()
	if err := apply(out, b, op); err != nil {
		return nil, err
	}
	if mask == nil {
		return out, nil
	}
	if !out.SameShape(mask) {
		return nil, fmt.Errorf("mask: %w", ErrShapeMismatch)
	}
	for i, keep := range mask.Data {
		if keep == 0 {
			out.Data[i] = 0
		}
	}
	return out, nil
}

func add(a, b float64) float64 { return a + b }
func sub(a, b float64) float64 { return a - b }
func mul(a, b float64) float64 { return a * b }

// div follows the saturating convention of image libraries: x/0 is 0.
func div(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// Norm types, numbered like the OpenCV constants the editor exposes.
const (
	NormInf    = 1
	NormL1     = 2
	NormL2     = 4
	NormMinMax = 32
)

// Normalize scales src so that its norm equals alpha, or, for NormMinMax,
// so that its values span [min(alpha, beta), max(alpha, beta)].
func Normalize(src *Mat, alpha, beta float64, normType int) (*Mat, error) {
	out := src.Clone()
	if len(out.Data) == 0 {
		return out, nil
	}

	if normType == NormMinMax {
		lo, hi := math.Min(alpha, beta), math.Max(alpha, beta)
		smin, smax := out.Data[0], out.Data[0]
		for _, v := range out.Data {
			smin, smax = math.Min(smin, v), math.Max(smax, v)
		}
		scale := 0.0
		if smax > smin {
			scale = (hi - lo) / (smax - smin)
		}
		for i, v := range out.Data {
			out.Data[i] = (v-smin)*scale + lo
		}
		return out, nil
	}

	var norm float64
	switch normType {
	case NormInf:
		for _, v := range out.Data {
			norm = math.Max(norm, math.Abs(v))
		}
	case NormL1:
		for _, v := range out.Data {
			norm += math.Abs(v)
		}
	case NormL2:
		for _, v := range out.Data {
			norm += v * v
		}
		norm = math.Sqrt(norm)
	default:
		return nil, fmt.Errorf("unsupported norm type %d", normType)
	}

	scale := 0.0
	if norm > 0 {
		scale = alpha / norm
	}
	for i := range out.Data {
		out.Data[i] *= scale
	}
	return out, nil
}

// GaussianKernel returns the rows x cols outer product of two normalized 1-D
// Gaussians. A non-positive sigma is derived from the aperture size.
func GaussianKernel(rows, cols int, sigma float64) *Mat {
	gr, gc := gaussian(rows, sigma), gaussian(cols, sigma)
	k := NewMat(rows, cols)
	for i := range rows {
		for j := range cols {
			k.Set(i, j, gr[i]*gc[j])
		}
	}
	return k
}

func gaussian(n int, sigma float64) []float64 {
	if sigma <= 0 {
		sigma = 0.3*((float64(n)-1)*0.5-1) + 0.8
	}
	g := make([]float64, n)
	center := float64(n-1) / 2
	var sum float64
	for i := range g {
		x := float64(i) - center
		g[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += g[i]
	}
	for i := range g {
		g[i] /= sum
	}
	return g
}
