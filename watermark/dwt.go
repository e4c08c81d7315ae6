package watermark

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const sqrt2 = math.Sqrt2

// Subbands holds the four co-located planes of one Haar decomposition level.
// Each plane has half the rows and half the columns of its source.
type Subbands struct {
	LL *mat.Dense // low/low approximation
	HL *mat.Dense // horizontal detail
	LH *mat.Dense // vertical detail
	HH *mat.Dense // diagonal detail
}

// Pyramid is a 2-level Haar decomposition. Level2 is computed from the
// level-1 LL plane. HL2 is the canonical embedding subband; LH2 is the
// alternate candidate.
type Pyramid struct {
	Level1 Subbands
	Level2 Subbands
	rows   int
	cols   int
}

// HL2 returns the canonical embedding subband.
func (p *Pyramid) HL2() *mat.Dense { return p.Level2.HL }

// LH2 returns the alternate embedding subband.
func (p *Pyramid) LH2() *mat.Dense { return p.Level2.LH }

// Decompose2 runs a 2-level Haar decomposition. Both plane dimensions must
// be divisible by 4.
func Decompose2(plane *mat.Dense) (*Pyramid, error) {
	r, c := plane.Dims()
	if r%4 != 0 || c%4 != 0 {
		return nil, fmt.Errorf("plane dimensions must be divisible by 4, got %dx%d", r, c)
	}
	l1 := decomposeOnce(plane)
	l2 := decomposeOnce(l1.LL)
	return &Pyramid{Level1: l1, Level2: l2, rows: r, cols: c}, nil
}

// Reconstruct inverts the decomposition exactly (up to float rounding).
func (p *Pyramid) Reconstruct() *mat.Dense {
	ll1 := reconstructOnce(p.Level2)
	merged := Subbands{LL: ll1, HL: p.Level1.HL, LH: p.Level1.LH, HH: p.Level1.HH}
	return reconstructOnce(merged)
}

func decomposeOnce(plane *mat.Dense) Subbands {
	low, high := haarRows(plane)
	ll, lh := haarCols(low)
	hl, hh := haarCols(high)
	return Subbands{LL: ll, HL: hl, LH: lh, HH: hh}
}

func reconstructOnce(s Subbands) *mat.Dense {
	low := ihaarCols(s.LL, s.LH)
	high := ihaarCols(s.HL, s.HH)
	return ihaarRows(low, high)
}

// haarRows runs the 1-D butterfly along each row, splitting columns into a
// low half and a high half.
func haarRows(m *mat.Dense) (low, high *mat.Dense) {
	r, c := m.Dims()
	half := c / 2
	low = mat.NewDense(r, half, nil)
	high = mat.NewDense(r, half, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < half; j++ {
			a := m.At(i, 2*j)
			b := m.At(i, 2*j+1)
			low.Set(i, j, (a+b)/sqrt2)
			high.Set(i, j, (a-b)/sqrt2)
		}
	}
	return low, high
}

func haarCols(m *mat.Dense) (low, high *mat.Dense) {
	r, c := m.Dims()
	half := r / 2
	low = mat.NewDense(half, c, nil)
	high = mat.NewDense(half, c, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < half; i++ {
			a := m.At(2*i, j)
			b := m.At(2*i+1, j)
			low.Set(i, j, (a+b)/sqrt2)
			high.Set(i, j, (a-b)/sqrt2)
		}
	}
	return low, high
}

func ihaarCols(low, high *mat.Dense) *mat.Dense {
	half, c := low.Dims()
	out := mat.NewDense(half*2, c, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < half; i++ {
			l := low.At(i, j)
			h := high.At(i, j)
			out.Set(2*i, j, (l+h)/sqrt2)
			out.Set(2*i+1, j, (l-h)/sqrt2)
		}
	}
	return out
}

func ihaarRows(low, high *mat.Dense) *mat.Dense {
	r, half := low.Dims()
	out := mat.NewDense(r, half*2, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < half; j++ {
			l := low.At(i, j)
			h := high.At(i, j)
			out.Set(i, 2*j, (l+h)/sqrt2)
			out.Set(i, 2*j+1, (l-h)/sqrt2)
		}
	}
	return out
}
