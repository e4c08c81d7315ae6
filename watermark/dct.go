package watermark

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// tileSize is the DCT block edge; the transform always runs on 8x8 tiles.
const tileSize = 8

// dctBasis is the orthonormal DCT-II basis matrix C, so that for a tile A
// the forward transform is C·A·Cᵀ and the inverse is Cᵀ·A·C.
var dctBasis = buildDCTBasis()

func buildDCTBasis() *mat.Dense {
	c := mat.NewDense(tileSize, tileSize, nil)
	for u := 0; u < tileSize; u++ {
		scale := math.Sqrt(2.0 / tileSize)
		if u == 0 {
			scale = math.Sqrt(1.0 / tileSize)
		}
		for x := 0; x < tileSize; x++ {
			c.Set(u, x, scale*math.Cos((2*float64(x)+1)*float64(u)*math.Pi/(2*tileSize)))
		}
	}
	return c
}

// ForwardBlocks applies the 2-D DCT-II to every 8x8 tile of the subband.
// Both dimensions must be divisible by 8.
func ForwardBlocks(sub *mat.Dense) (*mat.Dense, error) {
	return transformBlocks(sub, false)
}

// InverseBlocks applies the inverse DCT to every 8x8 tile.
func InverseBlocks(coeffs *mat.Dense) (*mat.Dense, error) {
	return transformBlocks(coeffs, true)
}

func transformBlocks(src *mat.Dense, inverse bool) (*mat.Dense, error) {
	r, c := src.Dims()
	if r%tileSize != 0 || c%tileSize != 0 {
		return nil, fmt.Errorf("subband dimensions must be divisible by %d, got %dx%d", tileSize, r, c)
	}
	out := mat.NewDense(r, c, nil)
	var tmp, res mat.Dense
	for by := 0; by < r; by += tileSize {
		for bx := 0; bx < c; bx += tileSize {
			block := src.Slice(by, by+tileSize, bx, bx+tileSize)
			if inverse {
				tmp.Mul(dctBasis.T(), block)
				res.Mul(&tmp, dctBasis)
			} else {
				tmp.Mul(dctBasis, block)
				res.Mul(&tmp, dctBasis.T())
			}
			for i := 0; i < tileSize; i++ {
				for j := 0; j < tileSize; j++ {
					out.Set(by+i, bx+j, res.At(i, j))
				}
			}
		}
	}
	return out, nil
}
