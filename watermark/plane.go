package watermark

import (
	"image"

	"gonum.org/v1/gonum/mat"
)

// Geometry constants for the embedding pipeline. Two DWT levels compress
// each dimension by 4 and the DCT tiles by a further 8, so planes are padded
// to multiples of 32 before decomposition.
const (
	padMultiple = 32
	bitsPerTile = 5
	qimBase     = 16.0
)

// midFreqPositions are the five coefficient slots used per tile, cycled in
// round-robin across the bitstream.
var midFreqPositions = [bitsPerTile][2]int{{2, 3}, {3, 2}, {3, 3}, {4, 2}, {4, 3}}

// lumaPlane converts the image to a BT.601 luminance plane.
func lumaPlane(img image.Image) *mat.Dense {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			lum := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
			plane.Set(y, x, lum)
		}
	}
	return plane
}

// padPlane replicates the last row/column until both dimensions are
// divisible by multiple. The original dimensions are recorded by the caller
// for cropping after reconstruction.
func padPlane(plane *mat.Dense, multiple int) *mat.Dense {
	r, c := plane.Dims()
	pr := ceilMultiple(r, multiple)
	pc := ceilMultiple(c, multiple)
	if pr == r && pc == c {
		return plane
	}
	out := mat.NewDense(pr, pc, nil)
	for i := 0; i < pr; i++ {
		si := min(i, r-1)
		for j := 0; j < pc; j++ {
			out.Set(i, j, plane.At(si, min(j, c-1)))
		}
	}
	return out
}

func ceilMultiple(n, m int) int {
	if n%m == 0 {
		return n
	}
	return (n/m + 1) * m
}

// slotCoefficient maps bit index i to the (row, col) of its coefficient in
// the subband: tile i/5 in raster order, position i mod 5.
func slotCoefficient(sub *mat.Dense, i int) (row, col int) {
	_, c := sub.Dims()
	tilesPerRow := c / tileSize
	tile := i / bitsPerTile
	pos := midFreqPositions[i%bitsPerTile]
	ty := tile / tilesPerRow
	tx := tile % tilesPerRow
	return ty*tileSize + pos[0], tx*tileSize + pos[1]
}

// tileCapacity returns how many whole 8x8 tiles the subband holds.
func tileCapacity(sub *mat.Dense) int {
	r, c := sub.Dims()
	return (r / tileSize) * (c / tileSize)
}

func clampByte(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
