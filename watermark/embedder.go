package watermark

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
)

// fastModeMax is the region edge processed when fast mode is enabled on
// large images; the remainder of the image is left untouched.
const fastModeMax = 512

// Embedder writes a blind watermark into the luminance channel of an image.
//
// Pipeline: BT.601 luminance, edge-replicated padding to multiples of 32,
// 2-level Haar DWT, 8x8 DCT on the HL2 subband, QIM on the five
// mid-frequency coefficients per tile, then the inverse transforms. The
// luminance delta is applied uniformly to R, G and B, which leaves chroma
// exactly unchanged.
type Embedder struct{}

// NewEmbedder returns an Embedder.
func NewEmbedder() *Embedder { return &Embedder{} }

// EmbedText embeds md5(text) as 128 bits. strength must lie in [0.1, 1.0];
// larger values survive more distortion at more visible cost.
func (e *Embedder) EmbedText(img image.Image, text string, strength float64, fastMode bool) (image.Image, error) {
	if strength < 0.1 || strength > 1.0 {
		return nil, fmt.Errorf("%w: strength must be between 0.1 and 1.0, got %g", models.ErrInvalidConfig, strength)
	}
	bits, _ := EncodeMD5Bits(text)
	return e.embedBits(img, bits, strength, fastMode)
}

func (e *Embedder) embedBits(img image.Image, bits []uint8, strength float64, fastMode bool) (image.Image, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if fastMode && w > fastModeMax && h > fastModeMax {
		return e.embedRegion(img, bits, strength)
	}

	y := lumaPlane(img)
	padded := padPlane(y, padMultiple)

	pyramid, err := Decompose2(padded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrImage, err)
	}
	sub := pyramid.HL2()
	if tileCapacity(sub)*bitsPerTile < len(bits) {
		return nil, fmt.Errorf("%w: need %d coefficient slots, have %d",
			models.ErrImageTooSmall, len(bits), tileCapacity(sub)*bitsPerTile)
	}

	coeffs, err := ForwardBlocks(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrImage, err)
	}
	q := strength * qimBase
	for i, bit := range bits {
		r, c := slotCoefficient(coeffs, i)
		coeffs.Set(r, c, quantizeToBit(coeffs.At(r, c), q, bit))
	}
	modified, err := InverseBlocks(coeffs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrImage, err)
	}
	pyramid.Level2.HL = modified
	rebuilt := pyramid.Reconstruct()

	// Apply the luminance delta back onto the original pixels and clamp.
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			orR, orG, orB, _ := img.At(b.Min.X+px, b.Min.Y+py).RGBA()
			delta := rebuilt.At(py, px) - y.At(py, px)
			out.SetRGBA(px, py, color.RGBA{
				R: clampByte(float64(orR>>8) + delta),
				G: clampByte(float64(orG>>8) + delta),
				B: clampByte(float64(orB>>8) + delta),
				A: 255,
			})
		}
	}
	return out, nil
}

// embedRegion marks only the top-left fastModeMax square and pastes it back
// over a copy of the original.
func (e *Embedder) embedRegion(img image.Image, bits []uint8, strength float64) (image.Image, error) {
	b := img.Bounds()
	region := image.NewRGBA(image.Rect(0, 0, fastModeMax, fastModeMax))
	draw.Draw(region, region.Bounds(), img, b.Min, draw.Src)

	marked, err := e.embedBits(region, bits, strength, false)
	if err != nil {
		return nil, err
	}

	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	draw.Draw(out, image.Rect(0, 0, fastModeMax, fastModeMax), marked, image.Point{}, draw.Src)
	return out, nil
}

// quantizeToBit snaps c to the nearest multiple of q whose parity equals
// bit, moving toward c when the parity has to change.
func quantizeToBit(c, q float64, bit uint8) float64 {
	k := int(math.Round(c / q))
	if parity(k) != bit {
		if c >= float64(k)*q {
			k++
		} else {
			k--
		}
	}
	return float64(k) * q
}

func parity(k int) uint8 {
	return uint8(((k % 2) + 2) % 2)
}

// MinEmbedCapacity reports whether an image of the given dimensions can hold
// a 128-bit mark after padding.
func MinEmbedCapacity(w, h int) bool {
	pr := ceilMultiple(h, padMultiple) / 4
	pc := ceilMultiple(w, padMultiple) / 4
	tiles := (pr / tileSize) * (pc / tileSize)
	return tiles*bitsPerTile >= md5Bits
}
