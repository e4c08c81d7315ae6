package watermark

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
)

// Extractor recovers a 128-bit mark from a watermarked image without access
// to the original. Neither the embed strength nor the fast-mode flag is
// stored in the image, so the extractor scores every (layout, strength)
// candidate and keeps the most consistent read.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// residualTolerance is the accepted distance from a step multiple, as a
// fraction of the step. At the true strength the quantization residual is
// dominated by pixel rounding noise and stays well inside a quarter step;
// at an unrelated strength residuals spread uniformly.
const residualTolerance = 0.25

// consistencyFloor is the fraction of bits that must sit inside the
// tolerance for a candidate to be accepted at all.
const consistencyFloor = 0.75

// Extract reads the mark and returns it as the lowercase 32-char MD5 hex.
// Returns models.ErrNoWatermark when no candidate yields a consistent read.
func (x *Extractor) Extract(img image.Image) (string, error) {
	bits, err := x.extractBits(img)
	if err != nil {
		return "", err
	}
	return DecodeMD5Bits(bits)
}

// TryExtract is Extract with the no-watermark case flattened to ok=false,
// for scan loops that treat unmarked images as a non-event.
func (x *Extractor) TryExtract(img image.Image) (string, bool) {
	text, err := x.Extract(img)
	if err != nil {
		return "", false
	}
	return text, true
}

// candidate is one decoded read with its consistency score.
type candidate struct {
	bits  []uint8
	score float64
	alpha float64
}

func (x *Extractor) extractBits(img image.Image) ([]uint8, error) {
	layouts, err := x.sampleLayouts(img)
	if err != nil {
		return nil, err
	}

	var best *candidate
	for _, coeffs := range layouts {
		for step := 1; step <= 10; step++ {
			alpha := float64(step) / 10.0
			c, ok := readCandidate(coeffs, alpha)
			if !ok {
				continue
			}
			// Prefer the higher score; on equal scores the larger strength
			// wins, because a sub-multiple of the true step reads the same
			// coefficients with a smaller noise margin.
			if best == nil || c.score > best.score ||
				(c.score == best.score && c.alpha > best.alpha) {
				best = &c
			}
		}
	}
	if best == nil {
		return nil, models.ErrNoWatermark
	}
	return best.bits, nil
}

// sampleLayouts samples the coefficient slots for each plausible embed
// layout: the full frame, and for large images the fast-mode top-left
// square, whose tile raster differs from the full frame's.
func (x *Extractor) sampleLayouts(img image.Image) ([][]float64, error) {
	full, err := sampleCoefficients(img)
	if err != nil {
		return nil, err
	}
	layouts := [][]float64{full}

	b := img.Bounds()
	if b.Dx() > fastModeMax && b.Dy() > fastModeMax {
		region := image.NewRGBA(image.Rect(0, 0, fastModeMax, fastModeMax))
		draw.Draw(region, region.Bounds(), img, b.Min, draw.Src)
		if coeffs, err := sampleCoefficients(region); err == nil {
			layouts = append(layouts, coeffs)
		}
	}
	return layouts, nil
}

// sampleCoefficients repeats the embedding transform chain and reads the 128
// coefficient slots.
func sampleCoefficients(img image.Image) ([]float64, error) {
	padded := padPlane(lumaPlane(img), padMultiple)
	pyramid, err := Decompose2(padded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrImage, err)
	}
	sub := pyramid.HL2()
	if tileCapacity(sub)*bitsPerTile < md5Bits {
		return nil, fmt.Errorf("%w: subband holds %d slots", models.ErrImageTooSmall, tileCapacity(sub)*bitsPerTile)
	}
	coeffPlane, err := ForwardBlocks(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrImage, err)
	}

	out := make([]float64, md5Bits)
	for i := range out {
		r, c := slotCoefficient(coeffPlane, i)
		out[i] = coeffPlane.At(r, c)
	}
	return out, nil
}

// readCandidate decodes each coefficient by step parity and scores the
// candidate by the fraction of residuals inside the tolerance. A candidate
// is rejected below the consistency floor, and when the decode degenerates
// to a constant bitstream (the signature of reading at an even sub-multiple
// of the true step).
func readCandidate(coeffs []float64, alpha float64) (candidate, bool) {
	q := alpha * qimBase
	bits := make([]uint8, len(coeffs))
	consistent := 0
	ones := 0
	for i, c := range coeffs {
		k := math.Round(c / q)
		if math.Abs(c-k*q) <= residualTolerance*q {
			consistent++
		}
		bit := parity(int(k))
		bits[i] = bit
		ones += int(bit)
	}
	score := float64(consistent) / float64(len(coeffs))
	if score < consistencyFloor {
		return candidate{}, false
	}
	if ones == 0 || ones == len(coeffs) {
		return candidate{}, false
	}
	return candidate{bits: bits, score: score, alpha: alpha}, true
}
