package watermark

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
)

// testImage builds a mid-range gradient with deterministic noise, far from
// the clamp boundaries so the QIM delta survives intact.
func testImage(w, h int, seed int64) image.Image {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(50 + (x*100)/w + rng.Intn(40)),
				G: uint8(60 + (y*100)/h + rng.Intn(40)),
				B: uint8(80 + rng.Intn(60)),
				A: 255,
			})
		}
	}
	return img
}

func pngRoundtrip(t *testing.T, img image.Image) image.Image {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png decode: %v", err)
	}
	return decoded
}

func TestEmbedExtractRoundtrip(t *testing.T) {
	embedder := NewEmbedder()
	extractor := NewExtractor()

	img := testImage(256, 256, 7)
	text := "Test watermark"
	_, wantDigest := EncodeMD5Bits(text)

	marked, err := embedder.EmbedText(img, text, 0.5, false)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	got, err := extractor.Extract(pngRoundtrip(t, marked))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != wantDigest {
		t.Fatalf("extracted %s, want %s", got, wantDigest)
	}
}

func TestEmbedExtractAcrossStrengths(t *testing.T) {
	embedder := NewEmbedder()
	extractor := NewExtractor()

	img := testImage(256, 256, 11)
	text := "Strength sweep"
	_, wantDigest := EncodeMD5Bits(text)

	for _, strength := range []float64{0.2, 0.3, 0.5, 0.7, 1.0} {
		marked, err := embedder.EmbedText(img, text, strength, false)
		if err != nil {
			t.Fatalf("embed at %g: %v", strength, err)
		}
		got, err := extractor.Extract(pngRoundtrip(t, marked))
		if err != nil {
			t.Fatalf("extract at %g: %v", strength, err)
		}
		if got != wantDigest {
			t.Fatalf("strength %g: extracted %s, want %s", strength, got, wantDigest)
		}
	}
}

func TestEmbedPreservesDimensions(t *testing.T) {
	embedder := NewEmbedder()
	img := testImage(320, 200, 13)

	marked, err := embedder.EmbedText(img, "dims", 0.5, false)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if marked.Bounds().Dx() != 320 || marked.Bounds().Dy() != 200 {
		t.Fatalf("dimensions changed: %v", marked.Bounds())
	}
}

func TestEmbedRejectsInvalidStrength(t *testing.T) {
	embedder := NewEmbedder()
	img := testImage(256, 256, 17)
	if _, err := embedder.EmbedText(img, "x", 0.05, false); err == nil {
		t.Fatal("expected error for strength 0.05")
	}
	if _, err := embedder.EmbedText(img, "x", 1.5, false); err == nil {
		t.Fatal("expected error for strength 1.5")
	}
}

func TestEmbedTooSmallImage(t *testing.T) {
	embedder := NewEmbedder()
	img := testImage(100, 100, 19)
	_, err := embedder.EmbedText(img, "x", 0.5, false)
	if !errors.Is(err, models.ErrImageTooSmall) {
		t.Fatalf("expected ErrImageTooSmall, got %v", err)
	}
}

func TestMinEmbedCapacity(t *testing.T) {
	if MinEmbedCapacity(100, 100) {
		t.Fatal("100x100 should not have capacity")
	}
	if !MinEmbedCapacity(256, 256) {
		t.Fatal("256x256 should have capacity")
	}
}

func TestFastModeLargeImage(t *testing.T) {
	embedder := NewEmbedder()
	extractor := NewExtractor()

	img := testImage(1024, 768, 23)
	text := "FastMode"
	_, wantDigest := EncodeMD5Bits(text)

	marked, err := embedder.EmbedText(img, text, 0.5, true)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if marked.Bounds().Dx() != 1024 || marked.Bounds().Dy() != 768 {
		t.Fatalf("dimensions changed: %v", marked.Bounds())
	}

	// Pixels outside the top-left square must be untouched.
	b := img.Bounds()
	for _, pt := range []image.Point{{600, 100}, {100, 600}, {1000, 700}} {
		or, og, ob, _ := img.At(b.Min.X+pt.X, b.Min.Y+pt.Y).RGBA()
		mr, mg, mb, _ := marked.At(pt.X, pt.Y).RGBA()
		if or != mr || og != mg || ob != mb {
			t.Fatalf("pixel %v changed outside fast-mode region", pt)
		}
	}

	got, err := extractor.Extract(pngRoundtrip(t, marked))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != wantDigest {
		t.Fatalf("extracted %s, want %s", got, wantDigest)
	}
}

func TestFullFrameEmbedOnLargeImage(t *testing.T) {
	embedder := NewEmbedder()
	extractor := NewExtractor()

	img := testImage(800, 600, 29)
	text := "hello"
	_, wantDigest := EncodeMD5Bits(text)

	marked, err := embedder.EmbedText(img, text, 0.5, false)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	got, err := extractor.Extract(pngRoundtrip(t, marked))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != wantDigest {
		t.Fatalf("extracted %s, want %s", got, wantDigest)
	}
}

func TestExtractUnmarkedImage(t *testing.T) {
	extractor := NewExtractor()
	_, err := extractor.Extract(testImage(256, 256, 31))
	if !errors.Is(err, models.ErrNoWatermark) {
		t.Fatalf("expected ErrNoWatermark, got %v", err)
	}
}
