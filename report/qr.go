package report

import (
	"fmt"
	"os"
	"path/filepath"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
	"github.com/Wxl-c137/BlindMarkerMaster/security"
)

// qrSize is the rendered QR edge in pixels.
const qrSize = 256

// WriteValueQR renders a recovered watermark value as a QR PNG.
func WriteValueQR(value, path string) error {
	if err := qrcode.WriteFile(value, qrcode.Medium, qrSize, path); err != nil {
		return fmt.Errorf("render qr for %s: %w", path, err)
	}
	return nil
}

// ExportFindings writes one QR PNG per structured finding into dir, named
// after the source file, and returns the written paths. Values too long for
// a QR symbol are skipped.
func ExportFindings(dir string, findings []models.WatermarkFinding) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	for i, f := range findings {
		name := security.SanitizePayloadDirName(filepath.Base(f.File), i+1)
		path := filepath.Join(dir, fmt.Sprintf("%02d_%s.png", i+1, name))
		if err := WriteValueQR(f.Value, path); err != nil {
			continue
		}
		written = append(written, path)
	}
	return written, nil
}
