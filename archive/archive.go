package archive

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
)

// Format identifies a supported container format.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip            // .zip and .var (a ZIP under an alternate extension)
	FormatSevenZ         // .7z, extract only
	FormatRar            // .rar, extract only
)

// Extraction guards against archive bombs.
const (
	defaultMaxTotalBytes = int64(8) << 30 // 8 GiB uncompressed
	defaultMaxEntries    = 500_000
)

// Processor extracts and repackages archives. Extraction rejects entries
// that escape the destination and archives that exceed the bomb thresholds;
// repackaging walks the source tree in sorted order and preserves file
// modes.
type Processor struct {
	MaxTotalBytes int64
	MaxEntries    int
}

// NewProcessor returns a Processor with the default safety thresholds.
func NewProcessor() *Processor {
	return &Processor{MaxTotalBytes: defaultMaxTotalBytes, MaxEntries: defaultMaxEntries}
}

// DetectFormat classifies an archive path by extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".var":
		return FormatZip, nil
	case ".7z":
		return FormatSevenZ, nil
	case ".rar":
		return FormatRar, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %s", models.ErrUnsupportedArchive, filepath.Ext(path))
	}
}

// Extract unpacks the archive into destDir, which must already exist.
func (p *Processor) Extract(archivePath, destDir string) error {
	format, err := DetectFormat(archivePath)
	if err != nil {
		return err
	}
	switch format {
	case FormatZip:
		return p.extractZip(archivePath, destDir)
	case FormatSevenZ:
		return p.extractSevenZ(archivePath, destDir)
	case FormatRar:
		return p.extractRar(archivePath, destDir)
	default:
		return fmt.Errorf("%w: %s", models.ErrUnsupportedArchive, archivePath)
	}
}

// Repack archives srcDir into destArchive. Only the ZIP container can be
// written; callers route degraded formats through RepackTargetName first.
func (p *Processor) Repack(srcDir, destArchive string) error {
	format, err := DetectFormat(destArchive)
	if err != nil {
		return err
	}
	if format != FormatZip {
		return fmt.Errorf("%w: cannot write %s archives", models.ErrUnsupportedArchive, filepath.Ext(destArchive))
	}
	return p.repackZip(srcDir, destArchive)
}

// RepackTargetName maps an input archive filename to its output filename.
// ZIP and VAR keep their names; RAR and 7z outputs are written as ZIP, which
// is a documented degradation (no production writers exist for either).
// The second return reports whether the format was degraded.
func RepackTargetName(inputName string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(inputName))
	switch ext {
	case ".rar", ".7z":
		return strings.TrimSuffix(inputName, filepath.Ext(inputName)) + ".zip", true
	default:
		return inputName, false
	}
}

// entryBudget tracks cumulative extraction cost against the bomb thresholds.
type entryBudget struct {
	maxBytes   int64
	maxEntries int
	bytes      int64
	entries    int
}

func (p *Processor) newBudget() *entryBudget {
	return &entryBudget{maxBytes: p.MaxTotalBytes, maxEntries: p.MaxEntries}
}

func (b *entryBudget) add(size int64) error {
	b.entries++
	if b.entries > b.maxEntries {
		return fmt.Errorf("%w: entry count exceeds %d", models.ErrArchive, b.maxEntries)
	}
	b.bytes += size
	if b.bytes > b.maxBytes {
		return fmt.Errorf("%w: uncompressed size exceeds %d bytes", models.ErrArchive, b.maxBytes)
	}
	return nil
}
