package models

import (
	"fmt"
	"strings"
)

// EncodingMode selects how the watermark payload is stored in structured files.
type EncodingMode string

const (
	ModeMD5       EncodingMode = "md5"
	ModePlaintext EncodingMode = "plaintext"
	ModeAES       EncodingMode = "aes"
)

// ParseEncodingMode maps a wire string to an EncodingMode. Unknown values
// default to md5, matching the original command behavior.
func ParseEncodingMode(s string) EncodingMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ModePlaintext):
		return ModePlaintext
	case string(ModeAES):
		return ModeAES
	default:
		return ModeMD5
	}
}

// WatermarkSource is the payload origin: a single text applied to every file,
// or a spreadsheet whose first column provides one payload per row.
type WatermarkSource struct {
	Type    string `json:"type"` // "singleText" | "excelFile"
	Content string `json:"content,omitempty"`
	Path    string `json:"path,omitempty"`
}

const (
	SourceSingleText = "singleText"
	SourceExcelFile  = "excelFile"
)

// SingleText builds a single-payload source.
func SingleText(content string) WatermarkSource {
	return WatermarkSource{Type: SourceSingleText, Content: content}
}

// ExcelFile builds a spreadsheet-backed source.
func ExcelFile(path string) WatermarkSource {
	return WatermarkSource{Type: SourceExcelFile, Path: path}
}

// DefaultFieldName is the watermark key used in structured files when the
// caller does not supply one.
const DefaultFieldName = "_watermark"

// JobConfig describes one embed job. It is immutable once validated.
type JobConfig struct {
	ArchivePath   string          `json:"archivePath"`
	Strength      float64         `json:"strength"`
	Source        WatermarkSource `json:"watermarkSource"`
	Mode          EncodingMode    `json:"watermarkMode"`
	AESKey        string          `json:"aesKey,omitempty"`
	FieldName     string          `json:"watermarkKey,omitempty"`
	Obfuscate     bool            `json:"obfuscate"`
	ProcessJSON   bool            `json:"processJson"`
	ProcessVAJ    bool            `json:"processVaj"`
	ProcessVMI    bool            `json:"processVmi"`
	ProcessImages bool            `json:"processImages"`
	// SelectedImages restricts marking to these PNG relative paths; empty
	// means every eligible PNG.
	SelectedImages []string `json:"selectedImages,omitempty"`
	FastMode       bool     `json:"fastMode"`
	// OutputDir defaults to the archive's parent directory.
	OutputDir string `json:"outputDir,omitempty"`
}

// Field returns the configured watermark field name or the default.
func (c *JobConfig) Field() string {
	if f := strings.TrimSpace(c.FieldName); f != "" {
		return f
	}
	return DefaultFieldName
}

// Validate checks job-setup invariants. Failures here are fatal and map to
// the input-validation taxonomy.
func (c *JobConfig) Validate() error {
	if strings.TrimSpace(c.ArchivePath) == "" {
		return fmt.Errorf("%w: archive path is required", ErrInvalidConfig)
	}
	if c.Strength < 0.1 || c.Strength > 1.0 {
		return fmt.Errorf("%w: strength must be between 0.1 and 1.0, got %g", ErrInvalidConfig, c.Strength)
	}
	if !c.ProcessJSON && !c.ProcessVAJ && !c.ProcessVMI && !c.ProcessImages {
		return fmt.Errorf("%w: at least one file type must be selected", ErrInvalidConfig)
	}
	switch c.Source.Type {
	case SourceSingleText:
		if c.Source.Content == "" {
			return fmt.Errorf("%w: watermark text is empty", ErrPayload)
		}
	case SourceExcelFile:
		if strings.TrimSpace(c.Source.Path) == "" {
			return fmt.Errorf("%w: spreadsheet path is empty", ErrPayload)
		}
	default:
		return fmt.Errorf("%w: unknown watermark source %q", ErrInvalidConfig, c.Source.Type)
	}
	if c.Mode == ModeAES && strings.TrimSpace(c.AESKey) == "" {
		return fmt.Errorf("%w: aes mode requires a key", ErrInvalidConfig)
	}
	return nil
}

// FileType classifies scanned files by extension.
type FileType string

const (
	TypeJSON  FileType = "json"
	TypeVAJ   FileType = "vaj"
	TypeVMI   FileType = "vmi"
	TypePNG   FileType = "png"
	TypeJPEG  FileType = "jpeg"
	TypeOther FileType = "other"
)

// FileTask is one file discovered in the extracted tree.
type FileTask struct {
	// RelativePath is slash-separated, relative to the archive root.
	RelativePath string `json:"relativePath"`
	// TempPath is the absolute location inside the scratch workspace.
	TempPath string   `json:"tempPath"`
	Type     FileType `json:"type"`
	// Payload is the watermark text assigned to this task.
	Payload string `json:"payload,omitempty"`
}

// ScanSummary is emitted once after scanning, before processing starts.
type ScanSummary struct {
	JSONCount  int `json:"jsonCount"`
	VAJCount   int `json:"vajCount"`
	VMICount   int `json:"vmiCount"`
	ImageCount int `json:"imageCount"`
}

// WatermarkFinding is one mark recovered from a structured file.
type WatermarkFinding struct {
	File      string `json:"file"`
	Value     string `json:"value"`
	Mode      string `json:"mode"` // "md5" | "plaintext" | "aes"
	Decrypted bool   `json:"decrypted"`
}

// ImageFinding is one mark recovered from a PNG.
type ImageFinding struct {
	File string `json:"file"`
	Text string `json:"text"`
}

// CombinedScanResult groups everything one scan pass recovered.
type CombinedScanResult struct {
	JSONFindings  []WatermarkFinding `json:"jsonFindings"`
	ImageFindings []ImageFinding     `json:"imageFindings"`
	// ScannedPNGCount is the number of PNG entries the image pass looked at;
	// JPEG entries are filtered out before extraction.
	ScannedPNGCount int `json:"scannedPngCount"`
}

// SkipReason tags a per-file failure that did not abort the job.
type SkipReason string

const (
	SkipImageTooSmall SkipReason = "image_too_small"
	SkipDecodeFailure SkipReason = "decode_failure"
	SkipEncodeFailure SkipReason = "encode_failure"
	SkipInvalidJSON   SkipReason = "invalid_json"
	SkipReadFailure   SkipReason = "read_failure"
	SkipWriteFailure  SkipReason = "write_failure"
)

// JobSummary is attached to the completion status of an embed job.
type JobSummary struct {
	ArchiveCount int                `json:"archiveCount"`
	FileCount    int                `json:"fileCount"`
	SkipCount    int                `json:"skipCount"`
	Skips        map[SkipReason]int `json:"skips,omitempty"`
	OutputPath   string             `json:"outputPath"`
}
