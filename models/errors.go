package models

import "errors"

// Error taxonomy. Job-setup failures wrap one of these sentinels so the
// command layer can map them to exit codes; per-file failures during
// processing are tallied as skips instead.
var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrArchive            = errors.New("archive error")
	ErrUnsupportedArchive = errors.New("unsupported archive format")
	ErrPayload            = errors.New("payload error")
	ErrCrypto             = errors.New("crypto error")
	ErrImage              = errors.New("image processing error")
	ErrImageTooSmall      = errors.New("image too small for watermark")
	ErrNoWatermark        = errors.New("no watermark found")
	ErrInvalidJSON        = errors.New("invalid json document")
	ErrExcel              = errors.New("spreadsheet read error")
)
