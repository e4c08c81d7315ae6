package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CheckEntryName validates an archive member name before extraction.
// Absolute paths, drive-letter paths and parent-directory segments are
// rejected so a crafted archive cannot write outside the extraction root.
func CheckEntryName(name string) error {
	if name == "" {
		return fmt.Errorf("empty entry name")
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return fmt.Errorf("absolute entry path not allowed: %s", name)
	}
	if len(name) >= 2 && name[1] == ':' {
		return fmt.Errorf("drive-letter entry path not allowed: %s", name)
	}
	for _, seg := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return fmt.Errorf("path traversal detected: %s", name)
		}
	}
	return nil
}

// SecureJoin joins an entry name onto the extraction root and verifies the
// result still lives under it.
func SecureJoin(baseDir, entryName string) (string, error) {
	if err := CheckEntryName(entryName); err != nil {
		return "", err
	}
	full := filepath.Join(baseDir, filepath.FromSlash(entryName))
	clean := filepath.Clean(full)
	base := filepath.Clean(baseDir)
	if clean != base && !strings.HasPrefix(clean, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %s", entryName)
	}
	return clean, nil
}

// payloadDirMaxLen caps sanitized payload directory names.
const payloadDirMaxLen = 128

// SanitizePayloadDirName converts a watermark payload text into a directory
// name. Characters the common filesystems reject become underscores, the
// result is capped at 128 runes, and an empty result falls back to row_<N>.
func SanitizePayloadDirName(text string, row int) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*', 0:
			return '_'
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, text)

	runes := []rune(sanitized)
	if len(runes) > payloadDirMaxLen {
		runes = runes[:payloadDirMaxLen]
	}
	sanitized = strings.TrimFunc(string(runes), func(r rune) bool {
		return r == '.' || r == ' '
	})
	if sanitized == "" {
		return fmt.Sprintf("row_%d", row)
	}
	return sanitized
}
