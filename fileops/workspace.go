package fileops

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is the scratch directory one job extracts into. It exists only
// for the job's duration; Close removes it on every exit path.
type Workspace struct {
	root      string
	extracted string
}

// NewWorkspace creates a uniquely named scratch directory under the system
// temp dir. The label is informational, for operators inspecting leftovers
// from crashed runs.
func NewWorkspace(label string) (*Workspace, error) {
	name := fmt.Sprintf("blindmark-%s-%s", sanitizeLabel(label), uuid.NewString()[:8])
	root := filepath.Join(os.TempDir(), name)
	extracted := filepath.Join(root, "extracted")
	if err := os.MkdirAll(extracted, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{root: root, extracted: extracted}, nil
}

// ExtractedPath is where the archive contents are unpacked.
func (w *Workspace) ExtractedPath() string { return w.extracted }

// Root is the workspace directory itself.
func (w *Workspace) Root() string { return w.root }

// Close deletes the workspace tree.
func (w *Workspace) Close() error {
	return os.RemoveAll(w.root)
}

func sanitizeLabel(label string) string {
	out := make([]rune, 0, len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		}
		if len(out) >= 24 {
			break
		}
	}
	if len(out) == 0 {
		return "job"
	}
	return string(out)
}
