package archive

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nwaples/rardecode/v2"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
	"github.com/Wxl-c137/BlindMarkerMaster/security"
)

// RAR support is extraction-only; repackaged RAR jobs emit ZIP instead.
func (p *Processor) extractRar(archivePath, destDir string) error {
	r, err := rardecode.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: open rar: %v", models.ErrArchive, err)
	}
	defer r.Close()

	budget := p.newBudget()
	for {
		hdr, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: read rar: %v", models.ErrArchive, err)
		}
		if err := budget.add(hdr.UnPackedSize); err != nil {
			return err
		}
		dest, err := security.SecureJoin(destDir, hdr.Name)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrArchive, err)
		}
		if hdr.IsDir {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("%w: %v", models.ErrArchive, err)
			}
			continue
		}
		if err := writeEntry(dest, hdr.Mode(), func(w io.Writer) error {
			_, err := io.Copy(w, r)
			return err
		}); err != nil {
			return fmt.Errorf("%w: extract %s: %v", models.ErrArchive, hdr.Name, err)
		}
	}
}
