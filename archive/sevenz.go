package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/bodgit/sevenzip"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
	"github.com/Wxl-c137/BlindMarkerMaster/security"
)

func (p *Processor) extractSevenZ(archivePath, destDir string) error {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: open 7z: %v", models.ErrArchive, err)
	}
	defer r.Close()

	budget := p.newBudget()
	for _, f := range r.File {
		info := f.FileInfo()
		if err := budget.add(info.Size()); err != nil {
			return err
		}
		dest, err := security.SecureJoin(destDir, f.Name)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrArchive, err)
		}
		if info.IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("%w: %v", models.ErrArchive, err)
			}
			continue
		}
		if err := writeEntry(dest, info.Mode(), func(w io.Writer) error {
			rc, err := f.Open()
			if err != nil {
				return err
			}
			defer rc.Close()
			_, err = io.Copy(w, rc)
			return err
		}); err != nil {
			return fmt.Errorf("%w: extract %s: %v", models.ErrArchive, f.Name, err)
		}
	}
	return nil
}
