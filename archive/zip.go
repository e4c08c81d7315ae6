package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
	"github.com/Wxl-c137/BlindMarkerMaster/security"
)

func (p *Processor) extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		if r != nil {
			r.Close()
		}
		return fmt.Errorf("%w: open zip: %v", models.ErrArchive, err)
	}
	defer r.Close()

	budget := p.newBudget()
	for _, f := range r.File {
		if err := budget.add(int64(f.UncompressedSize64)); err != nil {
			return err
		}
		dest, err := security.SecureJoin(destDir, f.Name)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrArchive, err)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("%w: %v", models.ErrArchive, err)
			}
			continue
		}
		if err := writeEntry(dest, f.Mode(), func(w io.Writer) error {
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

// writeEntry creates parent directories, streams the entry body and applies
// the recorded mode.
func writeEntry(dest string, mode fs.FileMode, copyBody func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entryPerm(mode))
	if err != nil {
		return err
	}
	if err := copyBody(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func entryPerm(mode fs.FileMode) fs.FileMode {
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	return perm
}

func (p *Processor) repackZip(srcDir, destArchive string) error {
	type member struct {
		rel  string
		abs  string
		mode fs.FileMode
	}
	var members []member
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		members = append(members, member{rel: filepath.ToSlash(rel), abs: path, mode: info.Mode()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: walk source tree: %v", models.ErrArchive, err)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].rel < members[j].rel })

	out, err := os.Create(destArchive)
	if err != nil {
		return fmt.Errorf("%w: create archive: %v", models.ErrArchive, err)
	}
	zw := zip.NewWriter(out)
	for _, m := range members {
		hdr := &zip.FileHeader{Name: m.rel, Method: zip.Deflate}
		hdr.SetMode(m.mode)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			zw.Close()
			out.Close()
			return fmt.Errorf("%w: add %s: %v", models.ErrArchive, m.rel, err)
		}
		in, err := os.Open(m.abs)
		if err != nil {
			zw.Close()
			out.Close()
			return fmt.Errorf("%w: read %s: %v", models.ErrArchive, m.rel, err)
		}
		_, err = io.Copy(w, in)
		in.Close()
		if err != nil {
			zw.Close()
			out.Close()
			return fmt.Errorf("%w: write %s: %v", models.ErrArchive, m.rel, err)
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("%w: finalize archive: %v", models.ErrArchive, err)
	}
	return out.Close()
}
