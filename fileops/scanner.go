package fileops

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
)

// Classify maps a filename to its FileType by extension.
func Classify(name string) models.FileType {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return models.TypeJSON
	case ".vaj":
		return models.TypeVAJ
	case ".vmi":
		return models.TypeVMI
	case ".png":
		return models.TypePNG
	case ".jpg", ".jpeg":
		return models.TypeJPEG
	default:
		return models.TypeOther
	}
}

// Scan walks the extracted tree and returns every regular file as a
// FileTask. The order is deterministic across filesystems: sorted by
// lowercase relative path, then by the original casing.
func Scan(root string) ([]models.FileTask, error) {
	var tasks []models.FileTask
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		tasks = append(tasks, models.FileTask{
			RelativePath: rel,
			TempPath:     path,
			Type:         Classify(rel),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Slice(tasks, func(i, j int) bool {
		a := strings.ToLower(tasks[i].RelativePath)
		b := strings.ToLower(tasks[j].RelativePath)
		if a != b {
			return a < b
		}
		return tasks[i].RelativePath < tasks[j].RelativePath
	})
	return tasks, nil
}

// GroupByType splits tasks into per-type slices, preserving scan order.
func GroupByType(tasks []models.FileTask) map[models.FileType][]models.FileTask {
	groups := make(map[models.FileType][]models.FileTask)
	for _, t := range tasks {
		groups[t.Type] = append(groups[t.Type], t)
	}
	return groups
}
