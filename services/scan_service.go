package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Wxl-c137/BlindMarkerMaster/fileops"
	"github.com/Wxl-c137/BlindMarkerMaster/jsonmark"
	"github.com/Wxl-c137/BlindMarkerMaster/models"
	"github.com/Wxl-c137/BlindMarkerMaster/watermark"
)

// ScanAll extracts the archive once and recovers every watermark it can
// decode: structured marks from JSON/VAJ/VMI files and blind marks from PNG
// images. JPEG files cannot retain the frequency-domain mark and are
// filtered before extraction. A clean archive yields empty finding lists,
// not an error.
func (s *JobService) ScanAll(ctx context.Context, archivePath, aesKey string, scanImages bool) (models.CombinedScanResult, error) {
	var result models.CombinedScanResult

	tasks, ws, err := s.extractAndScan(archivePath)
	if err != nil {
		return result, err
	}
	defer ws.Close()

	groups := fileops.GroupByType(tasks)
	result.JSONFindings = []models.WatermarkFinding{}
	for _, ft := range []models.FileType{models.TypeJSON, models.TypeVAJ, models.TypeVMI} {
		for _, task := range groups[ft] {
			data, err := os.ReadFile(task.TempPath)
			if err != nil {
				continue
			}
			findings, err := jsonmark.Extract(data, models.DefaultFieldName, aesKey)
			if err != nil {
				continue
			}
			for _, f := range findings {
				f.File = task.RelativePath
				result.JSONFindings = append(result.JSONFindings, f)
			}
		}
	}

	pngTasks := groups[models.TypePNG]
	result.ImageFindings = []models.ImageFinding{}
	if scanImages && len(pngTasks) > 0 {
		result.ScannedPNGCount = len(pngTasks)
		extractor := watermark.NewExtractor()
		texts := make([]string, len(pngTasks))
		found := make([]bool, len(pngTasks))
		runParallel(s.workers, len(pngTasks), func(i int) {
			img, err := decodePNG(pngTasks[i].TempPath)
			if err != nil {
				return
			}
			if text, ok := extractor.TryExtract(img); ok {
				texts[i] = text
				found[i] = true
			}
		})
		for i, task := range pngTasks {
			if found[i] {
				result.ImageFindings = append(result.ImageFindings, models.ImageFinding{
					File: task.RelativePath,
					Text: texts[i],
				})
			}
		}
		sort.Slice(result.ImageFindings, func(i, j int) bool {
			return result.ImageFindings[i].File < result.ImageFindings[j].File
		})
	}

	if s.store != nil && len(result.JSONFindings) > 0 {
		// History is best-effort; a storage failure never fails the scan.
		_ = s.store.SaveFindings(ctx, archivePath, result.JSONFindings)
	}
	return result, nil
}

// ListImages returns the relative paths of every PNG and JPEG entry, in
// deterministic scan order.
func (s *JobService) ListImages(_ context.Context, archivePath string) ([]string, error) {
	tasks, ws, err := s.extractAndScan(archivePath)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	paths := []string{}
	for _, task := range tasks {
		if task.Type == models.TypePNG || task.Type == models.TypeJPEG {
			paths = append(paths, task.RelativePath)
		}
	}
	return paths, nil
}

func (s *JobService) extractAndScan(archivePath string) ([]models.FileTask, *fileops.Workspace, error) {
	if _, err := os.Stat(archivePath); err != nil {
		return nil, nil, fmt.Errorf("%w: archive not readable: %v", models.ErrInvalidConfig, err)
	}
	name := filepath.Base(archivePath)
	ws, err := fileops.NewWorkspace(name[:len(name)-len(filepath.Ext(name))])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrArchive, err)
	}
	if err := s.archive.Extract(archivePath, ws.ExtractedPath()); err != nil {
		ws.Close()
		return nil, nil, err
	}
	tasks, err := fileops.Scan(ws.ExtractedPath())
	if err != nil {
		ws.Close()
		return nil, nil, fmt.Errorf("%w: %v", models.ErrArchive, err)
	}
	return tasks, ws, nil
}
