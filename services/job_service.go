package services

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Wxl-c137/BlindMarkerMaster/archive"
	"github.com/Wxl-c137/BlindMarkerMaster/excel"
	"github.com/Wxl-c137/BlindMarkerMaster/fileops"
	"github.com/Wxl-c137/BlindMarkerMaster/jsonmark"
	"github.com/Wxl-c137/BlindMarkerMaster/models"
	"github.com/Wxl-c137/BlindMarkerMaster/progress"
	"github.com/Wxl-c137/BlindMarkerMaster/security"
	"github.com/Wxl-c137/BlindMarkerMaster/storage"
	"github.com/Wxl-c137/BlindMarkerMaster/watermark"
)

// JobService runs embed and scan jobs. One service instance handles any
// number of jobs; per-job state lives on the stack of the ProcessArchive,
// ScanAll or ListImages call.
type JobService struct {
	archive  *archive.Processor
	embedder *watermark.Embedder
	workers  int
	store    storage.Store
}

// NewJobService builds a service with the worker pool sized to the logical
// CPU count, overridable through BM_WORKERS. The store may be nil.
func NewJobService(store storage.Store) *JobService {
	workers := runtime.NumCPU()
	if raw := os.Getenv("BM_WORKERS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			workers = v
		}
	}
	return &JobService{
		archive:  archive.NewProcessor(),
		embedder: watermark.NewEmbedder(),
		workers:  workers,
		store:    store,
	}
}

// Workers reports the worker pool size.
func (s *JobService) Workers() int { return s.workers }

// ProcessArchive runs one embed job: extract, scan, watermark every eligible
// file once per payload row, and repackage. The returned path is the output
// archive for single-payload jobs and the base output directory for batch
// jobs.
func (s *JobService) ProcessArchive(ctx context.Context, cfg models.JobConfig, emitter *progress.Emitter) (string, error) {
	if emitter == nil {
		emitter = progress.NewEmitter(nil)
	}
	result, err := s.processArchive(ctx, cfg, emitter)
	if err != nil {
		emitter.EmitError(err.Error())
		return "", err
	}
	return result, nil
}

func (s *JobService) processArchive(ctx context.Context, cfg models.JobConfig, emitter *progress.Emitter) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if _, err := os.Stat(cfg.ArchivePath); err != nil {
		return "", fmt.Errorf("%w: archive not readable: %v", models.ErrInvalidConfig, err)
	}

	payloads, err := s.resolvePayloads(cfg)
	if err != nil {
		return "", err
	}
	batch := len(payloads) > 1

	archiveName := filepath.Base(cfg.ArchivePath)
	stem := archiveName[:len(archiveName)-len(filepath.Ext(archiveName))]

	emitter.EmitStatus(progress.StatusInitializing, "creating workspace")
	ws, err := fileops.NewWorkspace(stem)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrArchive, err)
	}
	defer ws.Close()

	emitter.EmitStatus(progress.StatusExtracting, "extracting "+archiveName)
	if err := s.archive.Extract(cfg.ArchivePath, ws.ExtractedPath()); err != nil {
		return "", err
	}

	emitter.EmitStatus(progress.StatusScanning, "scanning extracted files")
	tasks, err := fileops.Scan(ws.ExtractedPath())
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrArchive, err)
	}
	groups := fileops.GroupByType(tasks)

	pngTasks, err := selectImages(groups[models.TypePNG], cfg.SelectedImages)
	if err != nil {
		return "", err
	}

	summary := models.ScanSummary{}
	if cfg.ProcessJSON {
		summary.JSONCount = len(groups[models.TypeJSON])
	}
	if cfg.ProcessVAJ {
		summary.VAJCount = len(groups[models.TypeVAJ])
	}
	if cfg.ProcessVMI {
		summary.VMICount = len(groups[models.TypeVMI])
	}
	if cfg.ProcessImages {
		summary.ImageCount = len(pngTasks) + len(groups[models.TypeJPEG])
	}
	emitter.EmitScanSummary(summary)

	baseOutputDir := cfg.OutputDir
	if baseOutputDir == "" {
		baseOutputDir = filepath.Dir(cfg.ArchivePath)
	}
	outName, degraded := archive.RepackTargetName(archiveName)
	if degraded {
		emitter.EmitStatus(progress.StatusWarning,
			fmt.Sprintf("no writer exists for %s archives; output will be packaged as %s", filepath.Ext(archiveName), outName))
	}

	tally := newSkipTally()
	var finalOutput string

	for idx, payload := range payloads {
		if batch {
			emitter.EmitStatus(progress.StatusProcessing,
				fmt.Sprintf("[%d/%d] processing: %s", idx+1, len(payloads), truncateLabel(payload, 24)))
		} else {
			emitter.EmitStatus(progress.StatusProcessing, "processing files")
		}

		processedDir, err := os.MkdirTemp("", "blindmark-out-")
		if err != nil {
			return "", fmt.Errorf("%w: %v", models.ErrArchive, err)
		}

		handled := newHandledSet()
		batchPos := idx + 1
		batchTotal := len(payloads)

		if cfg.ProcessJSON {
			s.processStructuredGroup(cfg, payload, groups[models.TypeJSON], string(models.TypeJSON),
				processedDir, emitter, batchPos, batchTotal, tally, handled)
		}
		if cfg.ProcessVAJ {
			s.processStructuredGroup(cfg, payload, groups[models.TypeVAJ], string(models.TypeVAJ),
				processedDir, emitter, batchPos, batchTotal, tally, handled)
		}
		if cfg.ProcessVMI {
			s.processStructuredGroup(cfg, payload, groups[models.TypeVMI], string(models.TypeVMI),
				processedDir, emitter, batchPos, batchTotal, tally, handled)
		}
		if cfg.ProcessImages {
			s.processImageGroup(cfg, payload, pngTasks,
				processedDir, emitter, batchPos, batchTotal, tally, handled)
		}

		if err := copyRemaining(tasks, handled, processedDir); err != nil {
			os.RemoveAll(processedDir)
			return "", fmt.Errorf("%w: %v", models.ErrArchive, err)
		}

		folder := security.SanitizePayloadDirName(payload, idx+1)
		outDir := filepath.Join(baseOutputDir, folder)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			os.RemoveAll(processedDir)
			return "", fmt.Errorf("%w: create output dir: %v", models.ErrArchive, err)
		}
		outPath := filepath.Join(outDir, outName)

		emitter.EmitStatus(progress.StatusPackaging, "packaging "+outName)
		if err := s.archive.Repack(processedDir, outPath); err != nil {
			os.RemoveAll(processedDir)
			return "", err
		}
		os.RemoveAll(processedDir)
		finalOutput = outPath

		if batch {
			emitter.EmitStatus(progress.StatusBatchDone, fmt.Sprintf("completed %d/%d", idx+1, len(payloads)))
		}
	}

	result := finalOutput
	if batch {
		result = baseOutputDir
	}

	jobSummary := &models.JobSummary{
		ArchiveCount: len(payloads),
		FileCount:    len(tasks),
		SkipCount:    tally.total,
		OutputPath:   result,
	}
	if len(tally.skips) > 0 {
		jobSummary.Skips = make(map[models.SkipReason]int, len(tally.skips))
		for reason, n := range tally.skips {
			jobSummary.Skips[models.SkipReason(reason)] = n
		}
	}
	emitter.EmitComplete(result, jobSummary)

	if s.store != nil {
		record := storage.JobRecord{
			ID:           uuid.NewString(),
			ArchivePath:  cfg.ArchivePath,
			Mode:         string(cfg.Mode),
			Obfuscated:   cfg.Obfuscate,
			PayloadCount: len(payloads),
			FileCount:    len(tasks),
			SkipCount:    tally.total,
			OutputPath:   result,
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.store.SaveJob(ctx, record); err != nil {
			// History is best-effort; the job itself succeeded.
			emitter.EmitStatus(progress.StatusWarning, "job history not recorded: "+err.Error())
		}
	}
	return result, nil
}

func (s *JobService) resolvePayloads(cfg models.JobConfig) ([]string, error) {
	var payloads []string
	switch cfg.Source.Type {
	case models.SourceSingleText:
		payloads = []string{cfg.Source.Content}
	case models.SourceExcelFile:
		rows, err := excel.ReadPayloadColumn(cfg.Source.Path)
		if err != nil {
			return nil, err
		}
		payloads = rows
	}
	// Each unique payload produces one output archive; duplicates would
	// overwrite their own output directory.
	seen := make(map[string]bool, len(payloads))
	unique := payloads[:0]
	for _, p := range payloads {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}
	if len(unique) == 0 {
		return nil, fmt.Errorf("%w: no payload texts", models.ErrPayload)
	}
	return unique, nil
}

// selectImages enforces the image-selection subset rule.
func selectImages(pngTasks []models.FileTask, selected []string) ([]models.FileTask, error) {
	if len(selected) == 0 {
		return pngTasks, nil
	}
	byPath := make(map[string]models.FileTask, len(pngTasks))
	for _, t := range pngTasks {
		byPath[t.RelativePath] = t
	}
	out := make([]models.FileTask, 0, len(selected))
	for _, rel := range selected {
		t, ok := byPath[rel]
		if !ok {
			return nil, fmt.Errorf("%w: selected image %q is not a PNG member of the archive", models.ErrInvalidConfig, rel)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *JobService) processStructuredGroup(
	cfg models.JobConfig, payload string, tasks []models.FileTask, typeName string,
	processedDir string, emitter *progress.Emitter, batchPos, batchTotal int,
	tally *skipTally, handled *handledSet,
) {
	var counter atomic.Int64
	total := len(tasks)
	runParallel(s.workers, total, func(i int) {
		task := tasks[i]
		pos := int(counter.Add(1))
		emitter.EmitDetail(batchPos, batchTotal, typeName, pos, total, filepath.Base(task.RelativePath))

		data, err := os.ReadFile(task.TempPath)
		if err != nil {
			tally.add(string(models.SkipReadFailure))
			emitter.RecordSkip(models.SkipReadFailure)
			return
		}
		marked, err := jsonmark.Embed(data, payload, cfg.Field(), cfg.Mode, cfg.AESKey, cfg.Obfuscate)
		if err != nil {
			tally.add(string(models.SkipInvalidJSON))
			emitter.RecordSkip(models.SkipInvalidJSON)
			return
		}
		if err := writeProcessed(processedDir, task.RelativePath, marked); err != nil {
			tally.add(string(models.SkipWriteFailure))
			emitter.RecordSkip(models.SkipWriteFailure)
			return
		}
		handled.mark(task.RelativePath)
	})
}

func (s *JobService) processImageGroup(
	cfg models.JobConfig, payload string, tasks []models.FileTask,
	processedDir string, emitter *progress.Emitter, batchPos, batchTotal int,
	tally *skipTally, handled *handledSet,
) {
	var counter atomic.Int64
	total := len(tasks)
	runParallel(s.workers, total, func(i int) {
		task := tasks[i]
		pos := int(counter.Add(1))
		filename := filepath.Base(task.RelativePath)
		emitter.EmitDetail(batchPos, batchTotal, "image", pos, total, filename)
		emitter.EmitImageProgress(pos, total, filename)

		img, err := decodePNG(task.TempPath)
		if err != nil {
			tally.add(string(models.SkipDecodeFailure))
			emitter.RecordSkip(models.SkipDecodeFailure)
			return
		}
		marked, err := s.embedder.EmbedText(img, payload, cfg.Strength, cfg.FastMode)
		if err != nil {
			tally.add(string(models.SkipImageTooSmall))
			emitter.RecordSkip(models.SkipImageTooSmall)
			return
		}
		if err := writePNG(processedDir, task.RelativePath, marked); err != nil {
			tally.add(string(models.SkipEncodeFailure))
			emitter.RecordSkip(models.SkipEncodeFailure)
			return
		}
		emitter.RecordImageMarked()
		handled.mark(task.RelativePath)
	})
}

// handledSet tracks which relative paths were written by a codec, so the
// copy-through pass only touches the rest.
type handledSet struct {
	mu  sync.Mutex
	set map[string]bool
}

func newHandledSet() *handledSet {
	return &handledSet{set: make(map[string]bool)}
}

func (h *handledSet) mark(rel string) {
	h.mu.Lock()
	h.set[rel] = true
	h.mu.Unlock()
}

func (h *handledSet) has(rel string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.set[rel]
}

// copyRemaining copies every unprocessed file from the scratch tree into the
// processed tree byte for byte, preserving modes. JPEG and unclassified
// files always travel this path, as do files whose codec pass failed.
func copyRemaining(tasks []models.FileTask, handled *handledSet, processedDir string) error {
	for _, task := range tasks {
		if handled.has(task.RelativePath) {
			continue
		}
		dest := filepath.Join(processedDir, filepath.FromSlash(task.RelativePath))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := copyFile(task.TempPath, dest); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeProcessed(processedDir, rel string, data []byte) error {
	dest := filepath.Join(processedDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrImage, err)
	}
	return img, nil
}

func writePNG(processedDir, rel string, img image.Image) error {
	dest := filepath.Join(processedDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func truncateLabel(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
