package progress

import (
	"sync"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
)

// Event topics, matching the external interface names.
const (
	TopicStatus         = "watermark-status"
	TopicProgress       = "watermark-progress"
	TopicScanSummary    = "watermark-scan-summary"
	TopicDetailProgress = "watermark-detail-progress"
)

// Status codes carried by TopicStatus events.
const (
	StatusIdle         = "idle"
	StatusInitializing = "initializing"
	StatusExtracting   = "extracting"
	StatusScanning     = "scanning"
	StatusProcessing   = "processing"
	StatusPackaging    = "packaging"
	StatusComplete     = "complete"
	StatusError        = "error"
	StatusBatchDone    = "batch_item_done"
	StatusWarning      = "warning"
)

// StatusEvent is an overall state change. Summary is attached to the
// terminal complete event only.
type StatusEvent struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Summary *models.JobSummary `json:"summary,omitempty"`
}

// ImageProgressEvent reports one image task starting.
type ImageProgressEvent struct {
	CurrentFile int     `json:"currentFile"`
	TotalFiles  int     `json:"totalFiles"`
	Filename    string  `json:"filename"`
	Progress    float32 `json:"progress"`
	Status      string  `json:"status"`
}

// DetailProgressEvent is emitted before each file begins processing.
type DetailProgressEvent struct {
	BatchCurrent int    `json:"batchCurrent"`
	BatchTotal   int    `json:"batchTotal"`
	FileType     string `json:"fileType"`
	TypeCurrent  int    `json:"typeCurrent"`
	TypeTotal    int    `json:"typeTotal"`
	Filename     string `json:"filename"`
}

// Sink consumes emitted events. Implementations receive the payload structs
// as Go values; the Emitter holds its mutex around each Emit call, so a sink
// behind one Emitter sees one call at a time.
type Sink interface {
	Emit(topic string, payload any)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(topic string, payload any)

// Emit implements Sink.
func (f SinkFunc) Emit(topic string, payload any) { f(topic, payload) }

// Emitter publishes job events to a sink. Workers publish concurrently; the
// mutex makes each emission atomic so the sink never sees interleaved or
// reordered writes from a single caller's perspective.
type Emitter struct {
	mu   sync.Mutex
	sink Sink
}

// NewEmitter wraps a sink; a nil sink drops all events.
func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink}
}

func (e *Emitter) emit(topic string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sink != nil {
		e.sink.Emit(topic, payload)
	}
}

// EmitStatus publishes an overall status change.
func (e *Emitter) EmitStatus(status, message string) {
	e.emit(TopicStatus, StatusEvent{Status: status, Message: message})
}

// EmitScanSummary publishes the per-type counts, once per job after
// scanning.
func (e *Emitter) EmitScanSummary(s models.ScanSummary) {
	e.emit(TopicScanSummary, s)
}

// EmitDetail publishes a per-file progress event and bumps the processed
// counter for its type.
func (e *Emitter) EmitDetail(batchCurrent, batchTotal int, fileType string, typeCurrent, typeTotal int, filename string) {
	filesProcessed.WithLabelValues(fileType).Inc()
	e.emit(TopicDetailProgress, DetailProgressEvent{
		BatchCurrent: batchCurrent,
		BatchTotal:   batchTotal,
		FileType:     fileType,
		TypeCurrent:  typeCurrent,
		TypeTotal:    typeTotal,
		Filename:     filename,
	})
}

// EmitImageProgress publishes an image-specific progress event.
func (e *Emitter) EmitImageProgress(current, total int, filename string) {
	var frac float32
	if total > 0 {
		frac = float32(current) / float32(total)
	}
	e.emit(TopicProgress, ImageProgressEvent{
		CurrentFile: current,
		TotalFiles:  total,
		Filename:    filename,
		Progress:    frac,
		Status:      StatusProcessing,
	})
}

// EmitComplete publishes the terminal success status with the job summary.
func (e *Emitter) EmitComplete(outputPath string, summary *models.JobSummary) {
	jobsCompleted.Inc()
	e.emit(TopicStatus, StatusEvent{
		Status:  StatusComplete,
		Message: "processing complete: " + outputPath,
		Summary: summary,
	})
}

// EmitError publishes the terminal failure status.
func (e *Emitter) EmitError(message string) {
	jobsFailed.Inc()
	e.EmitStatus(StatusError, message)
}

// RecordImageMarked bumps the marked-images counter.
func (e *Emitter) RecordImageMarked() {
	imagesMarked.Inc()
}

// RecordSkip bumps the skip counter for a reason.
func (e *Emitter) RecordSkip(reason models.SkipReason) {
	filesSkipped.WithLabelValues(string(reason)).Inc()
}
