package storage

import (
	"context"
	"time"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
)

// JobRecord is the persisted trace of one completed embed job.
type JobRecord struct {
	ID           string    `json:"id"`
	ArchivePath  string    `json:"archivePath"`
	Mode         string    `json:"mode"`
	Obfuscated   bool      `json:"obfuscated"`
	PayloadCount int       `json:"payloadCount"`
	FileCount    int       `json:"fileCount"`
	SkipCount    int       `json:"skipCount"`
	OutputPath   string    `json:"outputPath"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FindingRecord is one recovered watermark from a scan pass.
type FindingRecord struct {
	ArchivePath string    `json:"archivePath"`
	File        string    `json:"file"`
	Value       string    `json:"value"`
	Mode        string    `json:"mode"`
	Decrypted   bool      `json:"decrypted"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store records job history and scan findings. Both drivers are safe for
// concurrent use.
type Store interface {
	SaveJob(ctx context.Context, job JobRecord) error
	SaveFindings(ctx context.Context, archivePath string, findings []models.WatermarkFinding) error
	ListJobs(ctx context.Context, limit int) ([]JobRecord, error)
	ListFindings(ctx context.Context, archivePath string, limit int) ([]FindingRecord, error)
	Close()
}
