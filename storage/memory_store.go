package storage

import (
	"context"
	"sync"
	"time"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
)

// MemoryStore keeps job history in process memory. The single mutex makes
// every operation atomic across both slices.
type MemoryStore struct {
	mu       sync.RWMutex
	jobs     []JobRecord
	findings []FindingRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveJob appends a job record.
func (s *MemoryStore) SaveJob(_ context.Context, job JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// SaveFindings appends scan findings for an archive.
func (s *MemoryStore) SaveFindings(_ context.Context, archivePath string, findings []models.WatermarkFinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, f := range findings {
		s.findings = append(s.findings, FindingRecord{
			ArchivePath: archivePath,
			File:        f.File,
			Value:       f.Value,
			Mode:        f.Mode,
			Decrypted:   f.Decrypted,
			CreatedAt:   now,
		})
	}
	return nil
}

// ListJobs returns the most recent jobs, newest first.
func (s *MemoryStore) ListJobs(_ context.Context, limit int) ([]JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JobRecord, 0, min(limit, len(s.jobs)))
	for i := len(s.jobs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.jobs[i])
	}
	return out, nil
}

// ListFindings returns findings for an archive, newest first; an empty
// archivePath matches everything.
func (s *MemoryStore) ListFindings(_ context.Context, archivePath string, limit int) ([]FindingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []FindingRecord
	for i := len(s.findings) - 1; i >= 0 && len(out) < limit; i-- {
		if archivePath == "" || s.findings[i].ArchivePath == archivePath {
			out = append(out, s.findings[i])
		}
	}
	return out, nil
}

// Close is a no-op for the memory driver.
func (s *MemoryStore) Close() {}
