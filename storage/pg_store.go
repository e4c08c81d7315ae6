package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
)

// PGStore persists job history in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects and initializes the schema.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PGStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS bm_jobs (
  id TEXT PRIMARY KEY,
  archive_path TEXT NOT NULL,
  mode TEXT NOT NULL,
  obfuscated BOOLEAN NOT NULL DEFAULT FALSE,
  payload_count INT NOT NULL,
  file_count INT NOT NULL,
  skip_count INT NOT NULL,
  output_path TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS bm_findings (
  id BIGSERIAL PRIMARY KEY,
  archive_path TEXT NOT NULL,
  file TEXT NOT NULL,
  value TEXT NOT NULL,
  mode TEXT NOT NULL,
  decrypted BOOLEAN NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS bm_findings_archive_idx ON bm_findings (archive_path, created_at DESC);
`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// SaveJob inserts a job record.
func (s *PGStore) SaveJob(ctx context.Context, job JobRecord) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO bm_jobs (id, archive_path, mode, obfuscated, payload_count, file_count, skip_count, output_path, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`,
		job.ID, job.ArchivePath, job.Mode, job.Obfuscated,
		job.PayloadCount, job.FileCount, job.SkipCount, job.OutputPath, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// SaveFindings inserts scan findings for an archive.
func (s *PGStore) SaveFindings(ctx context.Context, archivePath string, findings []models.WatermarkFinding) error {
	now := time.Now().UTC()
	for _, f := range findings {
		if _, err := s.pool.Exec(ctx, `
INSERT INTO bm_findings (archive_path, file, value, mode, decrypted, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
			archivePath, f.File, f.Value, f.Mode, f.Decrypted, now); err != nil {
			return fmt.Errorf("save finding: %w", err)
		}
	}
	return nil
}

// ListJobs returns the most recent jobs, newest first.
func (s *PGStore) ListJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, archive_path, mode, obfuscated, payload_count, file_count, skip_count, output_path, created_at
FROM bm_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var j JobRecord
		if err := rows.Scan(&j.ID, &j.ArchivePath, &j.Mode, &j.Obfuscated,
			&j.PayloadCount, &j.FileCount, &j.SkipCount, &j.OutputPath, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ListFindings returns findings for an archive, newest first; an empty
// archivePath matches everything.
func (s *PGStore) ListFindings(ctx context.Context, archivePath string, limit int) ([]FindingRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT archive_path, file, value, mode, decrypted, created_at
FROM bm_findings
WHERE $1 = '' OR archive_path = $1
ORDER BY created_at DESC LIMIT $2`, archivePath, limit)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer rows.Close()

	var out []FindingRecord
	for rows.Next() {
		var f FindingRecord
		if err := rows.Scan(&f.ArchivePath, &f.File, &f.Value, &f.Mode, &f.Decrypted, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan finding row: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (s *PGStore) Close() {
	s.pool.Close()
}
