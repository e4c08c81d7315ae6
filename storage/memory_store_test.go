package storage

import (
	"context"
	"testing"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
)

func TestMemoryStoreJobs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"job-1", "job-2", "job-3"} {
		if err := s.SaveJob(ctx, JobRecord{ID: id, ArchivePath: "/a.zip", Mode: "md5"}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	jobs, err := s.ListJobs(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].ID != "job-3" {
		t.Fatalf("newest first expected, got %s", jobs[0].ID)
	}
	if jobs[0].CreatedAt.IsZero() {
		t.Fatal("CreatedAt not stamped")
	}
}

func TestMemoryStoreFindings(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.SaveFindings(ctx, "/a.zip", []models.WatermarkFinding{
		{File: "meta.json", Value: "v1", Mode: "plaintext", Decrypted: true},
		{File: "scene.vaj", Value: "v2", Mode: "aes", Decrypted: false},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveFindings(ctx, "/b.zip", []models.WatermarkFinding{
		{File: "x.json", Value: "v3", Mode: "md5", Decrypted: true},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	forA, err := s.ListFindings(ctx, "/a.zip", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(forA) != 2 {
		t.Fatalf("got %d findings for /a.zip, want 2", len(forA))
	}

	all, err := s.ListFindings(ctx, "", 10)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d findings total, want 3", len(all))
	}
}
