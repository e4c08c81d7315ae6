package services

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
	"github.com/Wxl-c137/BlindMarkerMaster/security"
	"github.com/Wxl-c137/BlindMarkerMaster/storage"
)

// markArchive runs an embed job and returns the watermarked archive path.
func markArchive(t *testing.T, cfg models.JobConfig) string {
	t.Helper()
	jobs := NewJobService(nil)
	result, err := jobs.ProcessArchive(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("embed job: %v", err)
	}
	return result
}

func TestScanAllRecoversBothKinds(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pkg.zip")
	buildZip(t, src, map[string][]byte{
		"img.png":   makePNG(t, 192, 192, 61),
		"meta.json": []byte(`{"name": "pkg"}`),
	})

	cfg := singleTextConfig(src, "found-me")
	cfg.OutputDir = filepath.Join(dir, "out")
	marked := markArchive(t, cfg)

	store := storage.NewMemoryStore()
	jobs := NewJobService(store)
	result, err := jobs.ScanAll(context.Background(), marked, "", true)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if result.ScannedPNGCount != 1 {
		t.Fatalf("scanned %d PNGs, want 1", result.ScannedPNGCount)
	}
	if len(result.JSONFindings) != 1 {
		t.Fatalf("json findings: %+v", result.JSONFindings)
	}
	jf := result.JSONFindings[0]
	if jf.File != "meta.json" || jf.Value != "found-me" || jf.Mode != "plaintext" || !jf.Decrypted {
		t.Fatalf("json finding: %+v", jf)
	}
	if len(result.ImageFindings) != 1 {
		t.Fatalf("image findings: %+v", result.ImageFindings)
	}
	imf := result.ImageFindings[0]
	if imf.File != "img.png" || imf.Text != security.MD5Hex("found-me") {
		t.Fatalf("image finding: %+v", imf)
	}

	recorded, err := store.ListFindings(context.Background(), marked, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(recorded) != 1 {
		t.Fatalf("history rows: %+v", recorded)
	}
}

func TestScanAllAESKeyHandling(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pkg.zip")
	buildZip(t, src, map[string][]byte{
		"c.json": []byte(`{"data": [1, 2]}`),
	})

	cfg := singleTextConfig(src, "secret")
	cfg.Mode = models.ModeAES
	cfg.AESKey = "pw"
	cfg.ProcessImages = false
	cfg.OutputDir = filepath.Join(dir, "out")
	marked := markArchive(t, cfg)

	jobs := NewJobService(nil)

	withKey, err := jobs.ScanAll(context.Background(), marked, "pw", false)
	if err != nil {
		t.Fatalf("scan with key: %v", err)
	}
	if len(withKey.JSONFindings) != 1 {
		t.Fatalf("findings: %+v", withKey.JSONFindings)
	}
	if f := withKey.JSONFindings[0]; f.Value != "secret" || f.Mode != "aes" || !f.Decrypted {
		t.Fatalf("finding with key: %+v", f)
	}

	wrongKey, err := jobs.ScanAll(context.Background(), marked, "wrong", false)
	if err != nil {
		t.Fatalf("scan with wrong key: %v", err)
	}
	if f := wrongKey.JSONFindings[0]; f.Decrypted || f.Mode != "aes" {
		t.Fatalf("finding with wrong key: %+v", f)
	}
	if wrongKey.JSONFindings[0].Value == "secret" {
		t.Fatal("wrong key must not reveal the plaintext")
	}
}

func TestScanAllCleanArchive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clean.zip")
	buildZip(t, src, map[string][]byte{
		"plain.json": []byte(`{"a": 1}`),
		"img.png":    makePNG(t, 192, 192, 67),
	})

	jobs := NewJobService(nil)
	result, err := jobs.ScanAll(context.Background(), src, "", true)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.JSONFindings) != 0 || len(result.ImageFindings) != 0 {
		t.Fatalf("clean archive produced findings: %+v", result)
	}
	if result.ScannedPNGCount != 1 {
		t.Fatalf("scanned %d PNGs, want 1", result.ScannedPNGCount)
	}
}

func TestScanAllSkipImages(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pkg.zip")
	buildZip(t, src, map[string][]byte{
		"img.png": makePNG(t, 192, 192, 71),
	})

	jobs := NewJobService(nil)
	result, err := jobs.ScanAll(context.Background(), src, "", false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.ScannedPNGCount != 0 || len(result.ImageFindings) != 0 {
		t.Fatalf("image pass ran despite scan_images=false: %+v", result)
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pkg.zip")
	buildZip(t, src, map[string][]byte{
		"z.png":     makePNG(t, 64, 64, 73),
		"a.jpg":     []byte("\xff\xd8\xff"),
		"sub/b.png": makePNG(t, 64, 64, 74),
		"notes.txt": []byte("x"),
		"data.json": []byte(`{}`),
	})

	jobs := NewJobService(nil)
	paths, err := jobs.ListImages(context.Background(), src)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"a.jpg", "sub/b.png", "z.png"}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("paths %v, want %v", paths, want)
	}
}
