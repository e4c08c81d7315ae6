package fileops

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
)

func TestClassify(t *testing.T) {
	cases := map[string]models.FileType{
		"a.json":      models.TypeJSON,
		"b.JSON":      models.TypeJSON,
		"c.vaj":       models.TypeVAJ,
		"d.vmi":       models.TypeVMI,
		"e.png":       models.TypePNG,
		"f.PNG":       models.TypePNG,
		"g.jpg":       models.TypeJPEG,
		"h.jpeg":      models.TypeJPEG,
		"i.txt":       models.TypeOther,
		"noext":       models.TypeOther,
		"dir/k.json":  models.TypeJSON,
		"weird.json5": models.TypeOther,
	}
	for name, want := range cases {
		if got := Classify(name); got != want {
			t.Errorf("Classify(%q) = %s, want %s", name, got, want)
		}
	}
}

func writeTree(t *testing.T, root string, names []string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScanDeterministicOrder(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, []string{
		"Zeta.json",
		"alpha.png",
		"sub/Beta.vaj",
		"sub/gamma.txt",
		"Alpha.png",
	})

	first, err := Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	second, err := Scan(root)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("two scans of the same tree differ")
	}

	var rels []string
	for _, task := range first {
		rels = append(rels, task.RelativePath)
	}
	// Lowercase sort key first, original casing as tie-break.
	want := []string{"Alpha.png", "alpha.png", "sub/Beta.vaj", "sub/gamma.txt", "Zeta.json"}
	if !reflect.DeepEqual(rels, want) {
		t.Fatalf("scan order %v, want %v", rels, want)
	}
}

func TestScanClassifiesTasks(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, []string{"m.json", "p.png", "q.jpeg", "r.bin"})

	tasks, err := Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	groups := GroupByType(tasks)
	if len(groups[models.TypeJSON]) != 1 || len(groups[models.TypePNG]) != 1 ||
		len(groups[models.TypeJPEG]) != 1 || len(groups[models.TypeOther]) != 1 {
		t.Fatalf("unexpected grouping: %v", groups)
	}
	if groups[models.TypePNG][0].TempPath == "" {
		t.Fatal("temp path not recorded")
	}
}

func TestWorkspaceLifecycle(t *testing.T) {
	ws, err := NewWorkspace("my archive!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := os.Stat(ws.ExtractedPath()); err != nil {
		t.Fatalf("extracted path missing: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(ws.Root()); !os.IsNotExist(err) {
		t.Fatal("workspace not removed")
	}
}
