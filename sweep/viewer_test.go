package sweep

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTempViewer_CopiesBeforeOpening(t *testing.T) {
	src := filepath.Join(t.TempDir(), "plan.pdf")
	if err := os.WriteFile(src, []byte("drawing bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	v := NewTempViewer()
	var launched []string
	v.launch = func(path string) error {
		launched = append(launched, path)
		return nil
	}
	defer v.Cleanup()

	if err := v.CopyAndOpen(src); err != nil {
		t.Fatal(err)
	}
	if len(launched) != 1 {
		t.Fatalf("expected 1 launch, got %d", len(launched))
	}
	if launched[0] == src {
		t.Fatalf("expected a temp copy, not the original path")
	}
	b, err := os.ReadFile(launched[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "drawing bytes" {
		t.Fatalf("unexpected copy content %q", string(b))
	}
}

func TestTempViewer_AvoidsNameCollision(t *testing.T) {
	dir := t.TempDir()
	src1 := filepath.Join(dir, "a", "plan.pdf")
	src2 := filepath.Join(dir, "b", "plan.pdf")
	for _, p := range []string{src1, src2} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(p), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	v := NewTempViewer()
	var launched []string
	v.launch = func(path string) error {
		launched = append(launched, path)
		return nil
	}
	defer v.Cleanup()

	if err := v.CopyAndOpen(src1); err != nil {
		t.Fatal(err)
	}
	if err := v.CopyAndOpen(src2); err != nil {
		t.Fatal(err)
	}
	if len(launched) != 2 {
		t.Fatalf("expected 2 launches, got %d", len(launched))
	}
	if launched[0] == launched[1] {
		t.Fatalf("expected distinct temp copies for colliding names")
	}
	b, err := os.ReadFile(launched[1])
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != src2 {
		t.Fatalf("expected second copy to hold second source content")
	}
}

func TestTempViewer_CleanupRemovesTempDir(t *testing.T) {
	src := filepath.Join(t.TempDir(), "plan.pdf")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	v := NewTempViewer()
	v.launch = func(string) error { return nil }
	if err := v.CopyAndOpen(src); err != nil {
		t.Fatal(err)
	}
	dir := v.dir
	if dir == "" {
		t.Fatalf("expected temp dir created")
	}
	v.Cleanup()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected temp dir removed, got %v", err)
	}
	// Cleanup twice is fine.
	v.Cleanup()
}

func TestTempViewer_MissingSourceErrors(t *testing.T) {
	v := NewTempViewer()
	v.launch = func(string) error { return nil }
	defer v.Cleanup()
	if err := v.CopyAndOpen(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatalf("expected error for missing source file")
	}
}
