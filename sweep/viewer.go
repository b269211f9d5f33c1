package sweep

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Viewer lets the operator inspect an instance before deciding. Opening
// always works on a temp copy so the viewer application never holds a lock on
// the file server original.
type Viewer interface {
	CopyAndOpen(path string) error
	Cleanup()
}

// TempViewer copies files into a private temp directory and hands them to the
// platform's default opener.
type TempViewer struct {
	dir    string
	launch func(path string) error
}

func NewTempViewer() *TempViewer {
	return &TempViewer{launch: launchDefaultViewer}
}

func (v *TempViewer) CopyAndOpen(path string) error {
	dir, err := v.tempDir()
	if err != nil {
		return err
	}
	dst := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(dst); err == nil {
		ext := filepath.Ext(dst)
		name := strings.TrimSuffix(filepath.Base(path), ext)
		dst = filepath.Join(dir, fmt.Sprintf("%s-%d%s", name, time.Now().UnixNano(), ext))
	}
	if err := copyForViewing(path, dst); err != nil {
		return err
	}
	return v.launch(dst)
}

func (v *TempViewer) Cleanup() {
	if v.dir != "" {
		_ = os.RemoveAll(v.dir)
		v.dir = ""
	}
}

func (v *TempViewer) tempDir() (string, error) {
	if v.dir != "" {
		return v.dir, nil
	}
	dir, err := os.MkdirTemp("", "slug-sweep-open-")
	if err != nil {
		return "", err
	}
	v.dir = dir
	return dir, nil
}

func copyForViewing(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(dst)
		return copyErr
	}
	if closeErr != nil {
		_ = os.Remove(dst)
		return closeErr
	}
	return nil
}

func launchDefaultViewer(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", path)
	case "darwin":
		cmd = exec.Command("open", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	// Fire and forget: the session must not block on the viewer process.
	return cmd.Start()
}
