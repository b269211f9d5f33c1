package sweep

import (
	"errors"
	"fmt"
	"strings"
)

// PathTranslator converts between operator paths (under the file server
// mount, in the mount's native separator style) and the archive's canonical
// form (forward-slash directories relative to the server root).
//
// The mount's style decides the separator for operator-facing paths, not the
// host platform: a sweep can run on Linux against a Windows-lettered mount
// recorded verbatim in config.
type PathTranslator struct {
	mount string
	sep   string
}

func NewPathTranslator(mount string) (*PathTranslator, error) {
	m := strings.TrimSpace(mount)
	if m == "" {
		return nil, errors.New("mount path is required")
	}
	sep := "/"
	if isWindowsStyle(m) {
		sep = `\`
	}
	m = strings.TrimRight(m, `\/`)
	if m == "" {
		return nil, fmt.Errorf("mount path %q has no usable root", mount)
	}
	return &PathTranslator{mount: m, sep: sep}, nil
}

// Mount returns the mount prefix as configured, without a trailing separator.
func (t *PathTranslator) Mount() string { return t.mount }

// ToServerDirs strips the mount prefix from an operator path and returns the
// remainder in canonical forward-slash form. The path must name a directory
// strictly below the mount.
func (t *PathTranslator) ToServerDirs(operatorPath string) (string, error) {
	p := strings.TrimSpace(operatorPath)
	if p == "" {
		return "", errors.New("location path is required")
	}
	norm := strings.ReplaceAll(p, `\`, "/")
	mountNorm := strings.ReplaceAll(t.mount, `\`, "/")
	if norm != mountNorm && !strings.HasPrefix(norm, mountNorm+"/") {
		return "", fmt.Errorf("path %q is not under the file server mount %q", operatorPath, t.mount)
	}
	rel := strings.Trim(strings.TrimPrefix(norm, mountNorm), "/")
	if rel == "" {
		return "", fmt.Errorf("path %q names the mount root; sweep a directory below it", operatorPath)
	}
	return rel, nil
}

// InstancePath joins canonical server directories and a filename back onto
// the mount, using the mount's separator style.
func (t *PathTranslator) InstancePath(serverDirs, filename string) string {
	segs := []string{t.mount}
	for _, part := range strings.Split(strings.Trim(serverDirs, "/"), "/") {
		if part != "" {
			segs = append(segs, part)
		}
	}
	if filename != "" {
		segs = append(segs, filename)
	}
	return strings.Join(segs, t.sep)
}

func isWindowsStyle(p string) bool {
	if strings.HasPrefix(p, `\\`) {
		return true
	}
	if len(p) >= 2 && p[1] == ':' {
		c := p[0]
		return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	}
	return false
}

// FormatSize renders a byte count the way the review table shows it.
func FormatSize(n int64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case n < kb:
		return fmt.Sprintf("%d B", n)
	case n < mb:
		return fmt.Sprintf("%.0f KB", float64(n)/kb)
	case n < gb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	default:
		return fmt.Sprintf("%.2f GB", float64(n)/gb)
	}
}
