// Package workdir resolves the directory that holds the .shelf catalog,
// supporting redirection via .shelf-root files.
package workdir

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	dataDir       = ".shelf"
	shelfRootFile = ".shelf-root"
)

// ResolveBaseDir walks up from start to the nearest directory that has a
// .shelf directory or a .shelf-root file. A .shelf-root file holds the path
// of another base directory (relative paths are taken from the file's
// directory), so several checkouts can share one catalog. With no marker
// anywhere above, start is returned unchanged and .shelf is created there.
func ResolveBaseDir(start string) string {
	dir := filepath.Clean(start)
	for {
		if target, ok := readRootFile(dir); ok {
			return target
		}
		if info, err := os.Stat(filepath.Join(dir, dataDir)); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

func readRootFile(dir string) (string, bool) {
	content, err := os.ReadFile(filepath.Join(dir, shelfRootFile))
	if err != nil {
		return "", false
	}
	target := strings.TrimSpace(string(content))
	if target == "" {
		return "", false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	return filepath.Clean(target), true
}
