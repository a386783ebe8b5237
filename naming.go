package geostamp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UniquePath returns path unchanged when nothing exists there, otherwise the
// first free "<name>_<n><ext>" for n = 1, 2, ... in the same directory.
// The check and the later write are not atomic; concurrent writers to the
// same directory can still collide.
func UniquePath(path string) string {
	if !exists(path) {
		return path
	}
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	for n := 1; ; n++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, n, ext))
		if !exists(cand) {
			return cand
		}
	}
}

// exists reports whether path can be stat'ed. Any other failure, such as a
// parent that is a regular file, counts as free so the loop ends and the
// write reports the real error.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
