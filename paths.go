package litua

import (
	"path/filepath"
	"strings"
)

// ResolveOutputPath determines the final output path for a processed
// document. An explicit destination wins; otherwise the source extension is
// replaced by ".out".
func ResolveOutputPath(srcPath, destination string) string {
	if destination != "" {
		return destination
	}
	return strings.TrimSuffix(srcPath, filepath.Ext(srcPath)) + ".out"
}

func MustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		panic(err)
	}
	return abs
}
