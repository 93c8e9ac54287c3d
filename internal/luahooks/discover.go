package luahooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FindHookFiles lists the hook scripts of a document directory: every
// regular file whose base name starts with "hooks" and ends with ".lua".
// os.ReadDir already sorts by name, which defines the load order.
func FindHookFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading hooks directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "hooks") && strings.HasSuffix(name, ".lua") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	return files, nil
}
