package parser

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExcludeDirs are build output and dependency directories never scanned
var DefaultExcludeDirs = []string{"target", "build", "out", "node_modules", ".git"}

// DiscoverFiles returns every .java file under root in lexical walk order.
// Hidden directories and excluded directory names are skipped, as are
// entries that cannot be read.
func DiscoverFiles(root string, excludeDirs []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	skip := make(map[string]struct{}, len(DefaultExcludeDirs)+len(excludeDirs))
	for _, d := range DefaultExcludeDirs {
		skip[d] = struct{}{}
	}
	for _, d := range excludeDirs {
		skip[d] = struct{}{}
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if _, ok := skip[name]; ok {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasSuffix(path, ".java") {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}
