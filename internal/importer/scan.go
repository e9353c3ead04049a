package importer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ProcessedDir is the subdirectory imported files are moved to.
const ProcessedDir = "processed"

// InputFile is an importable file waiting in the import directory.
type InputFile struct {
	Name   string
	Path   string
	Format string // reader format picked by extension
	Size   int64
}

// Scan lists the files directly inside dir that a reader format handles,
// sorted by name. A missing dir yields no files.
func Scan(dir string) ([]InputFile, error) {
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("listing import dir %s: %w", dir, err)
	}

	var files []InputFile
	for _, e := range entries {
		format, ok := formatByExt[strings.ToLower(filepath.Ext(e.Name()))]
		if e.IsDir() || !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("inspecting %s: %w", e.Name(), err)
		}
		files = append(files, InputFile{
			Name:   e.Name(),
			Path:   filepath.Join(dir, e.Name()),
			Format: format,
			Size:   info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves name from dir into dir/processed and returns its new
// path. An earlier file of the same name stays; the newcomer gets a
// numbered suffix, march.csv becoming march.1.csv.
func MarkProcessed(dir, name string) (string, error) {
	dst := filepath.Join(dir, ProcessedDir)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dst, err)
	}

	target := processedPath(dst, name)
	if err := os.Rename(filepath.Join(dir, name), target); err != nil {
		return "", fmt.Errorf("archiving %s: %w", name, err)
	}
	return target, nil
}

func processedPath(dir, name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	target := filepath.Join(dir, name)
	for n := 1; ; n++ {
		if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
			return target
		}
		target = filepath.Join(dir, fmt.Sprintf("%s.%d%s", stem, n, ext))
	}
}
