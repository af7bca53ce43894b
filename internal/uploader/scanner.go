package uploader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/parnexcodes/ddl/internal/logging"
)

// FileInfo describes a file or folder about to be uploaded
type FileInfo struct {
	Path     string
	Name     string
	Size     int64
	Modified time.Time
	IsDir    bool
	Files    int
	Folders  int
}

// Measure stats path. For folders it walks the tree and sums the sizes of
// regular files; the root itself counts as one folder.
func Measure(ctx context.Context, path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	fileInfo := FileInfo{
		Path:     path,
		Name:     info.Name(),
		Size:     info.Size(),
		Modified: info.ModTime(),
		IsDir:    info.IsDir(),
	}
	if !info.IsDir() {
		fileInfo.Files = 1
		return fileInfo, nil
	}

	fileInfo.Size = 0
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			fileInfo.Folders++
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		entry, err := d.Info()
		if err != nil {
			return err
		}
		logging.FileFound(p, entry.Size(), false)
		fileInfo.Files++
		fileInfo.Size += entry.Size()
		return nil
	})
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to scan path %s: %w", path, err)
	}

	return fileInfo, nil
}
