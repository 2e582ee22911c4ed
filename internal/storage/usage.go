package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// PathUsage is the on-disk size of one named storage path.
type PathUsage struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// DiskUsage sums the size of each named path (file or directory, recursively).
// Empty or missing paths report 0 bytes. Results are sorted by name.
func DiskUsage(paths map[string]string) ([]PathUsage, int64, error) {
	out := make([]PathUsage, 0, len(paths))
	var total int64
	for name, p := range paths {
		n, err := pathSize(p)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, PathUsage{Name: name, Path: p, Bytes: n})
		total += n
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, total, nil
}

func pathSize(p string) (int64, error) {
	if p == "" {
		return 0, nil
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
