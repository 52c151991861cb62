package api

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const displayTimeLayout = "2006-01-02 15:04:05"

var (
	errInvalidFileName = errors.New("invalid file name")
	errNotRegularFile  = errors.New("not a regular file")
)

type fileEntry struct {
	Name        string
	ModTime     time.Time
	Size        int64
	FormatMtime string
	FormatSize  string
}

// resolveFileName maps a request file name to a path directly inside root.
func resolveFileName(root, name string) (string, error) {
	if name == "" || name == "." || name == ".." {
		return "", errInvalidFileName
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", errInvalidFileName
	}
	if !filepath.IsLocal(name) || filepath.Base(name) != name {
		return "", errInvalidFileName
	}
	joined := filepath.Join(root, name)
	rel, err := filepath.Rel(root, joined)
	if err != nil || rel != name {
		return "", errInvalidFileName
	}
	return joined, nil
}

// statRegularFile returns an error unless path exists and is a regular file.
func statRegularFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), errNotRegularFile)
	}
	return info, nil
}

// listFiles returns the regular files of root, newest first.
func listFiles(root string) ([]fileEntry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", root, err)
	}

	files := make([]fileEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, fileEntry{
			Name:        entry.Name(),
			ModTime:     info.ModTime(),
			Size:        info.Size(),
			FormatMtime: info.ModTime().Local().Format(displayTimeLayout),
			FormatSize:  humanize.IBytes(uint64(info.Size())),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name < files[j].Name
		}
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}
