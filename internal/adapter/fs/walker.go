package fs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"docrag/internal/port"
)

type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// Walk returns the files under root matching an include pattern and no
// exclude pattern, sorted by path. Patterns match slash-separated paths
// relative to root. A root that is a regular file is returned as is. Entries
// below root that cannot be read are returned with Err set and, for
// directories, not descended into.
func (w *Walker) Walk(root string) ([]port.SourceFile, error) {
	var files []port.SourceFile

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []port.SourceFile{sourceFile(root, info)}, nil
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if walkErr != nil {
			isDir := info != nil && info.IsDir()
			if !w.shouldExclude(relPath) && (isDir || w.shouldInclude(relPath)) {
				files = append(files, port.SourceFile{Path: path, Name: filepath.Base(path), Err: walkErr})
			}
			if isDir {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if relPath != "." && (w.shouldExclude(relPath) || w.shouldExclude(relPath+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		if w.shouldInclude(relPath) && !w.shouldExclude(relPath) {
			files = append(files, sourceFile(path, info))
		}

		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

func sourceFile(path string, info os.FileInfo) port.SourceFile {
	return port.SourceFile{
		Path:    path,
		Name:    info.Name(),
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// ReadFile returns the file contents as UTF-8. Invalid sequences are
// replaced with U+FFFD so chunk offsets stay well defined.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), "�"), nil
	}
	return string(data), nil
}
