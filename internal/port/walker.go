package port

import "time"

type FileWalker interface {
	Walk(root string) ([]SourceFile, error)
}

type SourceFile struct {
	Path    string
	Name    string
	ModTime time.Time
	Size    int64
	// Err is set for an entry the walker could not read. Such entries carry
	// only Path and Name.
	Err error
}
