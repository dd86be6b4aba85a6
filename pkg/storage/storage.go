// Package storage defines the FileStore interface that snapshot artifacts
// are read from and written to. Backends are the local filesystem and any
// S3-compatible object store.
//
// Writes are all-or-nothing: a reader never observes a partially written
// file. Local writes go to a temporary file that is renamed into place on
// Close; S3 writes are buffered and uploaded with a single PutObject.
package storage

import (
	"context"
	"io"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing. The content becomes visible
	// only when Close returns nil; until then any previous content stays
	// in place. Parent directories are created automatically.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file.
	// If the file does not exist, Delete returns nil (idempotent).
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// Aborter is implemented by writers returned from FileStore.Write that can
// discard their pending content. After Abort, Close is a no-op.
type Aborter interface {
	Abort() error
}

// Abort discards w's pending content if w supports it, and closes it
// otherwise.
func Abort(w io.WriteCloser) error {
	if a, ok := w.(Aborter); ok {
		return a.Abort()
	}
	return w.Close()
}
