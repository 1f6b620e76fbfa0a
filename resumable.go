package resumable

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
)

// chunkSuffix separates the session filename from the zero-padded chunk
// index in chunk storage keys.
const chunkSuffix = "_part_"

// ErrFileNotFound is returned when a stored blob is requested and can't be
// found.
var ErrFileNotFound = errors.New("file not found")

// ErrInvalidFilename is returned when a client-supplied filename contains a
// path separator.
var ErrInvalidFilename = errors.New("filename contains a path separator")

// ErrIncompleteUpload is returned when a merge is attempted before every
// chunk of the session has been stored. Clients drive the resumable
// protocol by continuing to send chunks and trying again.
var ErrIncompleteUpload = errors.New("upload is not complete")

// Params represents the metadata a resumable-upload client sends alongside
// every chunk request.
type Params struct {
	Filename         string
	TotalSize        int64
	ChunkNumber      int
	CurrentChunkSize int64
	ContentType      string
}

// ParseParams builds a Params from string-keyed request values. Every key
// is optional; missing or unparsable values fall back to their defaults:
// total size 0, chunk number 0, current chunk size 0, and content type
// "text/plain".
func ParseParams(values map[string]string) Params {
	p := Params{
		Filename:    values["resumableFilename"],
		ContentType: values["resumableType"],
	}
	if p.ContentType == "" {
		p.ContentType = "text/plain"
	}
	if n, err := strconv.ParseInt(values["resumableTotalSize"], 10, 64); err == nil {
		p.TotalSize = n
	}
	if n, err := strconv.Atoi(values["resumableChunkNumber"]); err == nil {
		p.ChunkNumber = n
	}
	if n, err := strconv.ParseInt(values["resumableCurrentChunkSize"], 10, 64); err == nil {
		p.CurrentChunkSize = n
	}
	return p
}

// File represents a collected upload.
type File struct {
	// Path is the name the file Storer assigned when the merged file was
	// saved. It can differ from the requested destination when the Storer
	// renamed to avoid a collision.
	Path        string
	Size        int64
	ContentType string
}

// Storer represents a destination for chunk blobs and merged files.
type Storer interface {
	Exists(ctx context.Context, name string) (bool, error)
	Size(ctx context.Context, name string) (int64, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Save(ctx context.Context, name string, data io.Reader) (string, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Namer computes the destination path a merged file should be saved under,
// given the session's derived filename.
type Namer func(filename string) string

// UploadTo returns a Namer that stores merged files under a fixed
// directory.
func UploadTo(dir string) Namer {
	return func(filename string) string {
		return path.Join(dir, filename)
	}
}

// Filename derives the storage key for an upload session from its declared
// total size and raw filename. Sessions with the same name but different
// sizes never share chunks. It returns ErrInvalidFilename when the raw
// filename contains a path separator.
func Filename(p Params) (string, error) {
	if strings.ContainsRune(p.Filename, '/') || strings.ContainsRune(p.Filename, os.PathSeparator) {
		return "", fmt.Errorf("%q: %w", p.Filename, ErrInvalidFilename)
	}
	return fmt.Sprintf("%d_%s", p.TotalSize, p.Filename), nil
}

// ChunkName derives the chunk storage key for the chunk described by p.
// Chunk indexes are zero-padded to four digits so that lexicographic order
// of chunk names equals numeric order.
func ChunkName(p Params) (string, error) {
	filename, err := Filename(p)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s%04d", filename, chunkSuffix, p.ChunkNumber), nil
}
