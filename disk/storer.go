package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"impractical.co/resumable"
)

var _ resumable.Storer = &Storer{}

// stagingInfix marks the in-progress files Save writes before renaming
// them into place. List never reports them.
const stagingInfix = ".staging-"

// Storer is a resumable.Storer that keeps blobs as files under a root
// directory. Names are slash-separated keys relative to the root.
type Storer struct {
	root string
}

// NewStorer returns a Storer rooted at dir, creating the directory if it
// doesn't exist yet.
func NewStorer(dir string) (*Storer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating storage root %s: %w", dir, err)
	}
	return &Storer{root: dir}, nil
}

func (s *Storer) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

func (s *Storer) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Storer) Size(ctx context.Context, name string) (int64, error) {
	info, err := os.Stat(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return 0, resumable.ErrFileNotFound
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *Storer) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, resumable.ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Save writes data to a staging file next to the destination, then renames
// it into place, so a reader never observes a partial write and an
// interrupted Save never clobbers what was stored before.
func (s *Storer) Save(ctx context.Context, name string, data io.Reader) (string, error) {
	dst := s.path(name)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("error creating directory for %s: %w", name, err)
	}
	staging := dst + stagingInfix + uuid.NewString()
	f, err := os.Create(staging)
	if err != nil {
		return "", fmt.Errorf("error creating staging file for %s: %w", name, err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		os.Remove(staging)
		return "", fmt.Errorf("error writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(staging)
		return "", fmt.Errorf("error closing staging file for %s: %w", name, err)
	}
	if err := os.Rename(staging, dst); err != nil {
		os.Remove(staging)
		return "", fmt.Errorf("error finalizing %s: %w", name, err)
	}
	return name, nil
}

func (s *Storer) Delete(ctx context.Context, name string) error {
	err := os.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// List returns the stored names beginning with prefix, sorted. The prefix
// may carry a directory component; only that directory is read, and a
// directory that doesn't exist yet lists as empty.
func (s *Storer) List(ctx context.Context, prefix string) ([]string, error) {
	dir, base := path.Split(prefix)
	entries, err := os.ReadDir(filepath.Join(s.root, filepath.FromSlash(dir)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasPrefix(entry.Name(), base) {
			continue
		}
		if strings.Contains(entry.Name(), stagingInfix) {
			continue
		}
		names = append(names, dir+entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
