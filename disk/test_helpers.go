package disk

import (
	"context"
	"os"
	"sync"

	"impractical.co/resumable"
)

// Factory creates Storers rooted in fresh temporary directories and
// removes them on teardown. It is safe for use from parallel tests.
type Factory struct {
	mu   sync.Mutex
	dirs []string
}

func (f *Factory) NewStorer(ctx context.Context) (resumable.Storer, error) {
	dir, err := os.MkdirTemp("", "resumable-disk-test-")
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.dirs = append(f.dirs, dir)
	f.mu.Unlock()
	return NewStorer(dir)
}

func (f *Factory) TeardownStorers() error {
	for _, dir := range f.dirs {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}
