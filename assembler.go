package resumable

import (
	"context"
	"fmt"
	"io"
	"sort"

	"yall.in"
)

// Config holds the collaborators an Assembler is built from. The embedding
// application resolves storage selection once at startup and passes the
// results in here.
type Config struct {
	// Chunks holds in-progress chunk blobs. When nil, Files is used for
	// chunks as well.
	Chunks Storer
	// Files holds finalized merged files.
	Files Storer
	// UploadTo computes the destination path for merged files. When nil,
	// merged files are saved under their derived filename directly.
	UploadTo Namer
}

// Assembler tracks, stores, and merges upload chunks, reporting when a
// session is complete and delegating all persistence to its Storers.
//
// An Assembler holds no per-session state: every operation reconstructs
// what it needs from the request's Params and from storage, so a single
// Assembler serves any number of concurrent sessions. Two requests racing
// to Collect the same completed session are not coordinated here; the
// calling layer is expected to serialize Collect calls per session.
type Assembler struct {
	chunks   Storer
	files    Storer
	uploadTo Namer
}

// New returns an Assembler using the collaborators in cfg.
func New(cfg Config) *Assembler {
	a := &Assembler{
		chunks:   cfg.Chunks,
		files:    cfg.Files,
		uploadTo: cfg.UploadTo,
	}
	if a.chunks == nil {
		a.chunks = a.files
	}
	if a.uploadTo == nil {
		a.uploadTo = UploadTo("")
	}
	return a
}

// ProcessChunk writes a chunk's data to chunk storage under its derived
// name. A chunk that is already stored gets overwritten; whether the
// overwrite is atomic is up to the storage layer.
//
// If data is also an io.ReadCloser, its Close method will be called by
// ProcessChunk.
func (a *Assembler) ProcessChunk(ctx context.Context, p Params, data io.Reader) error {
	log := yall.FromContext(ctx)

	name, err := ChunkName(p)
	if err != nil {
		return err
	}
	log = log.WithField("resumable.chunk", name)

	// if we can, close the source when we're done
	if rc, ok := data.(io.ReadCloser); ok {
		defer rc.Close()
	}

	if _, err := a.chunks.Save(yall.InContext(ctx, log), name, data); err != nil {
		return fmt.Errorf("error saving chunk to %T: %w", a.chunks, err)
	}
	log.Debug("[resumable] chunk stored")
	return nil
}

// ChunkExists reports whether the chunk described by p is already stored in
// full: the name must exist and the stored size must equal the declared
// current chunk size, so a partial write from an interrupted request
// doesn't pass for a complete chunk. Callers use this to skip re-uploads
// when a client resumes.
func (a *Assembler) ChunkExists(ctx context.Context, p Params) (bool, error) {
	name, err := ChunkName(p)
	if err != nil {
		return false, err
	}
	exists, err := a.chunks.Exists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("error checking %T for chunk %s: %w", a.chunks, name, err)
	}
	if !exists {
		return false, nil
	}
	size, err := a.chunks.Size(ctx, name)
	if err != nil {
		return false, fmt.Errorf("error sizing chunk %s in %T: %w", name, a.chunks, err)
	}
	return size == p.CurrentChunkSize, nil
}

// ChunkNames returns the names of every stored chunk of the session, in
// ascending chunk order.
func (a *Assembler) ChunkNames(ctx context.Context, filename string) ([]string, error) {
	names, err := a.chunks.List(ctx, filename+chunkSuffix)
	if err != nil {
		return nil, fmt.Errorf("error listing chunks in %T: %w", a.chunks, err)
	}
	// chunk indexes are zero-padded, so lexicographic order is chunk order
	sort.Strings(names)
	return names, nil
}

// Size returns the sum of the stored sizes of every chunk of the session.
func (a *Assembler) Size(ctx context.Context, filename string) (int64, error) {
	names, err := a.ChunkNames(ctx, filename)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, name := range names {
		size, err := a.chunks.Size(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("error sizing chunk %s in %T: %w", name, a.chunks, err)
		}
		total += size
	}
	return total, nil
}

// IsComplete reports whether every byte of the session has been stored:
// the sum of stored chunk sizes equals the declared total size.
func (a *Assembler) IsComplete(ctx context.Context, p Params) (bool, error) {
	filename, err := Filename(p)
	if err != nil {
		return false, err
	}
	size, err := a.Size(ctx, filename)
	if err != nil {
		return false, err
	}
	return size == p.TotalSize, nil
}

// ChunkReader returns a reader over the session's chunk bytes in ascending
// chunk order. Chunks are listed and opened lazily, on first read and as
// each chunk is reached, so the reader observes storage as it is while
// being consumed. The reader is finite and not restartable; call
// ChunkReader again to re-list storage.
func (a *Assembler) ChunkReader(ctx context.Context, filename string) io.ReadCloser {
	return &chunkReader{ctx: ctx, assembler: a, filename: filename}
}

type chunkReader struct {
	ctx       context.Context
	assembler *Assembler
	filename  string
	names     []string
	listed    bool
	current   io.ReadCloser
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for {
		if !r.listed {
			names, err := r.assembler.ChunkNames(r.ctx, r.filename)
			if err != nil {
				return 0, err
			}
			r.names = names
			r.listed = true
		}
		if r.current == nil {
			if len(r.names) == 0 {
				return 0, io.EOF
			}
			rc, err := r.assembler.chunks.Open(r.ctx, r.names[0])
			if err != nil {
				return 0, fmt.Errorf("error opening chunk %s: %w", r.names[0], err)
			}
			r.names = r.names[1:]
			r.current = rc
		}
		n, err := r.current.Read(p)
		if err == io.EOF {
			closeErr := r.current.Close()
			r.current = nil
			if closeErr != nil {
				return n, closeErr
			}
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (r *chunkReader) Close() error {
	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	return err
}

// DeleteChunks removes every stored chunk of the session. It is a no-op
// when no chunks exist. Deletion is not transactional; a storage failure
// partway through leaves the remaining chunks behind.
func (a *Assembler) DeleteChunks(ctx context.Context, filename string) error {
	log := yall.FromContext(ctx)
	log = log.WithField("resumable.filename", filename)

	names, err := a.ChunkNames(ctx, filename)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := a.chunks.Delete(ctx, name); err != nil {
			return fmt.Errorf("error deleting chunk %s from %T: %w", name, a.chunks, err)
		}
	}
	log = log.WithField("resumable.chunks", len(names))
	log.Debug("[resumable] chunks deleted")
	return nil
}
