package resumable

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"impractical.co/resumable/magicnumber"
	"yall.in"
)

// CollectOptions represents configuration parameters for optional behaviors
// of Collect.
type CollectOptions struct {
	// AcceptedMIMEs, if set, will only collect files with a detected MIME
	// type in the list.
	AcceptedMIMEs []string
}

// MergedFile concatenates the session's chunks, in chunk order, into a
// freshly allocated temporary file, and returns the file positioned at its
// start. It returns ErrIncompleteUpload unless the session is complete.
// The caller owns the file and is responsible for closing and removing it.
func (a *Assembler) MergedFile(ctx context.Context, p Params) (*os.File, error) {
	log := yall.FromContext(ctx)

	filename, err := Filename(p)
	if err != nil {
		return nil, err
	}
	log = log.WithField("resumable.filename", filename)
	ctx = yall.InContext(ctx, log)

	complete, err := a.IsComplete(ctx, p)
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, fmt.Errorf("%s: %w", filename, ErrIncompleteUpload)
	}

	tmp, err := os.CreateTemp("", "resumable-merge-")
	if err != nil {
		return nil, fmt.Errorf("error creating merge file: %w", err)
	}

	src := a.ChunkReader(ctx, filename)
	defer src.Close()

	size, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("error merging chunks for %s: %w", filename, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("error rewinding merge file for %s: %w", filename, err)
	}

	log = log.WithField("resumable.size", size)
	log.Debug("[resumable] chunks merged")
	return tmp, nil
}

// Collect merges a completed session, saves the result to file storage
// under the destination the Namer computes, and deletes the session's
// chunks. The returned File carries the name file storage assigned, which
// can differ from the requested destination when it was already taken.
//
// The merged data's MIME type is detected while saving; when detection
// finds nothing the session's declared content type is kept. If opts sets
// AcceptedMIMEs, a merged file whose detected type isn't in the list is
// not kept, and magicnumber.ErrUnsupportedFile is returned.
//
// Collect is not idempotent: once it succeeds the chunks are gone, and a
// second call returns ErrIncompleteUpload. A session with no stored chunks
// at all is never collectable, even when its declared total size is zero.
func (a *Assembler) Collect(ctx context.Context, p Params, opts CollectOptions) (File, error) {
	log := yall.FromContext(ctx)
	log = log.WithField("resumable.storer", fmt.Sprintf("%T", a.files))

	filename, err := Filename(p)
	if err != nil {
		return File{}, err
	}
	log = log.WithField("resumable.filename", filename)
	ctx = yall.InContext(ctx, log)

	names, err := a.ChunkNames(ctx, filename)
	if err != nil {
		return File{}, err
	}
	if len(names) == 0 {
		return File{}, fmt.Errorf("%s has no chunks: %w", filename, ErrIncompleteUpload)
	}

	merged, err := a.MergedFile(ctx, p)
	if err != nil {
		return File{}, err
	}
	defer func() {
		merged.Close()
		os.Remove(merged.Name())
	}()

	dest, err := availableName(ctx, a.files, a.uploadTo(filename))
	if err != nil {
		return File{}, err
	}
	log = log.WithField("resumable.destination", dest)
	ctx = yall.InContext(ctx, log)

	// sniff the content type as the bytes stream into storage
	detector := &magicnumber.Detector{AcceptedMIMEs: opts.AcceptedMIMEs}

	log.Debug("[resumable] saving merged file")
	assigned, err := a.files.Save(ctx, dest, io.TeeReader(merged, detector))
	if err != nil {
		return File{}, fmt.Errorf("error saving merged file to %T: %w", a.files, err)
	}
	if err := detector.Close(); err != nil {
		log.Debug("[resumable] merged file type not accepted, deleting")
		if delErr := a.files.Delete(ctx, assigned); delErr != nil {
			return File{}, fmt.Errorf("error deleting rejected file %s: %w", assigned, delErr)
		}
		return File{}, err
	}

	if err := a.DeleteChunks(ctx, filename); err != nil {
		return File{}, err
	}

	log = log.WithField("resumable.path", assigned)
	log.Debug("[resumable] upload collected")
	return File{
		Path:        assigned,
		Size:        p.TotalSize,
		ContentType: detector.MIME(p.ContentType),
	}, nil
}

// availableName returns a destination that doesn't collide with a stored
// file, appending a short random fragment before the extension when the
// requested name is taken.
func availableName(ctx context.Context, s Storer, name string) (string, error) {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return "", fmt.Errorf("error checking %T for %s: %w", s, name, err)
	}
	if !exists {
		return name, nil
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s_%s%s", base, uuid.NewString()[:8], ext), nil
}
