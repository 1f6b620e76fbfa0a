package magicnumber

import (
	"errors"

	"github.com/h2non/filetype"
)

// the minimum number of bytes needed to determine the MIME type.
const minBytesNeeded = 261

// ErrUnsupportedFile is returned when AcceptedMIMEs is set and the detected
// MIME type of the data isn't in the list, or no MIME type could be
// detected at all.
var ErrUnsupportedFile = errors.New("unsupported file")

// Detector is an io.WriteCloser that sniffs the MIME type of the data
// written through it. Once enough bytes have been seen to identify the
// type, MatchedMIME is set and no further data is buffered. If
// AcceptedMIMEs is set, data of any other type is rejected with
// ErrUnsupportedFile, either from Write as soon as the type is known, or
// from Close if the data ended before a type in the list was matched.
type Detector struct {
	buf           []byte
	done          bool
	AcceptedMIMEs []string
	MatchedMIME   string
}

// Write buffers incoming data until enough bytes have arrived to identify
// the MIME type by its magic number, then records the match. It only
// returns an error when AcceptedMIMEs is set and the detected type isn't
// in the list.
func (d *Detector) Write(b []byte) (int, error) {
	if d.done {
		return len(b), nil
	}
	d.buf = append(d.buf, b...)
	if len(d.buf) < minBytesNeeded {
		return len(b), nil
	}
	d.detect()
	if d.accepted() {
		return len(b), nil
	}
	return len(b), ErrUnsupportedFile
}

// Close finalizes detection for data shorter than the sniff buffer. It
// returns ErrUnsupportedFile when AcceptedMIMEs is set and no accepted
// type was matched.
func (d *Detector) Close() error {
	if !d.done {
		d.detect()
	}
	if d.accepted() {
		return nil
	}
	return ErrUnsupportedFile
}

// MIME returns the detected MIME type, or fallback when nothing was
// detected.
func (d *Detector) MIME(fallback string) string {
	if d.MatchedMIME == "" {
		return fallback
	}
	return d.MatchedMIME
}

func (d *Detector) detect() {
	d.done = true
	t, err := filetype.Match(d.buf)
	d.buf = nil
	if err != nil || t == filetype.Unknown {
		return
	}
	d.MatchedMIME = t.MIME.Value
}

func (d *Detector) accepted() bool {
	if len(d.AcceptedMIMEs) == 0 {
		return true
	}
	for _, mime := range d.AcceptedMIMEs {
		if d.MatchedMIME == mime {
			return true
		}
	}
	return false
}
