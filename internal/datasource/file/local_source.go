// Package file reads CSV sources from the local filesystem.
package file

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// Local is a filesystem source bound to one path.
type Local struct {
	path     string
	maxBytes int64
}

// NewLocal returns a Local for path. maxBytes caps ReadAll; zero means no cap.
func NewLocal(path string, maxBytes int64) *Local { return &Local{path: path, maxBytes: maxBytes} }

// Exists reports whether path names a regular file.
func Exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// Open opens the file. A canceled context returns its error without touching
// the filesystem. Filesystem errors keep errors.Is compatibility.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", l.path)
	}
	return f, nil
}

// ReadAll opens the file and buffers its full content.
func (l *Local) ReadAll(ctx context.Context) ([]byte, error) {
	rc, err := l.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if l.maxBytes > 0 {
		r = io.LimitReader(rc, l.maxBytes+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", l.path)
	}
	if l.maxBytes > 0 && int64(len(b)) > l.maxBytes {
		return nil, errors.Newf("%s exceeds %d bytes", l.path, l.maxBytes)
	}
	return b, nil
}
