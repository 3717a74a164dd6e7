package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrTooLarge is returned by WriteExclusive when the stream exceeds its limit.
var ErrTooLarge = errors.New("stream exceeds size limit")

// ReadError marks a failure reading the source stream, as opposed to writing
// the destination file.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return "read source: " + e.Err.Error()
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// IsReadError reports whether err came from the source reader.
func IsReadError(err error) bool {
	var readErr *ReadError
	return errors.As(err, &readErr)
}

type taggedReader struct {
	r io.Reader
}

func (t taggedReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		err = &ReadError{Err: err}
	}
	return n, err
}

// WriteExclusive streams r into a new file at path, failing if the file
// already exists. At most limit bytes are accepted when limit > 0. The file is
// fsynced before returning. On any error the partial file is removed. Errors
// from r are returned as *ReadError.
func WriteExclusive(path string, r io.Reader, limit int64) (int64, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	var src io.Reader = taggedReader{r: r}
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	written, err := io.Copy(out, src)
	if err == nil && limit > 0 && written > limit {
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return written, err
	}
	return written, nil
}

// CopyFile streams src to dst with mode 0o644, creating parent directories.
// dst is fsynced so a copy made just before cleanup survives a crash.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// NonEmptyFile reports whether path is a regular file with at least one byte.
func NonEmptyFile(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return 0, false
	}
	return info.Size(), info.Size() > 0
}
