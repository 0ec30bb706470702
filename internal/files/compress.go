package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// ErrExists is returned when a destination file is already present.
var ErrExists = errors.New("destination already exists")

// GzipFile compresses src into src+".gz" and removes src. The compressed file
// keeps src's modification time. An existing src+".gz" is left alone and
// reported with ErrExists.
func GzipFile(src string) (string, error) {
	dst := src + ".gz"
	if _, err := os.Stat(dst); err == nil {
		return dst, fmt.Errorf("%s: %w", dst, ErrExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(src), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return "", err
	}
	fail := func(err error) (string, error) {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("gzip %s: %w", src, err)
	}

	zw := gzip.NewWriter(tmp)
	zw.Name = filepath.Base(src)
	zw.ModTime = info.ModTime()
	if _, err := io.Copy(zw, in); err != nil {
		return fail(err)
	}
	if err := zw.Close(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("gzip %s: %w", src, err)
	}
	if err := os.Chtimes(tmp.Name(), info.ModTime(), info.ModTime()); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	in.Close()
	if err := os.Remove(src); err != nil {
		return dst, err
	}
	return dst, nil
}
