package checksum

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Digest describes a file's content: its MD5, byte size and physical line count.
// A final line without a trailing newline still counts as a line.
type Digest struct {
	MD5   string
	Size  int64
	Lines int64
}

// Calculator computes digests of file content.
type Calculator interface {
	Digest(r io.Reader) (Digest, error)
	DigestFile(path string) (Digest, error)
}

// MD5 computes digests in a single streaming pass.
// MD5 is a zero-size type and is safe for concurrent use.
type MD5 struct{}

// New returns the MD5 calculator.
func New() MD5 {
	return MD5{}
}

// Digest reads r to EOF.
func (MD5) Digest(r io.Reader) (Digest, error) {
	h := md5.New()
	buf := make([]byte, 1<<20)

	var d Digest
	var last byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			h.Write(chunk)
			d.Size += int64(n)
			d.Lines += int64(bytes.Count(chunk, []byte{'\n'}))
			last = chunk[n-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Digest{}, err
		}
	}
	if d.Size > 0 && last != '\n' {
		d.Lines++
	}
	d.MD5 = hex.EncodeToString(h.Sum(nil))
	return d, nil
}

// DigestFile opens path and digests its content.
func (c MD5) DigestFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer f.Close()

	d, err := c.Digest(f)
	if err != nil {
		return Digest{}, fmt.Errorf("digest %s: %w", path, err)
	}
	return d, nil
}

// Verify calculator implements Calculator at compile time.
var _ Calculator = MD5{}
