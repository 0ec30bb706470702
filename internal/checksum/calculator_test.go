package checksum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
)

func TestMD5_Digest(t *testing.T) {
	tests := []struct {
		name    string
		content string
		md5     string
		lines   int64
	}{
		{"empty", "", "d41d8cd98f00b204e9800998ecf8427e", 0},
		{"no trailing newline", "abc", "900150983cd24fb0d6963f7d28e17f72", 1},
		{"pangram", "The quick brown fox jumps over the lazy dog", "9e107d9d372bb6826bd81d3542a419d6", 1},
		{"header and rows", "id,name\n1,Alice\n2,Bob\n", "", 3},
		{"last row without newline", "id,name\n1,Alice\n2,Bob", "", 3},
	}

	calc := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := calc.Digest(strings.NewReader(tt.content))
			if err != nil {
				t.Fatalf("Digest: %v", err)
			}
			if tt.md5 != "" && d.MD5 != tt.md5 {
				t.Errorf("MD5 = %s, want %s", d.MD5, tt.md5)
			}
			if d.Size != int64(len(tt.content)) {
				t.Errorf("Size = %d, want %d", d.Size, len(tt.content))
			}
			if d.Lines != tt.lines {
				t.Errorf("Lines = %d, want %d", d.Lines, tt.lines)
			}
		})
	}
}

func TestMD5_DigestSmallReads(t *testing.T) {
	content := "a\nb\nc\n"
	whole, _ := New().Digest(strings.NewReader(content))
	oneByte, err := New().Digest(iotest.OneByteReader(strings.NewReader(content)))
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if whole != oneByte {
		t.Errorf("digest depends on read size: %+v vs %+v", whole, oneByte)
	}
}

func TestMD5_DigestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.csv")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := New().DigestFile(path)
	if err != nil {
		t.Fatalf("DigestFile: %v", err)
	}
	if d.MD5 != "900150983cd24fb0d6963f7d28e17f72" || d.Size != 3 {
		t.Errorf("unexpected digest %+v", d)
	}

	if _, err := New().DigestFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
