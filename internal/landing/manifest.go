package landing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// SourceManual marks batches imported from the manual drop area.
const SourceManual = "manual"

// Manifest describes a batch. It is written once, when the batch is created.
type Manifest struct {
	Namespace   string      `json:"namespace"`
	Table       string      `json:"table"`
	RunDate     string      `json:"run_date"`
	BatchID     string      `json:"batch_id"`
	Source      string      `json:"source"`
	ExtractedAt string      `json:"extracted_at"`
	Encoding    string      `json:"encoding"`
	Files       []FileEntry `json:"files"`
	Notes       string      `json:"notes"`
}

// FileEntry is one file of a batch. Path is relative to the batch directory.
type FileEntry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	MD5  string `json:"md5"`
	Rows int64  `json:"rows"`
}

// requiredKeys must be present in every manifest.
var requiredKeys = []string{"namespace", "table", "run_date", "batch_id", "files"}

// Encode renders m as indented JSON. Non-ASCII text is kept as is.
func (m *Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadManifest loads and decodes a manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest %s is not valid JSON: %w", path, err)
	}
	return &m, nil
}

// missingKeys reports which required keys are absent from a manifest document.
func missingKeys(data []byte) ([]string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	var missing []string
	for _, k := range requiredKeys {
		if _, ok := doc[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing, nil
}
