package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/vvka-141/csvingest/internal/files/source"
	"github.com/vvka-141/csvingest/pkg/csvingest"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the tables file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// KeyColumns is a primary key column list. In YAML it may be written as a
// sequence or as a single scalar.
type KeyColumns []string

// UnmarshalYAML accepts both `primary_key: id` and `primary_key: [a, b]`.
func (k *KeyColumns) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" || strings.TrimSpace(node.Value) == "" {
			*k = nil
			return nil
		}
		*k = KeyColumns{node.Value}
		return nil
	case yaml.SequenceNode:
		var cols []string
		if err := node.Decode(&cols); err != nil {
			return err
		}
		*k = cols
		return nil
	default:
		return fmt.Errorf("line %d: primary_key must be a string or a list of strings", node.Line)
	}
}

// Table is the merged configuration of one logical table.
type Table struct {
	Name         string             `yaml:"-"`
	Folder       string             `yaml:"folder"`
	FilenameGlob string             `yaml:"filename_glob"`
	PrimaryKey   KeyColumns         `yaml:"primary_key"`
	TargetTable  string             `yaml:"target_table"`
	Encoding     string             `yaml:"encoding"`
	SkipRows     int                `yaml:"skiprows"`
	ChunkSize    int                `yaml:"chunksize"`
	Mode         csvingest.LoadMode `yaml:"mode"`
	Delimiter    string             `yaml:"delimiter"`
}

// Target returns the destination table name.
func (t Table) Target() string {
	if t.TargetTable != "" {
		return t.TargetTable
	}
	return t.Name
}

// DelimiterRune returns the field separator.
func (t Table) DelimiterRune() rune {
	if t.Delimiter == "" {
		return ','
	}
	return []rune(t.Delimiter)[0]
}

// EffectiveChunkSize resolves the chunk size: the table's own value, then
// fallback, then csvingest.DefaultChunkSize.
func (t Table) EffectiveChunkSize(fallback int) int {
	switch {
	case t.ChunkSize > 0:
		return t.ChunkSize
	case fallback > 0:
		return fallback
	default:
		return csvingest.DefaultChunkSize
	}
}

func (t *Table) applyFallbacks() {
	if t.FilenameGlob == "" {
		t.FilenameGlob = csvingest.DefaultFilenameGlob
	}
	if t.Encoding == "" {
		t.Encoding = csvingest.DefaultEncoding
	}
	if t.Mode == "" {
		t.Mode = csvingest.ModeUpsert
	}
	if t.Delimiter == "" {
		t.Delimiter = ","
	}
}

// Validate reports every problem with the table at once.
func (t Table) Validate() error {
	var errs []error
	if strings.TrimSpace(t.Folder) == "" {
		errs = append(errs, fmt.Errorf("table %q: folder is required", t.Name))
	}
	switch t.Mode {
	case csvingest.ModeUpsert:
		if len(t.PrimaryKey) == 0 {
			errs = append(errs, fmt.Errorf("table %q: upsert mode requires primary_key", t.Name))
		}
	case csvingest.ModeAppend:
	default:
		errs = append(errs, fmt.Errorf("table %q: unknown mode %q (want upsert or append)", t.Name, t.Mode))
	}
	for _, c := range t.PrimaryKey {
		if strings.TrimSpace(c) == "" {
			errs = append(errs, fmt.Errorf("table %q: empty primary_key column", t.Name))
		}
	}
	if t.SkipRows < 0 {
		errs = append(errs, fmt.Errorf("table %q: skiprows cannot be negative", t.Name))
	}
	if t.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("table %q: chunksize cannot be negative", t.Name))
	}
	if n := len([]rune(t.Delimiter)); n != 1 {
		errs = append(errs, fmt.Errorf("table %q: delimiter must be a single character", t.Name))
	}
	if err := source.ValidateEncoding(t.Encoding); err != nil {
		errs = append(errs, fmt.Errorf("table %q: %w", t.Name, err))
	}
	return errors.Join(errs...)
}

// Tables is the ordered set of configured tables.
type Tables struct {
	order  []string
	byName map[string]Table
}

type tablesFile struct {
	Defaults yaml.Node `yaml:"defaults"`
	Tables   yaml.Node `yaml:"tables"`
}

// Load reads and validates the tables file at path.
func Load(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrConfigNotFound)
		}
		return nil, err
	}
	tables, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tables, nil
}

// Parse decodes tables configuration from YAML. Table order follows the file.
func Parse(data []byte) (*Tables, error) {
	var raw tablesFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", csvingest.ErrInvalidConfig, err)
	}
	if raw.Tables.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: missing 'tables' mapping", csvingest.ErrInvalidConfig)
	}
	if raw.Defaults.Kind != 0 && raw.Defaults.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: 'defaults' must be a mapping", csvingest.ErrInvalidConfig)
	}

	t := &Tables{byName: make(map[string]Table)}
	var errs []error
	for i := 0; i+1 < len(raw.Tables.Content); i += 2 {
		name := raw.Tables.Content[i].Value
		body := raw.Tables.Content[i+1]

		var tbl Table
		if raw.Defaults.Kind == yaml.MappingNode {
			if err := raw.Defaults.Decode(&tbl); err != nil {
				return nil, fmt.Errorf("%w: defaults: %v", csvingest.ErrInvalidConfig, err)
			}
		}
		if body.Kind == yaml.MappingNode {
			if err := body.Decode(&tbl); err != nil {
				errs = append(errs, fmt.Errorf("table %q: %v", name, err))
				continue
			}
		} else if body.Tag != "!!null" {
			errs = append(errs, fmt.Errorf("table %q: entry must be a mapping", name))
			continue
		}
		tbl.Name = name
		tbl.applyFallbacks()
		if err := tbl.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := t.byName[name]; dup {
			errs = append(errs, fmt.Errorf("table %q: defined twice", name))
			continue
		}
		t.order = append(t.order, name)
		t.byName[name] = tbl
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", csvingest.ErrInvalidConfig, err)
	}
	return t, nil
}

// Names returns table names in configuration order.
func (t *Tables) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Get returns the table named name.
func (t *Tables) Get(name string) (Table, bool) {
	tbl, ok := t.byName[name]
	return tbl, ok
}

// Lookup resolves names to tables. An empty list selects every table.
// The result is in configuration order regardless of the order of names.
// Unknown names are reported together, wrapped in csvingest.ErrTableNotConfigured.
func (t *Tables) Lookup(names []string) ([]Table, error) {
	if len(names) == 0 {
		out := make([]Table, 0, len(t.order))
		for _, n := range t.order {
			out = append(out, t.byName[n])
		}
		return out, nil
	}

	want := make(map[string]bool, len(names))
	var unknown []string
	for _, n := range names {
		if _, ok := t.byName[n]; !ok {
			unknown = append(unknown, n)
			continue
		}
		want[n] = true
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s (available: %s)",
			csvingest.ErrTableNotConfigured, strings.Join(unknown, ", "), strings.Join(t.order, ", "))
	}

	var out []Table
	for _, n := range t.order {
		if want[n] {
			out = append(out, t.byName[n])
		}
	}
	return out, nil
}
