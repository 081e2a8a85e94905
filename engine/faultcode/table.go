// Package faultcode holds the static fault-code table and renders resolved
// fault information into the text returned to callers.
package faultcode

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/faultscope/faultscope/engine/domain"
)

//go:embed faultcodes.yaml
var builtinYAML []byte

// Record is one entry of the fault-code table.
type Record struct {
	Code        string   `yaml:"-" json:"code"`
	Description string   `yaml:"description" json:"description"`
	Causes      []string `yaml:"causes" json:"causes"`
	Solutions   []string `yaml:"solutions" json:"solutions"`
	Severity    string   `yaml:"severity,omitempty" json:"severity,omitempty"`
	Safety      string   `yaml:"safety" json:"safety"`
}

func (r Record) clone() Record {
	r.Causes = slices.Clone(r.Causes)
	r.Solutions = slices.Clone(r.Solutions)
	return r
}

// Table is an immutable code -> Record map. Safe for concurrent use.
type Table struct {
	records map[string]Record
}

// Default returns the built-in table.
func Default() (*Table, error) {
	recs, err := Parse(builtinYAML)
	if err != nil {
		return nil, fmt.Errorf("builtin table: %w", err)
	}
	return NewTable(recs), nil
}

// Load returns the built-in table overlaid with the YAML file at path.
// Entries in the file replace built-in entries with the same code.
// An empty path yields the built-in table.
func Load(path string) (*Table, error) {
	base, err := Default()
	if err != nil || path == "" {
		return base, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", path, err)
	}
	extra, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse table %s: %w", path, err)
	}
	merged := base.records
	for code, r := range extra {
		merged[code] = r
	}
	return &Table{records: merged}, nil
}

// Parse decodes a YAML table document keyed by code.
func Parse(data []byte) (map[string]Record, error) {
	raw := map[string]Record{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(raw))
	for code, r := range raw {
		key := domain.NormalizeCode(code)
		if key == "" {
			continue
		}
		r.Code = key
		out[key] = r
	}
	return out, nil
}

// NewTable builds a table from records, normalizing every key.
func NewTable(records map[string]Record) *Table {
	t := &Table{records: make(map[string]Record, len(records))}
	for code, r := range records {
		key := domain.NormalizeCode(code)
		r.Code = key
		t.records[key] = r.clone()
	}
	return t
}

// Lookup returns the record for code, matched exactly after uppercasing.
func (t *Table) Lookup(code string) (Record, bool) {
	r, ok := t.records[domain.NormalizeCode(code)]
	if !ok {
		return Record{}, false
	}
	return r.clone(), true
}

// Len returns the number of codes in the table.
func (t *Table) Len() int { return len(t.records) }

// Codes returns every code, sorted.
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.records))
	for c := range t.records {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Marshal encodes records as a YAML table document.
func Marshal(records map[string]Record) ([]byte, error) {
	return yaml.Marshal(records)
}
