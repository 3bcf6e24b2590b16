// Package preset converts chain descriptions to and from YAML documents and
// builds effect chains from them through an effect registry.
package preset

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// document is the YAML layout of a chain description.
type document struct {
	Name           string    `yaml:"name,omitempty"`
	Author         string    `yaml:"author,omitempty"`
	MaxActiveNodes int       `yaml:"max_active_nodes,omitempty"`
	Nodes          []nodeDoc `yaml:"nodes"`
}

type nodeDoc struct {
	Type       string                 `yaml:"type"`
	ID         string                 `yaml:"id,omitempty"`
	Enabled    *bool                  `yaml:"enabled,omitempty"`
	Script     string                 `yaml:"script,omitempty"`
	Parameters map[string]interface{} `yaml:"parameters,omitempty"`
}

// Decode reads a YAML chain description.
func Decode(r io.Reader) (*domain.ChainDescription, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return &domain.ChainDescription{}, nil
		}
		return nil, domain.NewPresetError("decode", -1, "invalid YAML", err)
	}

	desc := &domain.ChainDescription{
		Name:           doc.Name,
		Author:         doc.Author,
		MaxActiveNodes: doc.MaxActiveNodes,
		Nodes:          make([]domain.NodeRecord, 0, len(doc.Nodes)),
	}
	for i, n := range doc.Nodes {
		if n.Type == "" {
			return nil, domain.NewPresetError("decode", i, "node has no type", nil)
		}
		rec := domain.NodeRecord{
			Type:       n.Type,
			ID:         n.ID,
			Enabled:    n.Enabled,
			Script:     n.Script,
			Parameters: make(map[string]domain.ParamValue, len(n.Parameters)),
		}
		for key, raw := range n.Parameters {
			rec.Parameters[key] = domain.ParamFromAny(raw)
		}
		desc.Nodes = append(desc.Nodes, rec)
	}
	return desc, nil
}

// DecodeBytes reads a YAML chain description from memory.
func DecodeBytes(data []byte) (*domain.ChainDescription, error) {
	return Decode(bytes.NewReader(data))
}

// LoadFile reads a YAML chain description from disk.
func LoadFile(path string) (*domain.ChainDescription, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open preset: %w", err)
	}
	defer func() { _ = f.Close() }()

	desc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return desc, nil
}

// Encode writes a chain description as YAML.
func Encode(desc *domain.ChainDescription) ([]byte, error) {
	if desc == nil {
		return nil, domain.NewPresetError("encode", -1, "nil description", nil)
	}
	doc := document{
		Name:           desc.Name,
		Author:         desc.Author,
		MaxActiveNodes: desc.MaxActiveNodes,
		Nodes:          make([]nodeDoc, 0, len(desc.Nodes)),
	}
	for _, rec := range desc.Nodes {
		n := nodeDoc{
			Type:    rec.Type,
			ID:      rec.ID,
			Enabled: rec.Enabled,
			Script:  rec.Script,
		}
		if len(rec.Parameters) > 0 {
			n.Parameters = make(map[string]interface{}, len(rec.Parameters))
			for _, key := range sortedKeys(rec.Parameters) {
				if v, ok := plainValue(rec.Parameters[key]); ok {
					n.Parameters[key] = v
				}
			}
		}
		doc.Nodes = append(doc.Nodes, n)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, domain.NewPresetError("encode", -1, "marshal failed", err)
	}
	if err := enc.Close(); err != nil {
		return nil, domain.NewPresetError("encode", -1, "marshal failed", err)
	}
	return buf.Bytes(), nil
}

// plainValue converts a ParamValue into a YAML scalar. Colors become #rrggbb strings.
func plainValue(v domain.ParamValue) (interface{}, bool) {
	switch v.Kind() {
	case domain.KindNumber:
		return v.AsNumber(0), true
	case domain.KindBool:
		return v.AsBool(false), true
	case domain.KindString, domain.KindEnum, domain.KindScript:
		return v.AsString(""), true
	case domain.KindColor:
		return v.AsColor(domain.Color{}).Hex(), true
	default:
		return nil, false
	}
}

func sortedKeys(m map[string]domain.ParamValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
