package parameter

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// record is the persisted form of one parameter.
type record struct {
	Label string   `json:"label" yaml:"label"`
	Type  string   `json:"type" yaml:"type"`
	Value any      `json:"value" yaml:"value"`
	Min   *float32 `json:"min,omitempty" yaml:"min,omitempty"`
	Max   *float32 `json:"max,omitempty" yaml:"max,omitempty"`
}

// document is the persisted form of a group.
type document struct {
	Label      string   `json:"label" yaml:"label"`
	Parameters []record `json:"parameters" yaml:"parameters"`
}

func (p *Parameter) record() record {
	r := record{Label: p.label, Type: p.typ.String()}
	switch {
	case p.typ == Bool:
		r.Value = p.Bool()
	case p.typ == Int:
		r.Value = p.ints[0]
	case p.typ.IsInt():
		r.Value = append([]int32(nil), p.ints[:p.typ.Components()]...)
	case p.typ == Float:
		r.Value = p.floats[0]
	case p.typ.IsFloat():
		r.Value = append([]float32(nil), p.floats[:p.typ.Components()]...)
	default:
		r.Value = p.str
	}
	if p.hasRange {
		mn, mx := p.min, p.max
		r.Min, r.Max = &mn, &mx
	}
	return r
}

// assign copies a decoded record into p. Records whose value does not fit the type are
// rejected without modifying p.
func (p *Parameter) assign(r record) error {
	switch {
	case p.typ == String:
		s, ok := r.Value.(string)
		if !ok {
			return fmt.Errorf("%w: %q expects a string", ErrTypeMismatch, p.label)
		}
		p.str = s
	case p.typ == Bool:
		b, ok := r.Value.(bool)
		if !ok {
			return fmt.Errorf("%w: %q expects a bool", ErrTypeMismatch, p.label)
		}
		p.ints[0] = boolToInt(b)
	default:
		nums, ok := numbers(r.Value)
		if !ok || len(nums) != p.typ.Components() {
			return fmt.Errorf("%w: %q expects %d numbers", ErrTypeMismatch, p.label, p.typ.Components())
		}
		if p.typ.IsInt() {
			for _, n := range nums {
				if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
					return fmt.Errorf("%w: %q expects 32-bit integers, got %v", ErrTypeMismatch, p.label, n)
				}
			}
		}
		for i, n := range nums {
			if p.typ.IsInt() {
				p.ints[i] = int32(n)
			} else {
				p.floats[i] = float32(n)
			}
		}
	}
	if r.Min != nil && r.Max != nil {
		p.hasRange, p.min, p.max = true, *r.Min, *r.Max
	}
	return nil
}

// numbers flattens a decoded scalar or list into float64 values. Both encoding/json and
// yaml.v3 decode into these dynamic types.
func numbers(v any) ([]float64, bool) {
	switch n := v.(type) {
	case float64:
		return []float64{n}, true
	case float32:
		return []float64{float64(n)}, true
	case int:
		return []float64{float64(n)}, true
	case int32:
		return []float64{float64(n)}, true
	case int64:
		return []float64{float64(n)}, true
	case []any:
		out := make([]float64, 0, len(n))
		for _, e := range n {
			f, ok := numbers(e)
			if !ok || len(f) != 1 {
				return nil, false
			}
			out = append(out, f[0])
		}
		return out, true
	default:
		return nil, false
	}
}

func (g *Group) document() document {
	d := document{Label: g.label, Parameters: make([]record, 0, len(g.params))}
	for _, p := range g.params {
		d.Parameters = append(d.Parameters, p.record())
	}
	return d
}

// apply copies every record whose label exists in g with the same type. Unknown labels
// and mismatched records are skipped and counted.
func (g *Group) apply(d document) (skipped int) {
	for _, r := range d.Parameters {
		p, ok := g.index[r.Label]
		if !ok {
			skipped++
			continue
		}
		if t, err := ParseType(r.Type); err != nil || t != p.typ {
			skipped++
			continue
		}
		if err := p.assign(r); err != nil {
			skipped++
		}
	}
	return skipped
}

// MarshalJSON encodes the group as an ordered list of parameter records.
func (g *Group) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.document())
}

// UnmarshalJSON updates the values of matching parameters. It never adds or removes
// parameters; unknown labels are ignored.
func (g *Group) UnmarshalJSON(data []byte) error {
	var d document
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("parameter: decode json: %w", err)
	}
	if g.index == nil {
		g.index = make(map[string]*Parameter)
	}
	g.apply(d)
	return nil
}

// MarshalYAML encodes the group as an ordered list of parameter records.
func (g *Group) MarshalYAML() (any, error) {
	return g.document(), nil
}

// UnmarshalYAML updates the values of matching parameters, like UnmarshalJSON.
func (g *Group) UnmarshalYAML(node *yaml.Node) error {
	var d document
	if err := node.Decode(&d); err != nil {
		return fmt.Errorf("parameter: decode yaml: %w", err)
	}
	if g.index == nil {
		g.index = make(map[string]*Parameter)
	}
	g.apply(d)
	return nil
}

// Save writes the group to path. Files ending in .yaml or .yml are written as YAML,
// everything else as indented JSON.
//
// Parameters:
//   - path: the destination file
//
// Returns:
//   - error: error if encoding or writing fails
func (g *Group) Save(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(g)
	} else {
		data, err = json.MarshalIndent(g.document(), "", "  ")
	}
	if err != nil {
		return fmt.Errorf("parameter: encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("parameter: save %s: %w", path, err)
	}
	return nil
}

// Load reads a document written by Save and updates the values of parameters whose label
// and type match. Parameters absent from the document keep their values, and records for
// labels the group does not have are ignored.
//
// Parameters:
//   - path: the source file
//
// Returns:
//   - int: the number of records that were skipped
//   - error: error if the file cannot be read or is not a valid document
func (g *Group) Load(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("parameter: load %s: %w", path, err)
	}
	var d document
	if isYAML(path) {
		err = yaml.Unmarshal(data, &d)
	} else {
		err = json.Unmarshal(data, &d)
	}
	if err != nil {
		return 0, fmt.Errorf("parameter: decode %s: %w", path, err)
	}
	return g.apply(d), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
