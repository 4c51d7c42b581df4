package parameter

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/Carmen-Shannon/prism/common"
)

// Group is an ordered list of uniquely labelled parameters. The order is the field order
// of the generated struct and of the packed byte image.
//
// Groups are not safe for concurrent mutation.
type Group struct {
	label  string
	params []*Parameter
	index  map[string]*Parameter
}

// NewGroup creates a group from params in order. Duplicate labels are a programming error
// and panic.
//
// Parameters:
//   - label: the generated struct type name, e.g. "BasicColorUniforms"
//   - params: the initial parameters, in layout order
//
// Returns:
//   - *Group: the new group
func NewGroup(label string, params ...*Parameter) *Group {
	g := &Group{label: label, index: make(map[string]*Parameter, len(params))}
	for _, p := range params {
		if err := g.Append(p); err != nil {
			panic(fmt.Sprintf("parameter: NewGroup(%q): %v", label, err))
		}
	}
	return g
}

func (g *Group) Label() string { return g.label }

// SetLabel renames the generated struct type.
func (g *Group) SetLabel(label string) { g.label = label }

// Len returns the number of parameters.
func (g *Group) Len() int { return len(g.params) }

// Params returns the parameters in layout order. The slice is a copy; the parameters are not.
func (g *Group) Params() []*Parameter {
	out := make([]*Parameter, len(g.params))
	copy(out, g.params)
	return out
}

// Get returns the parameter with the given label.
func (g *Group) Get(label string) (*Parameter, bool) {
	p, ok := g.index[label]
	return p, ok
}

// Append adds p at the end of the layout.
//
// Parameters:
//   - p: the parameter to add
//
// Returns:
//   - error: ErrDuplicateLabel if a parameter with the same label is already present, or if
//     p is packed and its field name is taken by another packed parameter
func (g *Group) Append(p *Parameter) error {
	if _, ok := g.index[p.label]; ok {
		return fmt.Errorf("%w: %q in %q", ErrDuplicateLabel, p.label, g.label)
	}
	if p.typ.Packed() {
		field := FieldName(p.label)
		for _, q := range g.params {
			if q.typ.Packed() && FieldName(q.label) == field {
				return fmt.Errorf("%w: %q and %q are both field %s in %q", ErrDuplicateLabel, q.label, p.label, field, g.label)
			}
		}
	}
	g.params = append(g.params, p)
	g.index[p.label] = p
	return nil
}

// Remove deletes the parameter with the given label and reports whether it was present.
func (g *Group) Remove(label string) bool {
	if _, ok := g.index[label]; !ok {
		return false
	}
	delete(g.index, label)
	for i, p := range g.params {
		if p.label == label {
			g.params = append(g.params[:i], g.params[i+1:]...)
			break
		}
	}
	return true
}

// Clear removes every parameter.
func (g *Group) Clear() {
	g.params = nil
	g.index = make(map[string]*Parameter)
}

// Set assigns value to the labelled parameter.
//
// Parameters:
//   - label: the parameter label
//   - value: the new value, in the parameter's natural Go type
//
// Returns:
//   - error: ErrNotFound for an unknown label, ErrTypeMismatch for a value of the wrong type
func (g *Group) Set(label string, value any) error {
	p, ok := g.index[label]
	if !ok {
		return fmt.Errorf("%w: %q in %q", ErrNotFound, label, g.label)
	}
	return p.Set(value)
}

// Offsets returns the byte offset of every parameter in layout order. Unpacked types
// report the offset the next packed field would use.
func (g *Group) Offsets() []int {
	out := make([]int, len(g.params))
	offset := 0
	for i, p := range g.params {
		if !p.typ.Packed() {
			out[i] = offset
			continue
		}
		offset = common.RoundUp(p.Alignment(), offset)
		out[i] = offset
		offset += p.Size()
	}
	return out
}

// Size returns the end offset of the last packed field.
func (g *Group) Size() int {
	size := 0
	for _, p := range g.params {
		if p.typ.Packed() {
			size = common.RoundUp(p.Alignment(), size) + p.Size()
		}
	}
	return size
}

// Alignment returns the largest field alignment, at least 4.
func (g *Group) Alignment() int {
	align := 4
	for _, p := range g.params {
		align = max(align, p.Alignment())
	}
	return align
}

// Stride returns Size rounded up to Alignment: the distance between consecutive elements
// of an array of this struct, and the byte length of the packed image.
func (g *Group) Stride() int {
	return common.RoundUp(g.Alignment(), g.Size())
}

// Pack writes the packed image into dst, which must hold at least Stride bytes.
func (g *Group) Pack(dst []byte) {
	clear(dst[:g.Stride()])
	offsets := g.Offsets()
	for i, p := range g.params {
		if p.typ.Packed() {
			p.Pack(dst[offsets[i]:])
		}
	}
}

// Bytes returns a freshly packed image of Stride bytes.
func (g *Group) Bytes() []byte {
	buf := make([]byte, g.Stride())
	g.Pack(buf)
	return buf
}

// Unpack reads every packed parameter back from src, the inverse of Pack.
//
// Parameters:
//   - src: a packed image of at least Size bytes
//
// Returns:
//   - error: error if src is too short
func (g *Group) Unpack(src []byte) error {
	if len(src) < g.Size() {
		return fmt.Errorf("parameter: %q needs %d bytes, got %d", g.label, g.Size(), len(src))
	}
	offsets := g.Offsets()
	for i, p := range g.params {
		if p.typ.Packed() {
			p.Unpack(src[offsets[i]:])
		}
	}
	return nil
}

// SetFrom makes g structurally equal to other while keeping g's Parameter pointers for
// every label present in both with the same type. Values are copied, matching parameters
// keep their identity, parameters missing from other are dropped and new ones are cloned.
// The resulting order is other's order.
//
// Parameters:
//   - other: the group to copy from
func (g *Group) SetFrom(other *Group) {
	params := make([]*Parameter, 0, len(other.params))
	index := make(map[string]*Parameter, len(other.params))
	for _, src := range other.params {
		p, ok := g.index[src.label]
		if ok && p.typ == src.typ {
			p.copyValue(src)
		} else {
			p = src.Clone()
		}
		params = append(params, p)
		index[p.label] = p
	}
	g.params, g.index = params, index
}

// Merge adopts other's layout like SetFrom but keeps g's values: parameters present in both
// with the same type are kept untouched, new ones are cloned with other's values and
// parameters missing from other are dropped.
func (g *Group) Merge(other *Group) {
	params := make([]*Parameter, 0, len(other.params))
	index := make(map[string]*Parameter, len(other.params))
	for _, src := range other.params {
		p, ok := g.index[src.label]
		if !ok || p.typ != src.typ {
			p = src.Clone()
		}
		params = append(params, p)
		index[p.label] = p
	}
	g.params, g.index = params, index
}

// Clone returns a deep copy of the group.
func (g *Group) Clone() *Group {
	c := &Group{label: g.label, index: make(map[string]*Parameter, len(g.params))}
	for _, p := range g.params {
		cp := p.Clone()
		c.params = append(c.params, cp)
		c.index[cp.label] = cp
	}
	return c
}

// LayoutHash returns a hash of the struct name and the ordered (label, type) list. Two
// groups with equal hashes generate the same struct declaration.
func (g *Group) LayoutHash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(g.label))
	for _, p := range g.params {
		h.Write([]byte{0})
		h.Write([]byte(p.label))
		h.Write([]byte{byte(p.typ)})
	}
	return h.Sum64()
}

// StructSource returns the WGSL declaration of the packed fields, or "" when the group
// packs no fields. Three component vectors carry @size(16) so that the shader layout
// matches Pack.
func (g *Group) StructSource() string {
	if g.Size() == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "struct %s {\n", g.label)
	for _, p := range g.params {
		if !p.typ.Packed() {
			continue
		}
		sb.WriteString("    ")
		if p.typ == Float3 || p.typ == Int3 {
			sb.WriteString("@size(16) ")
		}
		fmt.Fprintf(&sb, "%s: %s,\n", FieldName(p.label), p.typ.WGSL())
	}
	sb.WriteString("}\n")
	return sb.String()
}

// FieldName converts a label into a shader identifier by replacing every character that
// is not a letter, digit or underscore with an underscore.
func FieldName(label string) string {
	var sb strings.Builder
	for i, r := range label {
		switch {
		case unicode.IsLetter(r) || r == '_':
			sb.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				sb.WriteRune('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}
