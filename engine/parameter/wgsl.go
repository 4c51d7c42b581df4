package parameter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	fieldRegex = regexp.MustCompile(`^\s*((?:@\w+(?:\([^)]*\))?\s*)*)(\w+)\s*:\s*([\w<>]+)\s*,?\s*(?://\s*(.*))?$`)
	hintRegex  = regexp.MustCompile(`(\w+)\s*=\s*([^\s=]+(?:\s*,\s*[^\s=]+)*)`)
)

// wgslTypes maps shader type spellings to parameter types. u32 fields are Int unless the
// field comment marks them as bool.
var wgslTypes = map[string]Type{
	"f32": Float, "vec2<f32>": Float2, "vec2f": Float2, "vec3<f32>": Float3, "vec3f": Float3,
	"vec4<f32>": Float4, "vec4f": Float4,
	"i32": Int, "u32": Int, "vec2<i32>": Int2, "vec2i": Int2, "vec3<i32>": Int3, "vec3i": Int3,
	"vec4<i32>": Int4, "vec4i": Int4,
	"mat2x2<f32>": Float2x2, "mat2x2f": Float2x2, "mat3x3<f32>": Float3x3, "mat3x3f": Float3x3,
	"mat4x4<f32>": Float4x4, "mat4x4f": Float4x4,
}

// ParseStruct builds a group from the named struct declared in shader source. Field
// comments supply defaults and editor ranges:
//
//	struct GlowUniforms {
//	    color: vec4<f32>,       // default=1,0.5,0,1
//	    intensity: f32,         // default=2 min=0 max=10
//	    pulse: u32,             // bool default=1
//	}
//
// Parameters:
//   - source: shader source containing the struct
//   - name: the struct type name
//
// Returns:
//   - *Group: a group labelled name with one parameter per field, in declaration order
//   - error: error if the struct is missing or declares an unsupported field type
func ParseStruct(source, name string) (*Group, error) {
	re, err := regexp.Compile(`struct\s+` + regexp.QuoteMeta(name) + `\s*\{([^}]*)\}`)
	if err != nil {
		return nil, err
	}
	m := re.FindStringSubmatch(source)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrStructNotFound, name)
	}

	g := NewGroup(name)
	for _, line := range strings.Split(m[1], "\n") {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		f := fieldRegex.FindStringSubmatch(line)
		if f == nil {
			return nil, fmt.Errorf("parameter: %s: cannot parse field %q", name, strings.TrimSpace(line))
		}
		label, wgslType, comment := f[2], f[3], f[4]
		typ, ok := wgslTypes[wgslType]
		if !ok {
			return nil, fmt.Errorf("parameter: %s.%s: unsupported type %s", name, label, wgslType)
		}
		if typ == Int && wgslType == "u32" && hasWord(comment, "bool") {
			typ = Bool
		}
		p := New(label, typ)
		if err := applyHints(p, comment); err != nil {
			return nil, fmt.Errorf("parameter: %s.%s: %w", name, label, err)
		}
		if err := g.Append(p); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func applyHints(p *Parameter, comment string) error {
	var mn, mx *float32
	for _, h := range hintRegex.FindAllStringSubmatch(comment, -1) {
		key, raw := strings.ToLower(h[1]), h[2]
		switch key {
		case "default":
			vals, err := parseFloats(raw)
			if err != nil {
				return err
			}
			if err := p.assign(record{Value: hintValue(p.typ, vals)}); err != nil {
				return err
			}
		case "min", "max":
			vals, err := parseFloats(raw)
			if err != nil {
				return err
			}
			v := float32(vals[0])
			if key == "min" {
				mn = &v
			} else {
				mx = &v
			}
		}
	}
	if mn != nil && mx != nil {
		p.WithRange(*mn, *mx)
	}
	return nil
}

// hintValue shapes parsed default numbers the way assign expects decoded documents.
func hintValue(t Type, vals []float64) any {
	if t == Bool {
		return len(vals) > 0 && vals[0] != 0
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func parseFloats(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, s := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", s)
		}
		out = append(out, f)
	}
	return out, nil
}

func hasWord(s, word string) bool {
	for _, w := range strings.Fields(s) {
		if w == word {
			return true
		}
	}
	return false
}
