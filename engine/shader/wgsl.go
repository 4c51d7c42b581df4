package shader

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/gpu"
)

// Stage is the pipeline stage of an entry point.
type Stage int

const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
)

// EntryPoint is a function declared with a stage attribute.
type EntryPoint struct {
	Name  string
	Stage Stage
	// WorkgroupSize is the @workgroup_size of compute entry points, with omitted
	// dimensions set to 1, and zero for other stages.
	WorkgroupSize [3]int
}

// ResourceKind classifies a binding declaration.
type ResourceKind int

const (
	ResourceUniform ResourceKind = iota
	ResourceStorage
	ResourceReadOnlyStorage
	ResourceTexture
	ResourceStorageTexture
	ResourceSampler
)

// Declaration is one @group/@binding variable found in shader source.
type Declaration struct {
	Group   int
	Binding int
	Name    string
	Type    string
	Kind    ResourceKind
	// MinSize is the byte size of one element of a buffer binding, or 0 when unknown.
	MinSize int
	// Format is the texel format of storage textures.
	Format gpu.TextureFormat
}

// Reflection is the interface of a shader module as declared by its source.
type Reflection struct {
	EntryPoints  []EntryPoint
	Declarations []Declaration
	layouts      map[string]typeLayout
}

// typeLayout holds the byte size and alignment of a WGSL type.
type typeLayout struct {
	size  int
	align int
}

// parsedField is a single field extracted from a WGSL struct.
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
	size      int
}

// parsedStruct is a WGSL struct block.
type parsedStruct struct {
	name   string
	fields []parsedField
}

// primitiveLayouts maps WGSL primitive, vector, matrix and atomic types to their size and
// alignment.
var primitiveLayouts = map[string]typeLayout{
	"f32":  {4, 4},
	"i32":  {4, 4},
	"u32":  {4, 4},
	"f16":  {2, 2},
	"bool": {4, 4},

	"vec2<f32>": {8, 8},
	"vec2f":     {8, 8},
	"vec3<f32>": {12, 16},
	"vec3f":     {12, 16},
	"vec4<f32>": {16, 16},
	"vec4f":     {16, 16},

	"vec2<i32>": {8, 8},
	"vec2i":     {8, 8},
	"vec3<i32>": {12, 16},
	"vec3i":     {12, 16},
	"vec4<i32>": {16, 16},
	"vec4i":     {16, 16},

	"vec2<u32>": {8, 8},
	"vec2u":     {8, 8},
	"vec3<u32>": {12, 16},
	"vec3u":     {12, 16},
	"vec4<u32>": {16, 16},
	"vec4u":     {16, 16},

	"mat2x2<f32>": {16, 8},
	"mat2x2f":     {16, 8},
	"mat3x3<f32>": {48, 16},
	"mat3x3f":     {48, 16},
	"mat4x4<f32>": {64, 16},
	"mat4x4f":     {64, 16},

	"atomic<u32>": {4, 4},
	"atomic<i32>": {4, 4},
}

// texelFormats maps WGSL storage texel formats to texture formats.
var texelFormats = map[string]gpu.TextureFormat{
	"rgba8unorm":  gpu.FormatRGBA8Unorm,
	"rgba16float": gpu.FormatRGBA16Float,
	"rgba32float": gpu.FormatRGBA32Float,
	"rg32float":   gpu.FormatRG32Float,
	"r32float":    gpu.FormatR32Float,
}

var (
	// entryRegex captures the attribute run before a function and the function name
	entryRegex = regexp.MustCompile(`((?:@\w+(?:\([^)]*\))?\s*)+)fn\s+(\w+)`)

	// stageRegex captures the stage attribute of an entry point
	stageRegex = regexp.MustCompile(`@(vertex|fragment|compute)\b`)

	// workgroupSizeRegex captures 1-3 integer dimensions from @workgroup_size(x[, y[, z]])
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// declRegex captures group, binding, optional address space, variable name and type
	declRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)

	// fieldRegex matches a struct field: optional attributes, name, colon, type
	fieldRegex = regexp.MustCompile(`^((?:@\w+(?:\([^)]*\))?\s*)*)(\w+)\s*:\s*(.+)$`)

	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)
	sizeRegex     = regexp.MustCompile(`@size\((\d+)\)`)
	structRegex   = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
)

// Reflect parses the entry points, structs and binding declarations of WGSL source.
//
// Parameters:
//   - source: the assembled WGSL source
//
// Returns:
//   - Reflection: everything the source declares
func Reflect(source string) Reflection {
	cleaned := stripComments(source)
	structs := parseStructBlocks(cleaned)
	r := Reflection{layouts: computeStructLayouts(structs)}

	for _, m := range entryRegex.FindAllStringSubmatch(cleaned, -1) {
		attrs, name := m[1], m[2]
		stage := stageRegex.FindStringSubmatch(attrs)
		if stage == nil {
			continue
		}
		var e EntryPoint
		switch stage[1] {
		case "vertex":
			e = EntryPoint{Name: name, Stage: StageVertex}
		case "fragment":
			e = EntryPoint{Name: name, Stage: StageFragment}
		default:
			e = EntryPoint{Name: name, Stage: StageCompute, WorkgroupSize: parseWorkgroupSize(attrs)}
		}
		r.EntryPoints = append(r.EntryPoints, e)
	}

	for _, m := range declRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(m[1])
		slot, _ := strconv.Atoi(m[2])
		d := Declaration{Group: group, Binding: slot, Name: m[4], Type: strings.TrimSpace(m[5])}
		classify(&d, strings.TrimSpace(m[3]))
		if d.Kind <= ResourceReadOnlyStorage {
			if l, ok := r.resolve(d.Type); ok {
				d.MinSize = l.size
			}
		}
		r.Declarations = append(r.Declarations, d)
	}
	slices.SortStableFunc(r.Declarations, func(a, b Declaration) int {
		if a.Group != b.Group {
			return a.Group - b.Group
		}
		return a.Binding - b.Binding
	})
	return r
}

// EntryPoint returns the named entry point.
func (r Reflection) EntryPoint(name string) (EntryPoint, bool) {
	for _, e := range r.EntryPoints {
		if e.Name == name {
			return e, true
		}
	}
	return EntryPoint{}, false
}

// Functions returns the names of every entry point in declaration order.
func (r Reflection) Functions() []string {
	out := make([]string, len(r.EntryPoints))
	for i, e := range r.EntryPoints {
		out[i] = e.Name
	}
	return out
}

// Group returns the declarations of one bind group, ordered by binding.
func (r Reflection) Group(group int) []Declaration {
	var out []Declaration
	for _, d := range r.Declarations {
		if d.Group == group {
			out = append(out, d)
		}
	}
	return out
}

// TypeSize returns the size and alignment of a WGSL type. Runtime-sized arrays report
// the stride of one element.
//
// Parameters:
//   - typeName: a primitive, a struct declared in the source, or an array of either
//
// Returns:
//   - int: the size in bytes
//   - int: the alignment in bytes
//   - bool: false if the type is unknown
func (r Reflection) TypeSize(typeName string) (int, int, bool) {
	l, ok := r.resolve(typeName)
	return l.size, l.align, ok
}

func (r Reflection) resolve(typeName string) (typeLayout, bool) {
	return resolveTypeLayout(typeName, r.layouts)
}

func classify(d *Declaration, space string) {
	switch {
	case space == "uniform":
		d.Kind = ResourceUniform
	case strings.HasPrefix(space, "storage") && strings.Contains(space, "read_write"):
		d.Kind = ResourceStorage
	case strings.HasPrefix(space, "storage"):
		d.Kind = ResourceReadOnlyStorage
	case strings.HasPrefix(d.Type, "sampler"):
		d.Kind = ResourceSampler
	case strings.HasPrefix(d.Type, "texture_storage_"):
		d.Kind = ResourceStorageTexture
		_, params := splitTypeParams(d.Type)
		format, _, _ := strings.Cut(params, ",")
		d.Format = texelFormats[strings.TrimSpace(format)]
	default:
		d.Kind = ResourceTexture
	}
}

// parseWorkgroupSize extracts the @workgroup_size dimensions, defaulting omitted ones to 1.
func parseWorkgroupSize(attrs string) [3]int {
	result := [3]int{1, 1, 1}
	match := workgroupSizeRegex.FindStringSubmatch(attrs)
	if match == nil {
		return result
	}
	for i := 0; i < 3; i++ {
		if match[i+1] == "" {
			continue
		}
		if v, err := strconv.Atoi(match[i+1]); err == nil {
			result[i] = v
		}
	}
	return result
}

// parseStructBlocks finds all struct blocks in comment-free source.
func parseStructBlocks(source string) []parsedStruct {
	matches := structRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, m := range matches {
		structs = append(structs, parsedStruct{name: m[1], fields: parseStructFields(m[2])})
	}
	return structs
}

func parseStructFields(body string) []parsedField {
	parts := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fm := fieldRegex.FindStringSubmatch(part)
		if fm == nil {
			continue
		}
		attrs := fm[1]
		f := parsedField{name: fm[2], typeName: strings.TrimSpace(fm[3]), location: -1}
		f.isBuiltin = strings.Contains(attrs, "@builtin")
		if loc := locationRegex.FindStringSubmatch(attrs); loc != nil {
			f.location, _ = strconv.Atoi(loc[1])
		}
		if sz := sizeRegex.FindStringSubmatch(attrs); sz != nil {
			f.size, _ = strconv.Atoi(sz[1])
		}
		fields = append(fields, f)
	}
	return fields
}

// resolveTypeLayout resolves a type against primitives and previously computed structs.
func resolveTypeLayout(typeName string, known map[string]typeLayout) (typeLayout, bool) {
	if l, ok := primitiveLayouts[typeName]; ok {
		return l, true
	}
	if l, ok := known[typeName]; ok {
		return l, true
	}
	inner, ok := strings.CutPrefix(typeName, "array<")
	if !ok || !strings.HasSuffix(inner, ">") {
		return typeLayout{}, false
	}
	inner = strings.TrimSuffix(inner, ">")
	elemName, countStr, sized := strings.Cut(inner, ",")
	elem, ok := resolveTypeLayout(strings.TrimSpace(elemName), known)
	if !ok {
		return typeLayout{}, false
	}
	stride := common.RoundUp(elem.align, elem.size)
	if !sized {
		return typeLayout{stride, elem.align}, true
	}
	count, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil {
		return typeLayout{}, false
	}
	return typeLayout{count * stride, elem.align}, true
}

// computeStructLayout places each field at its aligned offset and rounds the total up to
// the largest alignment. A trailing runtime-sized array contributes nothing.
func computeStructLayout(ps parsedStruct, known map[string]typeLayout) (typeLayout, bool) {
	offset, maxAlign := 0, 1
	for _, f := range ps.fields {
		if f.isBuiltin {
			continue
		}
		if strings.HasPrefix(f.typeName, "array<") && !strings.Contains(f.typeName, ",") {
			elem, ok := resolveTypeLayout(f.typeName, known)
			if !ok {
				return typeLayout{}, false
			}
			maxAlign = max(maxAlign, elem.align)
			break
		}
		l, ok := resolveTypeLayout(f.typeName, known)
		if !ok {
			return typeLayout{}, false
		}
		offset = common.RoundUp(l.align, offset)
		if f.size > 0 {
			offset += f.size
		} else {
			offset += l.size
		}
		maxAlign = max(maxAlign, l.align)
	}
	return typeLayout{common.RoundUp(maxAlign, offset), maxAlign}, true
}

// computeStructLayouts resolves structs iteratively so that structs may nest structs
// declared after them.
func computeStructLayouts(structs []parsedStruct) map[string]typeLayout {
	resolved := make(map[string]typeLayout, len(structs))
	remaining := slices.Clone(structs)
	for len(remaining) > 0 {
		next := remaining[:0]
		for _, ps := range remaining {
			if l, ok := computeStructLayout(ps, resolved); ok {
				resolved[ps.name] = l
			} else {
				next = append(next, ps)
			}
		}
		if len(next) == len(remaining) {
			break
		}
		remaining = next
	}
	return resolved
}

// VertexLayout builds a vertex buffer layout from the first struct whose fields all carry
// @location attributes, in field order with tightly packed offsets.
//
// Parameters:
//   - source: WGSL source declaring the vertex input struct
//
// Returns:
//   - gpu.VertexLayout: the layout
//   - bool: false if no vertex input struct with supported attribute types was found
func VertexLayout(source string) (gpu.VertexLayout, bool) {
	for _, ps := range parseStructBlocks(stripComments(source)) {
		if !isVertexInputStruct(ps) {
			continue
		}
		if layout, ok := buildVertexLayout(ps); ok {
			return layout, true
		}
	}
	return gpu.VertexLayout{}, false
}

var vertexFormats = map[string]struct {
	format gpu.VertexFormat
	size   int
}{
	"f32":       {gpu.VertexFloat32, 4},
	"vec2f":     {gpu.VertexFloat32x2, 8},
	"vec2<f32>": {gpu.VertexFloat32x2, 8},
	"vec3f":     {gpu.VertexFloat32x3, 12},
	"vec3<f32>": {gpu.VertexFloat32x3, 12},
	"vec4f":     {gpu.VertexFloat32x4, 16},
	"vec4<f32>": {gpu.VertexFloat32x4, 16},
	"u32":       {gpu.VertexUint32, 4},
}

func isVertexInputStruct(ps parsedStruct) bool {
	hasLocation := false
	for _, f := range ps.fields {
		if f.isBuiltin {
			return false
		}
		if f.location >= 0 {
			hasLocation = true
		}
	}
	return hasLocation
}

func buildVertexLayout(ps parsedStruct) (gpu.VertexLayout, bool) {
	layout := gpu.VertexLayout{Attributes: make([]gpu.VertexAttribute, 0, len(ps.fields))}
	for _, f := range ps.fields {
		info, ok := vertexFormats[f.typeName]
		if !ok {
			return gpu.VertexLayout{}, false
		}
		layout.Attributes = append(layout.Attributes, gpu.VertexAttribute{
			Format:   info.format,
			Offset:   layout.Stride,
			Location: f.location,
		})
		layout.Stride += info.size
	}
	return layout, true
}

// splitTypeParams splits "texture_2d<f32>" into ("texture_2d", "f32").
func splitTypeParams(typeName string) (string, string) {
	base, params, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return base, strings.TrimSpace(strings.TrimSuffix(params, ">"))
}

// stripComments removes line comments and nested block comments.
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

func stripLineComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch {
			case source[i] == '/' && source[i+1] == '*':
				depth++
				i++
				continue
			case source[i] == '*' && source[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}

// splitAtTopLevelCommas splits at commas outside angle brackets, so array<T, N> stays whole.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
