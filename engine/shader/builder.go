// builder.go implements the prism shader pre-processor. It replaces @prism:inject markers
// with registered text, expands @prism:group annotations into binding declarations and
// keeps exactly one declaration of every struct type in the assembled source.
package shader

import (
	"fmt"
	"regexp"
	"strings"
)

// InjectionPoint names a place in a template where generated source is spliced.
type InjectionPoint string

const (
	// InjectConstants receives the shared constants header.
	InjectConstants InjectionPoint = "constants"

	// InjectStructs receives every registered struct declaration, once per type name.
	InjectStructs InjectionPoint = "structs"

	// InjectVertexAttributes receives the VertexInput struct of the geometry layout.
	InjectVertexAttributes InjectionPoint = "vertex_attributes"

	// InjectVertexUniforms receives the VertexUniforms struct meshes write every frame.
	InjectVertexUniforms InjectionPoint = "vertex_uniforms"

	// InjectBindings receives the generated @group/@binding declarations.
	InjectBindings InjectionPoint = "bindings"

	// InjectVertex receives statements spliced into the body of the shared vertex function,
	// where they may modify position, normal and uv before the transform.
	InjectVertex InjectionPoint = "vertex"
)

// injectionOrder is the order points are emitted in when a source lacks their marker.
var injectionOrder = []InjectionPoint{
	InjectConstants,
	InjectVertexAttributes,
	InjectVertexUniforms,
	InjectStructs,
	InjectBindings,
	InjectVertex,
}

// headerPoints may be emitted at the top of a source that has no marker for them.
var headerPoints = map[InjectionPoint]bool{
	InjectConstants:        true,
	InjectVertexAttributes: true,
	InjectVertexUniforms:   true,
	InjectStructs:          true,
	InjectBindings:         true,
}

var (
	// structBlockRegex matches struct declarations and captures the name
	structBlockRegex = regexp.MustCompile(`(?m)^[ \t]*struct\s+(\w+)\s*\{[^}]*\}[ \t]*;?[ \t]*\n?`)

	// identRegex matches a bare type identifier
	identRegex = regexp.MustCompile(`^[A-Za-z_]\w*$`)
)

// structDecl is a struct declaration registered with the Builder.
type structDecl struct {
	name   string
	source string
}

// binding is a generated resource declaration.
type binding struct {
	group   int
	binding int
	space   AddressSpace
	name    string
	typ     string
}

func (b binding) String() string {
	return fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", b.group, b.binding, b.space.declaration(), b.name, b.typ)
}

// Builder assembles shader source from a template and generated fragments. A Builder is
// filled once per compile and is not safe for concurrent use.
type Builder struct {
	inject   map[InjectionPoint][]string
	structs  []structDecl
	names    map[string]bool
	bindings []binding
	slots    map[[2]int]string
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		inject: make(map[InjectionPoint][]string),
		names:  make(map[string]bool),
		slots:  make(map[[2]int]string),
	}
}

// Inject appends text to an injection point.
//
// Parameters:
//   - point: the injection point
//   - text: the source to splice, emitted in the order it was added
func (b *Builder) Inject(point InjectionPoint, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	b.inject[point] = append(b.inject[point], strings.TrimRight(text, "\n"))
}

// Struct registers a struct declaration emitted at InjectStructs. A second registration
// of the same type name is ignored.
//
// Parameters:
//   - name: the struct type name
//   - source: the full declaration
//
// Returns:
//   - bool: false if the name was already registered
func (b *Builder) Struct(name, source string) bool {
	if b.names[name] || strings.TrimSpace(source) == "" {
		return false
	}
	b.names[name] = true
	b.structs = append(b.structs, structDecl{name: name, source: strings.TrimRight(source, "\n")})
	return true
}

// Declare registers a struct declaration under name like Struct but emits it at point, for
// the vertex input and vertex uniform structs that templates place ahead of the others.
func (b *Builder) Declare(point InjectionPoint, name, source string) bool {
	if point == InjectStructs {
		return b.Struct(name, source)
	}
	if b.names[name] || strings.TrimSpace(source) == "" {
		return false
	}
	b.names[name] = true
	b.Inject(point, source)
	return true
}

// Bind registers a binding declaration emitted at InjectBindings.
//
// Parameters:
//   - group: the bind group index
//   - slot: the binding index within the group
//   - space: the address space of the variable
//   - name: the variable name
//   - typ: the WGSL type of the variable
//
// Returns:
//   - error: error if (group, slot) is already bound to another variable
func (b *Builder) Bind(group, slot int, space AddressSpace, name, typ string) error {
	key := [2]int{group, slot}
	if prev, ok := b.slots[key]; ok {
		return fmt.Errorf("shader: @group(%d) @binding(%d) bound to both %s and %s", group, slot, prev, name)
	}
	b.slots[key] = name
	b.bindings = append(b.bindings, binding{group: group, binding: slot, space: space, name: name, typ: typ})
	return nil
}

// Build splices the registered fragments into source. Struct declarations in source whose
// type name was registered, or which repeat an earlier declaration, are removed so each
// type is declared exactly once. Header injection points without a marker are emitted at
// the top of the output.
//
// Parameters:
//   - source: the expanded template and body
//
// Returns:
//   - string: the assembled source
//   - error: error for malformed annotations, unknown binding types, unresolved includes or
//     a vertex injection without a marker
func (b *Builder) Build(source string) (string, error) {
	source = b.dedupeStructs(source)
	declared := make(map[string]bool, len(b.names))
	for name := range b.names {
		declared[name] = true
	}
	for _, m := range structBlockRegex.FindAllStringSubmatch(source, -1) {
		declared[m[1]] = true
	}

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	marked := make(map[InjectionPoint]bool)

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInject:
			point := InjectionPoint(a.Args[0])
			if marked[point] {
				continue
			}
			marked[point] = true
			out = append(out, b.emit(point)...)
		case AnnotationTypeGroup:
			decl := binding{group: *a.Group, binding: *a.Binding, space: AddressSpace(a.Args[0]), name: a.Args[1], typ: a.Args[2]}
			if err := checkType(decl.typ, declared); err != nil {
				return "", fmt.Errorf("line %d: %w", i+1, err)
			}
			out = append(out, decl.String())
		case AnnotationTypeInclude:
			return "", fmt.Errorf("line %d: unresolved include %q", i+1, a.Args[0])
		}
	}

	var header []string
	for _, point := range injectionOrder {
		if marked[point] || len(b.emit(point)) == 0 {
			continue
		}
		if !headerPoints[point] {
			return "", fmt.Errorf("shader: source has no %q injection point", point)
		}
		header = append(header, b.emit(point)...)
	}
	if len(header) > 0 {
		out = append(header, out...)
	}
	return strings.Join(out, "\n"), nil
}

func (b *Builder) emit(point InjectionPoint) []string {
	switch point {
	case InjectStructs:
		out := make([]string, 0, len(b.structs)+len(b.inject[point]))
		for _, s := range b.structs {
			out = append(out, s.source)
		}
		return append(out, b.inject[point]...)
	case InjectBindings:
		out := make([]string, 0, len(b.bindings)+len(b.inject[point]))
		for _, bd := range b.bindings {
			out = append(out, bd.String())
		}
		return append(out, b.inject[point]...)
	default:
		return b.inject[point]
	}
}

// dedupeStructs removes struct declarations the builder will emit itself and every
// repeated declaration after the first.
func (b *Builder) dedupeStructs(source string) string {
	seen := make(map[string]bool)
	return structBlockRegex.ReplaceAllStringFunc(source, func(block string) string {
		name := structBlockRegex.FindStringSubmatch(block)[1]
		if b.names[name] || seen[name] {
			return ""
		}
		seen[name] = true
		return block
	})
}

// checkType verifies that a generated binding refers to a declared struct or a builtin
// WGSL type.
func checkType(typ string, declared map[string]bool) error {
	if inner, ok := strings.CutPrefix(typ, "array<"); ok {
		inner = strings.TrimSuffix(inner, ">")
		if elem, _, found := strings.Cut(inner, ","); found {
			inner = elem
		}
		return checkType(strings.TrimSpace(inner), declared)
	}
	if !identRegex.MatchString(typ) {
		return nil
	}
	if declared[typ] || isBuiltinType(typ) {
		return nil
	}
	return fmt.Errorf("unknown type %q in @prism group annotation", typ)
}

func isBuiltinType(typ string) bool {
	if _, ok := primitiveLayouts[typ]; ok {
		return true
	}
	return strings.HasPrefix(typ, "texture_") || strings.HasPrefix(typ, "sampler")
}
