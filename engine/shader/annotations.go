// annotations.go defines the annotation syntax of the prism shader pre-processor.
// Annotations are single-line WGSL comments prefixed with @prism: that compose files,
// mark named injection points and declare resource bindings for registered structs.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an annotation within a WGSL comment line.
const annotationPrefix = "@prism:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude splices another source file in place of the annotation. It is
	// consumed by the Resolver and never reaches the Builder.
	//
	// Syntax: //@prism:include <path>
	//
	// Example: //@prism:include prism/lighting.wgsl
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeInject marks a named injection point. The Builder replaces the line with
	// everything registered for that point.
	//
	// Syntax: //@prism:inject <point>
	//
	// Example: //@prism:inject structs
	AnnotationTypeInject AnnotationType = "inject"

	// AnnotationTypeGroup generates a @group/@binding variable declaration.
	//
	// Syntax: //@prism:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@prism:group 0 1 storage_read_write particles array<Particle>
	AnnotationTypeGroup AnnotationType = "group"
)

// AddressSpace is the storage class of a generated binding declaration.
type AddressSpace string

const (
	// AddressSpaceUniform declares a uniform buffer binding.
	AddressSpaceUniform AddressSpace = "uniform"

	// AddressSpaceStorageRead declares a read-only storage buffer binding.
	AddressSpaceStorageRead AddressSpace = "storage_read"

	// AddressSpaceStorageReadWrite declares a writable storage buffer binding.
	AddressSpaceStorageReadWrite AddressSpace = "storage_read_write"

	// AddressSpaceHandle declares a texture or sampler binding.
	AddressSpaceHandle AddressSpace = "handle"
)

// declaration returns the WGSL var keyword for the address space.
func (a AddressSpace) declaration() string {
	switch a {
	case AddressSpaceUniform:
		return "var<uniform>"
	case AddressSpaceStorageRead:
		return "var<storage, read>"
	case AddressSpaceStorageReadWrite:
		return "var<storage, read_write>"
	default:
		return "var"
	}
}

var validAddressSpaces = []AddressSpace{
	AddressSpaceUniform,
	AddressSpaceStorageRead,
	AddressSpaceStorageReadWrite,
	AddressSpaceHandle,
}

// Annotation is one parsed @prism: comment.
type Annotation struct {
	Type AnnotationType

	// Args holds the arguments after the type. For include it is the path, for inject the
	// point name, and for group the address space, variable name and type.
	Args []string

	// Line is the 1-based line number the annotation was found on.
	Line int

	// Group and Binding are set for group annotations only.
	Group   *int
	Binding *int
}

// parseAnnotation attempts to parse a single line of WGSL source as a @prism: annotation.
// Returns nil with no error for lines that are not annotations.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	comment, ok := strings.CutPrefix(trimmed, "//")
	if !ok {
		return nil, nil
	}
	after, ok := strings.CutPrefix(strings.TrimSpace(comment), annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @prism annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @prism include annotation requires exactly one path", lineNum)
		}
		return &Annotation{Type: AnnotationTypeInclude, Args: args[1:], Line: lineNum}, nil
	case AnnotationTypeInject:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @prism inject annotation requires exactly one point", lineNum)
		}
		if !slices.Contains(injectionOrder, InjectionPoint(args[1])) {
			return nil, fmt.Errorf("line %d: unknown injection point %q", lineNum, args[1])
		}
		return &Annotation{Type: AnnotationTypeInject, Args: args[1:], Line: lineNum}, nil
	case AnnotationTypeGroup:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @prism group annotation requires five arguments (group, binding, address space, name, type)", lineNum)
		}
		group, err := strconv.Atoi(args[1])
		if err != nil || group < 0 {
			return nil, fmt.Errorf("line %d: invalid group number %q in @prism group annotation", lineNum, args[1])
		}
		binding, err := strconv.Atoi(args[2])
		if err != nil || binding < 0 {
			return nil, fmt.Errorf("line %d: invalid binding number %q in @prism group annotation", lineNum, args[2])
		}
		if !slices.Contains(validAddressSpaces, AddressSpace(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @prism group annotation", lineNum, args[3])
		}
		return &Annotation{
			Type:    AnnotationTypeGroup,
			Args:    args[3:],
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @prism annotation type %q", lineNum, args[0])
	}
}

// parseHashInclude recognizes the C-style `#include "path"` directive.
func parseHashInclude(line string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "#include")
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 {
		return "", false
	}
	switch {
	case rest[0] == '"' && rest[len(rest)-1] == '"':
		return rest[1 : len(rest)-1], true
	case rest[0] == '<' && rest[len(rest)-1] == '>':
		return rest[1 : len(rest)-1], true
	default:
		return "", false
	}
}
