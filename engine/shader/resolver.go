package shader

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrIncludeNotFound is returned when an include path matches no search path.
var ErrIncludeNotFound = errors.New("shader: include not found")

//go:embed assets
var assets embed.FS

// BuiltinFS returns the built-in shader library rooted so that paths read "prism/vertex.wgsl".
func BuiltinFS() fs.FS {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(fmt.Sprintf("shader: embedded library: %v", err))
	}
	return sub
}

// Source is a fully expanded shader file.
type Source struct {
	// Path is the resolved location of the root file, or the label of inline source.
	Path string

	// Text is the source with every include spliced in.
	Text string

	// Dependencies lists the files on disk the text was read from, root first. Files from
	// embedded libraries are not listed since they cannot change.
	Dependencies []string
}

// Resolver turns shader paths into expanded source text.
type Resolver interface {
	// Parse reads the file at path and expands its includes.
	//
	// Parameters:
	//   - path: a file path, absolute or relative to the search paths
	//
	// Returns:
	//   - Source: the expanded text and the files it depends on
	//   - error: ErrIncludeNotFound, wrapped with the missing path, or a read error
	Parse(path string) (Source, error)

	// Expand expands the includes of inline source.
	//
	// Parameters:
	//   - label: a name for error messages
	//   - text: the source
	//
	// Returns:
	//   - Source: the expanded text and the files it depends on
	//   - error: ErrIncludeNotFound, wrapped with the missing path, or a read error
	Expand(label, text string) (Source, error)
}

// FileResolver resolves includes against directories on disk, then against file systems
// such as embedded libraries. Every file is spliced at most once per expansion, so shared
// headers can be included from several files without duplicate declarations.
type FileResolver struct {
	paths []string
	libs  []fs.FS
}

var _ Resolver = &FileResolver{}

// NewFileResolver creates a resolver with the built-in library as its last lookup.
//
// Parameters:
//   - opts: a variadic list of ResolverBuilderOption functions
//
// Returns:
//   - *FileResolver: the new resolver
func NewFileResolver(opts ...ResolverBuilderOption) *FileResolver {
	r := &FileResolver{}
	for _, opt := range opts {
		opt(r)
	}
	r.libs = append(r.libs, BuiltinFS())
	return r
}

// expansion is the state of one Parse or Expand call.
type expansion struct {
	seen map[string]bool
	deps []string
}

// location is a resolved file: either a path on disk or a path inside a library.
type location struct {
	disk   string
	lib    fs.FS
	libIdx int
	name   string
}

func (l location) key() string {
	if l.lib != nil {
		return fmt.Sprintf("lib%d:%s", l.libIdx, l.name)
	}
	return l.disk
}

func (r *FileResolver) Parse(p string) (Source, error) {
	loc, ok := r.locate(p, location{})
	if !ok {
		return Source{}, fmt.Errorf("%w: %s", ErrIncludeNotFound, p)
	}
	e := &expansion{seen: make(map[string]bool)}
	text, err := r.expandFile(loc, e)
	if err != nil {
		return Source{}, err
	}
	return Source{Path: loc.display(), Text: text, Dependencies: e.deps}, nil
}

func (r *FileResolver) Expand(label, text string) (Source, error) {
	e := &expansion{seen: make(map[string]bool)}
	out, err := r.expandText(label, text, location{}, e)
	if err != nil {
		return Source{}, err
	}
	return Source{Path: label, Text: out, Dependencies: e.deps}, nil
}

func (l location) display() string {
	if l.lib != nil {
		return l.name
	}
	return l.disk
}

func (r *FileResolver) expandFile(loc location, e *expansion) (string, error) {
	if e.seen[loc.key()] {
		return "", nil
	}
	e.seen[loc.key()] = true

	var data []byte
	var err error
	if loc.lib != nil {
		data, err = fs.ReadFile(loc.lib, loc.name)
	} else {
		data, err = os.ReadFile(loc.disk)
		e.deps = append(e.deps, loc.disk)
	}
	if err != nil {
		return "", fmt.Errorf("shader: read %s: %w", loc.display(), err)
	}
	return r.expandText(loc.display(), string(data), loc, e)
}

func (r *FileResolver) expandText(label, text string, from location, e *expansion) (string, error) {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		include, ok := parseHashInclude(line)
		if !ok {
			a, err := parseAnnotation(line, i+1)
			if err != nil {
				return "", fmt.Errorf("shader: %s: %w", label, err)
			}
			if a == nil || a.Type != AnnotationTypeInclude {
				out = append(out, line)
				continue
			}
			include = a.Args[0]
		}

		loc, ok := r.locate(include, from)
		if !ok {
			return "", fmt.Errorf("%w: %s (included from %s:%d)", ErrIncludeNotFound, include, label, i+1)
		}
		expanded, err := r.expandFile(loc, e)
		if err != nil {
			return "", err
		}
		out = append(out, expanded)
	}
	return strings.Join(out, "\n"), nil
}

// locate finds p relative to the including file, then the search paths, then the
// libraries in order.
func (r *FileResolver) locate(p string, from location) (location, bool) {
	if filepath.IsAbs(p) {
		if isFile(p) {
			return location{disk: filepath.Clean(p)}, true
		}
		return location{}, false
	}

	switch {
	case from.lib != nil:
		name := path.Join(path.Dir(from.name), p)
		if isLibFile(from.lib, name) {
			return location{lib: from.lib, libIdx: from.libIdx, name: name}, true
		}
	case from.disk != "":
		candidate := filepath.Join(filepath.Dir(from.disk), p)
		if isFile(candidate) {
			return location{disk: candidate}, true
		}
	}

	for _, dir := range r.paths {
		candidate := filepath.Join(dir, p)
		if isFile(candidate) {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				abs = candidate
			}
			return location{disk: abs}, true
		}
	}
	if isFile(p) {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		return location{disk: abs}, true
	}

	name := path.Clean(filepath.ToSlash(p))
	for i, lib := range r.libs {
		if isLibFile(lib, name) {
			return location{lib: lib, libIdx: i, name: name}, true
		}
	}
	return location{}, false
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func isLibFile(lib fs.FS, name string) bool {
	info, err := fs.Stat(lib, name)
	return err == nil && !info.IsDir()
}

// ResolverBuilderOption is a function that configures a FileResolver during construction.
type ResolverBuilderOption func(*FileResolver)

// WithSearchPaths adds directories searched for relative include paths, in order.
//
// Parameters:
//   - dirs: the directories
//
// Returns:
//   - ResolverBuilderOption: a function that appends the search paths
func WithSearchPaths(dirs ...string) ResolverBuilderOption {
	return func(r *FileResolver) {
		r.paths = append(r.paths, dirs...)
	}
}

// WithFS adds a file system searched after the directories and before the built-in
// library. Packages use it to expose their own embedded shader files.
func WithFS(lib fs.FS) ResolverBuilderOption {
	return func(r *FileResolver) {
		if lib != nil {
			r.libs = append(r.libs, lib)
		}
	}
}
