// Package loader imports model files into CPU-side geometry for the viewer. It sits
// outside the rendering core: the result is plain geometry.Geometry values and a node
// hierarchy that Model.Instantiate turns into meshes.
package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/prism/internal/logx"
)

var log = logx.Logger("loader")

// loader is the implementation of the Loader interface.
type loader struct {
	mu         sync.RWMutex
	modelCache map[string]*Model
	backends   map[string]loaderBackend
}

// Loader defines the public-facing interface for loading and caching models.
// The backend is selected by file extension; .gltf and .glb are supported.
type Loader interface {
	// Load imports a model file and caches the result by path. A cached model is
	// returned without touching the file again.
	//
	// Parameters:
	//   - path: the file path to the model file
	//
	// Returns:
	//   - *Model: the loaded model
	//   - error: error if the extension is unknown or loading fails
	Load(path string) (*Model, error)

	// LoadReader imports a self-contained model from a stream and caches it by name.
	//
	// Parameters:
	//   - name: the cache key and model name; its extension selects the backend
	//   - r: the reader providing the model data
	//
	// Returns:
	//   - *Model: the loaded model
	//   - error: error if the extension is unknown or decoding fails
	LoadReader(name string, r io.Reader) (*Model, error)

	// Cached retrieves a previously loaded model.
	//
	// Parameters:
	//   - key: the path or name the model was loaded under
	//
	// Returns:
	//   - *Model: the model, nil if absent
	Cached(key string) *Model

	// Forget drops a model from the cache.
	//
	// Parameters:
	//   - key: the path or name the model was loaded under
	Forget(key string)
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the glTF backend registered.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions
//
// Returns:
//   - Loader: the new Loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	gltfBackend := &gltfLoaderBackend{}
	l := &loader{
		modelCache: make(map[string]*Model),
		backends: map[string]loaderBackend{
			".gltf": gltfBackend,
			".glb":  gltfBackend,
		},
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// LoadGLTF imports a glTF or GLB file without caching.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - *Model: the loaded model
//   - error: error if loading fails
func LoadGLTF(path string) (*Model, error) {
	return (&gltfLoaderBackend{}).Load(path)
}

func (l *loader) Load(path string) (*Model, error) {
	if m := l.Cached(path); m != nil {
		return m, nil
	}
	backend, err := l.backend(path)
	if err != nil {
		return nil, err
	}
	m, err := backend.Load(path)
	if err != nil {
		return nil, err
	}
	l.store(path, m)
	log.Info("model loaded", "path", path, "nodes", len(m.Nodes), "primitives", m.PrimitiveCount())
	return m, nil
}

func (l *loader) LoadReader(name string, r io.Reader) (*Model, error) {
	if m := l.Cached(name); m != nil {
		return m, nil
	}
	backend, err := l.backend(name)
	if err != nil {
		return nil, err
	}
	m, err := backend.LoadReader(strings.TrimSuffix(name, filepath.Ext(name)), r)
	if err != nil {
		return nil, err
	}
	l.store(name, m)
	return m, nil
}

func (l *loader) Cached(key string) *Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[key]
}

func (l *loader) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.modelCache, key)
}

func (l *loader) store(key string, m *Model) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modelCache[key] = m
}

func (l *loader) backend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	b, ok := l.backends[ext]
	if !ok {
		return nil, fmt.Errorf("loader: unsupported model format %q", ext)
	}
	return b, nil
}
