package loader

import "io"

// loaderBackend defines the format-specific half of the Loader. Implementations turn a
// file or stream into a Model whose geometry lives on the CPU only.
type loaderBackend interface {
	// Load imports the model at path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - *Model: the imported model
	//   - error: error if the file cannot be opened or decoded
	Load(path string) (*Model, error)

	// LoadReader imports a self-contained model from a stream.
	//
	// Parameters:
	//   - name: the name given to the model
	//   - r: the reader providing the model data
	//
	// Returns:
	//   - *Model: the imported model
	//   - error: error if the stream cannot be decoded
	LoadReader(name string, r io.Reader) (*Model, error)
}
