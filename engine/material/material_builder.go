package material

import (
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/shader"
)

// MaterialBuilderOption is a function that configures a material during construction.
type MaterialBuilderOption func(*material)

// WithSource sets inline WGSL for the material's shader.
//
// Parameters:
//   - text: the shader source; includes resolve against the working directory
//
// Returns:
//   - MaterialBuilderOption: a function that applies the source option to a material
func WithSource(text string) MaterialBuilderOption {
	return func(m *material) {
		m.source = text
	}
}

// WithSourcePath loads the material's shader from a file.
func WithSourcePath(path string) MaterialBuilderOption {
	return func(m *material) {
		m.path = path
	}
}

// WithLive makes the material's shader recompile whenever its source file or one of its
// includes changes. Only meaningful with WithSourcePath.
func WithLive() MaterialBuilderOption {
	return func(m *material) {
		m.live = true
	}
}

// WithResolver sets the include resolver of the material's shader.
func WithResolver(r shader.Resolver) MaterialBuilderOption {
	return func(m *material) {
		m.resolver = r
	}
}

// WithShaderOptions passes additional options to the material's shader.
//
// Parameters:
//   - opts: options applied after the ones the material derives from its own configuration
//
// Returns:
//   - MaterialBuilderOption: a function that appends the shader options
func WithShaderOptions(opts ...shader.ShaderBuilderOption) MaterialBuilderOption {
	return func(m *material) {
		m.shaderOpts = append(m.shaderOpts, opts...)
	}
}

// WithShader makes the material draw with an existing shader instead of creating one. The
// material does not release a shader it did not create.
func WithShader(s shader.Shader) MaterialBuilderOption {
	return func(m *material) {
		m.shader = s
	}
}

// WithTexture declares a texture slot. Slots are numbered in declaration order.
//
// Parameters:
//   - name: the texture variable name; the sampler is declared as name + "Sampler"
//   - typ: the WGSL texture type, texture_2d<f32> when empty
//
// Returns:
//   - MaterialBuilderOption: a function that declares the texture slot
func WithTexture(name, typ string) MaterialBuilderOption {
	return func(m *material) {
		m.textureDecl = append(m.textureDecl, shader.TextureSlot{Name: name, Type: typ})
	}
}

// WithBlending sets the blending mode, keeping the rest of the pipeline state.
func WithBlending(b gpu.Blending) MaterialBuilderOption {
	return func(m *material) {
		if !m.stateSet {
			m.state, m.stateSet = gpu.NewPipelineState(), true
		}
		m.state.Blending = b
	}
}

// WithPipelineState sets the fixed-function state the shader compiles against.
func WithPipelineState(state gpu.PipelineState) MaterialBuilderOption {
	return func(m *material) {
		m.state, m.stateSet = state, true
	}
}

// WithDelegate sets the receiver of update notifications.
func WithDelegate(d Delegate) MaterialBuilderOption {
	return func(m *material) {
		m.delegate = d
	}
}
