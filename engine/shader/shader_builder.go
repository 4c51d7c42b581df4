package shader

import (
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/parameter"
)

// ShaderBuilderOption is a function that configures a shader during construction.
type ShaderBuilderOption func(*shader)

// WithSourcePath reads the shader body from a file resolved by the shader's Resolver.
//
// Parameters:
//   - path: the file path, absolute or relative to the resolver's search paths
//
// Returns:
//   - ShaderBuilderOption: a function that sets the source path
func WithSourcePath(path string) ShaderBuilderOption {
	return func(s *shader) {
		s.path = path
	}
}

// WithSource uses inline text as the shader body. Includes in the text are still resolved.
func WithSource(text string) ShaderBuilderOption {
	return func(s *shader) {
		s.inline = text
	}
}

// WithResolver sets the include resolver. The default resolves against the working
// directory and the built-in library.
func WithResolver(r Resolver) ShaderBuilderOption {
	return func(s *shader) {
		s.resolver = r
	}
}

// WithTemplate sets the template the body is appended to. An empty path compiles the body
// on its own.
//
// Parameters:
//   - path: the template path, DefaultTemplate unless changed
//
// Returns:
//   - ShaderBuilderOption: a function that sets the template
func WithTemplate(path string) ShaderBuilderOption {
	return func(s *shader) {
		s.template = path
	}
}

// WithParameters generates the uniforms struct from g instead of parsing it from the
// source. A declaration of the same struct in the source is dropped.
//
// Parameters:
//   - g: the parameter group; its label is the struct name
//
// Returns:
//   - ShaderBuilderOption: a function that sets the parameters
func WithParameters(g *parameter.Group) ShaderBuilderOption {
	return func(s *shader) {
		s.params = g
	}
}

// WithPipelineState sets the fixed-function state of the main pipeline.
func WithPipelineState(state gpu.PipelineState) ShaderBuilderOption {
	return func(s *shader) {
		s.state = state
	}
}

// WithShadowState sets the fixed-function state of the shadow pipeline.
func WithShadowState(state gpu.PipelineState) ShaderBuilderOption {
	return func(s *shader) {
		s.shadow = state
	}
}

// WithTexture declares a material texture and its sampler at the next free texture slot.
//
// Parameters:
//   - name: the texture variable name; the sampler is named <name>Sampler
//   - typ: the WGSL texture type, or "" for texture_2d<f32>
//
// Returns:
//   - ShaderBuilderOption: a function that appends the texture slot
func WithTexture(name, typ string) ShaderBuilderOption {
	return func(s *shader) {
		s.textures = append(s.textures, TextureSlot{Name: name, Type: typ})
	}
}

// WithVertexSnippet splices statements into the shared vertex function before the
// transform. The statements may modify position, normal and uv.
func WithVertexSnippet(text string) ShaderBuilderOption {
	return func(s *shader) {
		s.snippet = text
	}
}

// WithVertexInput replaces the VertexInput struct declaration and the vertex layout.
//
// Parameters:
//   - source: the struct declaration
//   - layout: the vertex buffer layout matching it
//
// Returns:
//   - ShaderBuilderOption: a function that sets the vertex input
func WithVertexInput(source string, layout gpu.VertexLayout) ShaderBuilderOption {
	return func(s *shader) {
		s.vertex = source
		s.layout = layout
	}
}

// WithDelegate sets the receiver of compile notifications.
func WithDelegate(d Delegate) ShaderBuilderOption {
	return func(s *shader) {
		s.delegate = d
	}
}

// WithWatcher shares a file watcher between live shaders. Without it every live shader
// starts its own.
func WithWatcher(w *Watcher) ShaderBuilderOption {
	return func(s *shader) {
		s.watcher = w
	}
}

// WithExternal declares an external binding at slot of ExternalGroup.
func WithExternal(slot int, e External) ShaderBuilderOption {
	return func(s *shader) {
		if e.Space == "" {
			e.Space = AddressSpaceUniform
		}
		s.externals[slot] = e
	}
}
