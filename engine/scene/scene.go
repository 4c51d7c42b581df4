// Package scene groups an object graph with the camera, lights and compute systems that
// are updated with it every frame.
package scene

import (
	"slices"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/camera"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/light"
	"github.com/Carmen-Shannon/prism/engine/mesh"
	"github.com/Carmen-Shannon/prism/engine/object"
	"github.com/Carmen-Shannon/prism/internal/logx"
)

var log = logx.Logger("scene")

// ComputeSystem is a compute pass the scene runs before drawing, such as a
// compute.BufferComputeSystem driving a particle mesh.
type ComputeSystem interface {
	Setup(ctx *gpu.Context) error
	Update(cmd gpu.CommandBuffer) bool
	Release()
}

// Scene defines the interface for a renderable world.
//
// A Scene owns the root of an object graph. Lights are found by walking the graph, so a
// light.Light is added like any other node and follows its parent's transform.
type Scene interface {
	// Name retrieves the name of the Scene.
	//
	// Returns:
	//   - string: the name of the Scene
	Name() string

	// SetName sets the name of the Scene.
	//
	// Parameters:
	//   - name: the new name
	SetName(name string)

	// Active reports whether the Scene is updated and drawn.
	//
	// Returns:
	//   - bool: true if the Scene is active
	Active() bool

	// SetActive sets whether the Scene is updated and drawn.
	//
	// Parameters:
	//   - active: the new state
	SetActive(active bool)

	// Camera retrieves the camera the Scene is viewed through.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// SetCamera replaces the camera the Scene is viewed through.
	//
	// Parameters:
	//   - cam: the new camera
	SetCamera(cam camera.Camera)

	// Root retrieves the root of the object graph.
	//
	// Returns:
	//   - *object.Object: the root node
	Root() *object.Object

	// Add attaches nodes to the root. Nodes added after Setup receive the Scene's context.
	//
	// Parameters:
	//   - nodes: the nodes to add
	Add(nodes ...object.Node)

	// Remove detaches a direct child of the root.
	//
	// Parameters:
	//   - n: the node to remove
	//
	// Returns:
	//   - bool: true if n was a child of the root
	Remove(n object.Node) bool

	// Lights retrieves the light system materials bind to.
	//
	// Returns:
	//   - *light.System: the Scene's lights
	Lights() *light.System

	// Shadow retrieves the shadow map, or nil when shadows are disabled.
	//
	// Returns:
	//   - *light.Shadow: the shadow map
	Shadow() *light.Shadow

	// SetShadow replaces the shadow map. The previous one is released.
	//
	// Parameters:
	//   - s: the new shadow map, or nil to disable shadows
	SetShadow(s *light.Shadow)

	// AddCompute registers a compute system run every frame before the draws, in
	// registration order.
	//
	// Parameters:
	//   - c: the compute system
	AddCompute(c ComputeSystem)

	// Computes retrieves the registered compute systems.
	//
	// Returns:
	//   - []ComputeSystem: the systems in run order
	Computes() []ComputeSystem

	// CullingDisabled reports whether frustum culling is disabled.
	//
	// Returns:
	//   - bool: true if every visible mesh is drawn
	CullingDisabled() bool

	// SetCullingDisabled enables or disables frustum culling.
	//
	// Parameters:
	//   - disabled: true to draw every visible mesh
	SetCullingDisabled(disabled bool)

	// Setup hands ctx to the graph, the lights, the shadow map and the compute systems.
	// Failures are logged and leave the failing part inert.
	//
	// Parameters:
	//   - ctx: the GPU context
	Setup(ctx *gpu.Context)

	// Context retrieves the context passed to Setup.
	//
	// Returns:
	//   - *gpu.Context: the context, nil before Setup
	Context() *gpu.Context

	// Update runs the per-frame work that precedes drawing: node update hooks, light
	// gathering and packing, shadow fitting and the compute systems, which are encoded
	// into cmd.
	//
	// Parameters:
	//   - cmd: the command buffer of the frame
	//   - frame: the renderer's frame counter
	Update(cmd gpu.CommandBuffer, frame uint64)

	// Meshes collects the meshes to draw from cam in traversal order. Invisible nodes hide
	// their subtree, and single-instance meshes outside cam's frustum are culled unless
	// culling is disabled.
	//
	// Parameters:
	//   - cam: the camera
	//
	// Returns:
	//   - []*mesh.Mesh: the meshes to draw
	Meshes(cam camera.Camera) []*mesh.Mesh

	// ShadowCasters collects the visible meshes that cast shadows, in traversal order.
	//
	// Returns:
	//   - []*mesh.Mesh: the meshes to draw into the shadow map
	ShadowCasters() []*mesh.Mesh

	// Release releases the GPU resources of the graph, the lights, the shadow map and the
	// compute systems.
	Release()
}

// scene is the implementation of the Scene interface.
type scene struct {
	name            string
	active          bool
	camera          camera.Camera
	root            *object.Object
	lights          *light.System
	shadow          *light.Shadow
	computes        []ComputeSystem
	cullingDisabled bool
	ctx             *gpu.Context
}

var _ Scene = &scene{}

// NewScene creates a new active Scene.
//
// Parameters:
//   - name: the name of the Scene
//   - cam: the camera the Scene is viewed through
//   - options: a variadic list of SceneBuilderOption functions
//
// Returns:
//   - Scene: the new Scene
func NewScene(name string, cam camera.Camera, options ...SceneBuilderOption) Scene {
	s := &scene{
		name:   name,
		active: true,
		camera: cam,
		root:   object.NewObject(object.WithLabel(name)),
		lights: light.NewSystem(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *scene) Name() string                { return s.name }
func (s *scene) SetName(name string)         { s.name = name }
func (s *scene) Active() bool                { return s.active }
func (s *scene) SetActive(active bool)       { s.active = active }
func (s *scene) Camera() camera.Camera       { return s.camera }
func (s *scene) SetCamera(cam camera.Camera) { s.camera = cam }
func (s *scene) Root() *object.Object        { return s.root }
func (s *scene) Lights() *light.System       { return s.lights }
func (s *scene) Shadow() *light.Shadow       { return s.shadow }
func (s *scene) Computes() []ComputeSystem   { return slices.Clone(s.computes) }
func (s *scene) CullingDisabled() bool       { return s.cullingDisabled }
func (s *scene) SetCullingDisabled(d bool)   { s.cullingDisabled = d }
func (s *scene) Context() *gpu.Context       { return s.ctx }

func (s *scene) Add(nodes ...object.Node) {
	for _, n := range nodes {
		s.root.Add(n)
	}
}

func (s *scene) Remove(n object.Node) bool {
	return s.root.Remove(n)
}

func (s *scene) SetShadow(sh *light.Shadow) {
	if s.shadow == sh {
		return
	}
	if s.shadow != nil {
		s.shadow.Release()
	}
	s.shadow = sh
	if sh != nil && s.ctx != nil {
		if err := sh.Setup(s.ctx); err != nil {
			log.Error("cannot set up shadow map", "scene", s.name, "err", err)
		}
	}
}

func (s *scene) AddCompute(c ComputeSystem) {
	if c == nil || slices.Contains(s.computes, c) {
		return
	}
	s.computes = append(s.computes, c)
	if s.ctx != nil {
		if err := c.Setup(s.ctx); err != nil {
			log.Error("cannot set up compute system", "scene", s.name, "err", err)
		}
	}
}

func (s *scene) Setup(ctx *gpu.Context) {
	s.ctx = ctx
	s.root.SetContext(ctx)
	if err := s.lights.Setup(ctx); err != nil {
		log.Error("cannot set up lights", "scene", s.name, "err", err)
	}
	if s.shadow != nil {
		if err := s.shadow.Setup(ctx); err != nil {
			log.Error("cannot set up shadow map", "scene", s.name, "err", err)
		}
	}
	for _, c := range s.computes {
		if err := c.Setup(ctx); err != nil {
			log.Error("cannot set up compute system", "scene", s.name, "err", err)
		}
	}
}

func (s *scene) Update(cmd gpu.CommandBuffer, frame uint64) {
	s.root.Traverse(func(n object.Node) bool {
		b := n.Base()
		if !b.Visible() {
			return false
		}
		b.Tick()
		return true
	})

	s.lights.Gather(s.root)
	s.lights.Update(frame)
	if s.shadow != nil && s.camera != nil {
		s.shadow.Update(s.camera.Base().WorldPosition(), frame)
	}
	for _, c := range s.computes {
		c.Update(cmd)
	}
}

func (s *scene) Meshes(cam camera.Camera) []*mesh.Mesh {
	cull := !s.cullingDisabled && cam != nil
	var frustum common.Frustum
	if cull {
		frustum = cam.Frustum()
	}
	var out []*mesh.Mesh
	s.root.Traverse(func(n object.Node) bool {
		if !n.Base().Visible() {
			return false
		}
		m, ok := n.(*mesh.Mesh)
		if !ok {
			return true
		}
		if cull && m.InstanceCount() == 1 && !frustum.ContainsBox(m.LocalBounds().Transform(m.WorldMatrix())) {
			return true
		}
		out = append(out, m)
		return true
	})
	return out
}

func (s *scene) ShadowCasters() []*mesh.Mesh {
	var out []*mesh.Mesh
	s.root.Traverse(func(n object.Node) bool {
		if !n.Base().Visible() {
			return false
		}
		if m, ok := n.(*mesh.Mesh); ok && m.CastShadow() {
			out = append(out, m)
		}
		return true
	})
	return out
}

func (s *scene) Release() {
	s.root.Traverse(func(n object.Node) bool {
		if m, ok := n.(*mesh.Mesh); ok {
			m.Release()
		}
		return true
	})
	s.lights.Release()
	if s.shadow != nil {
		s.shadow.Release()
	}
	for _, c := range s.computes {
		c.Release()
	}
	s.ctx = nil
}
