// Package mesh binds geometry to materials in the transform graph and records their draws.
package mesh

import (
	"fmt"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/buffer"
	"github.com/Carmen-Shannon/prism/engine/camera"
	"github.com/Carmen-Shannon/prism/engine/geometry"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/material"
	"github.com/Carmen-Shannon/prism/engine/object"
	"github.com/Carmen-Shannon/prism/engine/raycast"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/Carmen-Shannon/prism/internal/logx"
	"github.com/go-gl/mathgl/mgl32"
)

var log = logx.Logger("mesh")

// Mesh is a node of the transform graph drawing one geometry, either whole with its own
// material or as submeshes each with a material of their own.
type Mesh struct {
	*object.Object

	geometry  geometry.Geometry
	material  material.Material
	submeshes []*Submesh

	cullMode      gpu.CullMode
	winding       gpu.Winding
	windingSet    bool
	fillMode      gpu.FillMode
	instances     int
	castShadow    bool
	receiveShadow bool

	main   passUniforms
	shadow passUniforms
	failed bool
}

// passUniforms is the vertex uniform ring of one render pass. The shadow and main passes
// draw a mesh from different cameras within one frame, so each has a ring of its own.
type passUniforms struct {
	uniforms VertexUniforms
	buffer   buffer.UniformBuffer
	frame    uint64
	updated  bool
}

// update writes the uniforms for cam into the next region, once per frame. It reports
// whether frame was new.
func (p *passUniforms) update(model mgl32.Mat4, cam camera.Camera, frame uint64) bool {
	if p.updated && frame == p.frame {
		return false
	}
	p.frame, p.updated = frame, true
	p.uniforms.Compute(model, cam)
	if p.buffer != nil {
		p.buffer.Update()
	}
	return true
}

func (p *passUniforms) release() {
	if p.buffer != nil {
		p.buffer.Release()
		p.buffer = nil
	}
	p.updated = false
}

var (
	_ object.Node         = &Mesh{}
	_ object.ContextAware = &Mesh{}
	_ object.Bounded      = &Mesh{}
	_ raycast.Target      = &Mesh{}
	_ geometry.Delegate   = &Mesh{}
)

// NewMesh creates a mesh drawing geom. The mesh becomes the geometry's delegate.
//
// Parameters:
//   - geom: the geometry to draw
//   - mat: the material of the whole mesh, or nil when only submeshes are drawn
//   - options: functional options to configure the mesh
//
// Returns:
//   - *Mesh: the new mesh
func NewMesh(geom geometry.Geometry, mat material.Material, options ...MeshBuilderOption) *Mesh {
	if geom == nil {
		panic("mesh: nil geometry")
	}
	m := &Mesh{
		Object:     object.NewObject(object.WithLabel("mesh")),
		geometry:   geom,
		material:   mat,
		instances:  1,
		castShadow: true,
	}
	m.SetOwner(m)
	for _, option := range options {
		option(m)
	}
	geom.SetDelegate(m)
	m.GeometryUpdated(geom)
	return m
}

func (m *Mesh) Geometry() geometry.Geometry    { return m.geometry }
func (m *Mesh) Material() material.Material    { return m.material }
func (m *Mesh) Submeshes() []*Submesh          { return m.submeshes }
func (m *Mesh) CullMode() gpu.CullMode         { return m.cullMode }
func (m *Mesh) SetCullMode(c gpu.CullMode)     { m.cullMode = c }
func (m *Mesh) FillMode() gpu.FillMode         { return m.fillMode }
func (m *Mesh) SetFillMode(f gpu.FillMode)     { m.fillMode = f }
func (m *Mesh) InstanceCount() int             { return m.instances }
func (m *Mesh) SetInstanceCount(n int)         { m.instances = max(n, 0) }
func (m *Mesh) CastShadow() bool               { return m.castShadow }
func (m *Mesh) SetCastShadow(v bool)           { m.castShadow = v }
func (m *Mesh) ReceiveShadow() bool            { return m.receiveShadow }
func (m *Mesh) SetReceiveShadow(v bool)        { m.receiveShadow = v }
func (m *Mesh) VertexUniforms() VertexUniforms { return m.main.uniforms }
func (m *Mesh) LocalBounds() common.Box        { return m.geometry.Bounds() }

// Winding returns the front-face winding, the geometry's unless overridden.
func (m *Mesh) Winding() gpu.Winding {
	if m.windingSet {
		return m.winding
	}
	return m.geometry.Winding()
}

// SetWinding overrides the geometry's front-face winding.
func (m *Mesh) SetWinding(w gpu.Winding) {
	m.winding, m.windingSet = w, true
}

// SetGeometry replaces the geometry. The old geometry's GPU buffers are released.
func (m *Mesh) SetGeometry(geom geometry.Geometry) {
	if geom == nil || geom == m.geometry {
		return
	}
	m.geometry.SetDelegate(nil)
	m.geometry.Release()
	m.geometry = geom
	geom.SetDelegate(m)
	m.GeometryUpdated(geom)
}

// SetMaterial replaces the material of the whole mesh.
func (m *Mesh) SetMaterial(mat material.Material) {
	m.material = mat
	m.setup(mat, m.Context())
}

// AddSubmesh appends a submesh drawn after the existing ones.
func (m *Mesh) AddSubmesh(s *Submesh) {
	s.mesh = m
	m.submeshes = append(m.submeshes, s)
	m.setup(s.Material, m.Context())
	if !s.inRange(m.geometry.IndexCount()) {
		log.Warn("submesh outside index range", "mesh", m.Label(), "submesh", s.Label,
			"start", s.Start, "count", s.Count, "indices", m.geometry.IndexCount())
	}
}

// Submesh returns the first submesh with the label, or nil.
func (m *Mesh) Submesh(label string) *Submesh {
	for _, s := range m.submeshes {
		if s.Label == label {
			return s
		}
	}
	return nil
}

// RemoveSubmesh removes s, reporting whether it was present.
func (m *Mesh) RemoveSubmesh(s *Submesh) bool {
	for i, sub := range m.submeshes {
		if sub == s {
			m.submeshes = append(m.submeshes[:i], m.submeshes[i+1:]...)
			s.mesh = nil
			return true
		}
	}
	return false
}

// GeometryUpdated hides submeshes whose range no longer fits the index buffer.
func (m *Mesh) GeometryUpdated(g geometry.Geometry) {
	count := g.IndexCount()
	for _, s := range m.submeshes {
		if s.Visible && !s.inRange(count) {
			log.Warn("hiding submesh outside index range", "mesh", m.Label(), "submesh", s.Label, "indices", count)
			s.Visible = false
		}
	}
	m.failed = false
}

// ContextChanged sets up the materials against ctx and allocates the vertex uniform rings
// of the main and shadow passes.
func (m *Mesh) ContextChanged(ctx *gpu.Context) {
	m.releaseBuffers()
	m.geometry.Release()
	m.failed = false
	if ctx == nil {
		return
	}
	m.setup(m.material, ctx)
	for _, s := range m.submeshes {
		m.setup(s.Material, ctx)
	}
	for _, p := range []struct {
		name string
		pass *passUniforms
	}{{"vertex uniforms", &m.main}, {"shadow vertex uniforms", &m.shadow}} {
		b, err := buffer.NewUniformBuffer(ctx.Device, &p.pass.uniforms,
			buffer.WithUniformLabel(fmt.Sprintf("%s %s", m.Label(), p.name)),
			buffer.WithRegions(ctx.MaxFramesInFlight),
		)
		if err != nil {
			log.Error("cannot allocate vertex uniforms", "mesh", m.Label(), "pass", p.name, "err", err)
			m.releaseBuffers()
			return
		}
		p.pass.buffer = b
	}
}

func (m *Mesh) setup(mat material.Material, ctx *gpu.Context) {
	if mat == nil || ctx == nil || mat.Context() == ctx {
		return
	}
	// compile failures are logged by the shader and leave the material undrawable
	_ = mat.Setup(ctx)
}

// Update computes the vertex uniforms for cam and writes them into the next region of the
// main pass ring, then updates the materials. It does nothing when called again for the
// same frame.
//
// Parameters:
//   - cam: the camera the frame is rendered from
//   - frame: the renderer's frame counter
func (m *Mesh) Update(cam camera.Camera, frame uint64) {
	if m.main.update(m.WorldMatrix(), cam, frame) {
		m.updateMaterials(frame)
	}
}

// UpdateShadow is Update for the shadow pass: the uniforms for the light's camera go into
// the shadow ring, which advances once per frame like the main one. Materials are updated
// with the same frame number, so whichever pass comes first advances their rings.
//
// Parameters:
//   - cam: the shadow camera
//   - frame: the renderer's frame counter
func (m *Mesh) UpdateShadow(cam camera.Camera, frame uint64) {
	if m.shadow.update(m.WorldMatrix(), cam, frame) {
		m.updateMaterials(frame)
	}
}

func (m *Mesh) updateMaterials(frame uint64) {
	if m.material != nil {
		m.material.Update(frame)
	}
	for _, s := range m.submeshes {
		if s.Material != nil {
			s.Material.Update(frame)
		}
	}
}

// Drawable reports whether Draw with a positive instance count would record at least one
// draw call.
func (m *Mesh) Drawable() bool {
	if m.geometry.VertexCount() == 0 || m.main.buffer == nil {
		return false
	}
	if len(m.submeshes) == 0 {
		return m.material != nil && m.material.Drawable()
	}
	if !m.geometry.Indexed() {
		return false
	}
	for _, s := range m.submeshes {
		if s.Visible && s.Material != nil && s.Material.Drawable() {
			return true
		}
	}
	return false
}

// Draw records the mesh's draw calls. A mesh without vertices, without a compiled
// pipeline or drawn with no instances records nothing.
//
// Parameters:
//   - enc: the render encoder
//   - instanceCount: the number of instances, or 0 for the mesh's own instance count
//   - shadow: draw with the materials' shadow pipelines
//
// Returns:
//   - int: the number of draw calls recorded
func (m *Mesh) Draw(enc gpu.RenderEncoder, instanceCount int, shadow bool) int {
	if instanceCount == 0 {
		instanceCount = m.instances
	}
	if instanceCount <= 0 || !m.Drawable() || (shadow && !m.castShadow) || m.failed {
		return 0
	}
	ctx := m.Context()
	if ctx == nil {
		return 0
	}
	vb, ib, err := m.geometry.Buffers(ctx.Device)
	if err != nil {
		log.Error("cannot build geometry buffers", "mesh", m.Label(), "err", err)
		m.failed = true
		return 0
	}

	enc.SetFrontFacing(m.Winding())
	enc.SetCullMode(m.cullMode)
	enc.SetFillMode(m.fillMode)

	ring := m.main.buffer
	if shadow {
		ring = m.shadow.buffer
	}
	draws := 0
	bindMesh := func(mat material.Material) bool {
		if mat == nil || !mat.Bind(enc, shadow) {
			return false
		}
		ring.Bind(enc, shader.VertexGroup, 0)
		enc.SetVertexBuffer(0, vb, 0)
		return true
	}
	if len(m.submeshes) == 0 {
		if !bindMesh(m.material) {
			return 0
		}
		if ib != nil {
			enc.DrawIndexed(ib, gpu.IndexUint32, 0, m.geometry.IndexCount(), instanceCount)
		} else {
			enc.Draw(m.geometry.VertexCount(), instanceCount)
		}
		return 1
	}
	for _, s := range m.submeshes {
		if !s.Visible || !bindMesh(s.Material) {
			continue
		}
		enc.DrawIndexed(ib, gpu.IndexUint32, s.Start, s.Count, instanceCount)
		draws++
	}
	return draws
}

// Raycast intersects the geometry with a world-space ray. Hits on indexed geometry report
// the submesh containing the triangle.
func (m *Mesh) Raycast(r raycast.Ray) []raycast.Hit {
	hits := raycast.HitsOnBVH(m, m.WorldMatrix(), m.geometry.BVH(), r, m.cullMode == gpu.CullBack, m.attributes)
	for i := range hits {
		first := hits[i].Triangle * 3
		for j, s := range m.submeshes {
			if s.Contains(first) {
				hits[i].Submesh = j
				break
			}
		}
	}
	return hits
}

// Intersect returns the hits of a world-space ray on this mesh and, if recursive, its
// descendants, nearest first.
func (m *Mesh) Intersect(r raycast.Ray, recursive bool) []raycast.Hit {
	return raycast.NewRaycaster(r).Intersect(m, recursive)
}

// attributes interpolates the local-space normal and uv of a triangle hit.
func (m *Mesh) attributes(th raycast.TriangleHit) (mgl32.Vec3, mgl32.Vec2) {
	verts := m.geometry.Vertices()
	i0, i1, i2 := th.Triangle*3, th.Triangle*3+1, th.Triangle*3+2
	if idx := m.geometry.Indices(); idx != nil {
		i0, i1, i2 = int(idx[i0]), int(idx[i1]), int(idx[i2])
	}
	a, b, c := verts[i0], verts[i1], verts[i2]
	w := 1 - th.U - th.V
	n := mgl32.Vec3(a.Normal).Mul(w).Add(mgl32.Vec3(b.Normal).Mul(th.U)).Add(mgl32.Vec3(c.Normal).Mul(th.V))
	uv := mgl32.Vec2(a.UV).Mul(w).Add(mgl32.Vec2(b.UV).Mul(th.U)).Add(mgl32.Vec2(c.UV).Mul(th.V))
	return n, uv
}

func (m *Mesh) releaseBuffers() {
	m.main.release()
	m.shadow.release()
}

// Release releases the vertex uniform rings and the geometry's GPU buffers. Materials are
// shared and released by their owner.
func (m *Mesh) Release() {
	m.releaseBuffers()
	m.geometry.Release()
}
