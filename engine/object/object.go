// Package object implements the transform graph shared by meshes, cameras and lights.
package object

import (
	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/internal/logx"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var log = logx.Logger("object")

// Node is anything that can sit in the transform graph. Types that embed *Object
// satisfy it through the promoted Base method.
type Node interface {
	// Base retrieves the transform node.
	//
	// Returns:
	//   - *Object: the embedded object
	Base() *Object
}

// ContextAware nodes are told when a rendering context reaches them through SetContext
// or Add.
type ContextAware interface {
	ContextChanged(ctx *gpu.Context)
}

// Bounded nodes contribute a local-space bounding box to WorldBounds.
type Bounded interface {
	LocalBounds() common.Box
}

// worldStamp identifies the inputs a cached world matrix was computed from.
type worldStamp struct {
	local       uint64
	parent      *Object
	parentWorld uint64
}

// Object is a node of the transform graph: a local translation, rotation and scale, a
// non-owning parent pointer and an ordered list of owned children.
//
// Matrices are resolved lazily. Each TRS write bumps a local version; a read compares the
// version stamps of the node and its ancestors against those the cache was built from and
// recomputes only on a mismatch, so writes never walk the subtree.
type Object struct {
	id      uuid.UUID
	label   string
	visible bool

	position    mgl32.Vec3
	orientation mgl32.Quat
	scale       mgl32.Vec3

	parent   *Object
	owner    Node
	children []*Object
	context  *gpu.Context
	onUpdate func(n Node)

	localVersion uint64
	local        mgl32.Mat4
	localAt      uint64
	localValid   bool

	world        mgl32.Mat4
	worldVersion uint64
	worldAt      worldStamp
	worldValid   bool

	recomputes int
}

var _ Node = &Object{}

// NewObject creates a node at the origin with identity rotation and unit scale.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - *Object: the new object
func NewObject(options ...ObjectBuilderOption) *Object {
	o := &Object{
		id:          uuid.New(),
		label:       "object",
		visible:     true,
		orientation: mgl32.QuatIdent(),
		scale:       mgl32.Vec3{1, 1, 1},
	}
	for _, option := range options {
		option(o)
	}
	return o
}

func (o *Object) Base() *Object { return o }

// SetOwner records the value that embeds this object, so that tree walks and lookups
// yield it instead of the bare object. Constructors of embedding types call it once.
func (o *Object) SetOwner(n Node) {
	o.owner = n
}

// Node returns the embedding value registered with SetOwner, or the object itself.
func (o *Object) Node() Node {
	if o.owner != nil {
		return o.owner
	}
	return o
}

// ID returns the generated unique id.
func (o *Object) ID() string { return o.id.String() }

// Equal reports whether n is the same node, by id.
func (o *Object) Equal(n Node) bool {
	return n != nil && n.Base().id == o.id
}

func (o *Object) Label() string         { return o.label }
func (o *Object) SetLabel(label string) { o.label = label }
func (o *Object) Visible() bool         { return o.visible }
func (o *Object) SetVisible(v bool)     { o.visible = v }

// Position returns the translation relative to the parent.
func (o *Object) Position() mgl32.Vec3 { return o.position }

// Orientation returns the rotation relative to the parent.
func (o *Object) Orientation() mgl32.Quat { return o.orientation }

// Scale returns the scale relative to the parent.
func (o *Object) Scale() mgl32.Vec3 { return o.scale }

func (o *Object) SetPosition(p mgl32.Vec3) {
	o.position = p
	o.localVersion++
}

func (o *Object) SetOrientation(q mgl32.Quat) {
	o.orientation = q.Normalize()
	o.localVersion++
}

func (o *Object) SetScale(s mgl32.Vec3) {
	o.scale = s
	o.localVersion++
}

// Translate moves the object by d in its parent's space.
func (o *Object) Translate(d mgl32.Vec3) {
	o.SetPosition(o.position.Add(d))
}

// Rotate turns the object by angle radians around a local axis.
func (o *Object) Rotate(axis mgl32.Vec3, angle float32) {
	o.SetOrientation(o.orientation.Mul(mgl32.QuatRotate(angle, axis.Normalize())))
}

// LookAt orients the object so that its -Z axis points at a world-space target.
//
// Parameters:
//   - target: the world-space point to face
//   - up: the world-space up direction
func (o *Object) LookAt(target, up mgl32.Vec3) {
	eye := o.WorldPosition()
	f := target.Sub(eye)
	if f.Len() < 1e-6 {
		return
	}
	f = f.Normalize()
	if math32.Abs(f.Dot(up.Normalize())) > 0.9999 {
		up = mgl32.Vec3{0, 0, 1}
		if math32.Abs(f.Z()) > 0.9999 {
			up = mgl32.Vec3{1, 0, 0}
		}
	}
	r := f.Cross(up).Normalize()
	u := r.Cross(f)
	basis := mgl32.Mat3FromCols(r, u, f.Mul(-1))
	world := mgl32.Mat4ToQuat(basis.Mat4())
	if o.parent != nil {
		m := o.parent.WorldMatrix().Mat3()
		rot := mgl32.Mat3FromCols(m.Col(0).Normalize(), m.Col(1).Normalize(), m.Col(2).Normalize())
		world = mgl32.Mat4ToQuat(rot.Mat4()).Inverse().Mul(world)
	}
	o.SetOrientation(world)
}

// LocalMatrix returns translation * rotation * scale, recomputed only after a TRS write.
func (o *Object) LocalMatrix() mgl32.Mat4 {
	if !o.localValid || o.localAt != o.localVersion {
		o.local = common.ComposeTRS(o.position, o.orientation, o.scale)
		o.localAt = o.localVersion
		o.localValid = true
	}
	return o.local
}

// WorldMatrix returns parent.WorldMatrix() * LocalMatrix(), or LocalMatrix() for a root.
// The cached value is reused until the node, its parent link or an ancestor changes.
func (o *Object) WorldMatrix() mgl32.Mat4 {
	stamp := worldStamp{local: o.localVersion, parent: o.parent}
	var parentWorld mgl32.Mat4
	if o.parent != nil {
		parentWorld = o.parent.WorldMatrix()
		stamp.parentWorld = o.parent.worldVersion
	}
	if o.worldValid && o.worldAt == stamp {
		return o.world
	}
	if o.parent != nil {
		o.world = parentWorld.Mul4(o.LocalMatrix())
	} else {
		o.world = o.LocalMatrix()
	}
	o.worldAt = stamp
	o.worldValid = true
	o.worldVersion++
	o.recomputes++
	return o.world
}

// WorldVersion increases every time the world matrix is recomputed. Dependent caches
// compare it to detect a moved node.
func (o *Object) WorldVersion() uint64 {
	o.WorldMatrix()
	return o.worldVersion
}

// Recomputes returns how many times the world matrix has been recomputed.
func (o *Object) Recomputes() int { return o.recomputes }

// WorldPosition returns the origin of the object in world space.
func (o *Object) WorldPosition() mgl32.Vec3 {
	return o.WorldMatrix().Col(3).Vec3()
}

// WorldBounds returns the world-space bounds of this node and its descendants.
//
// Returns:
//   - common.Box: the union of every Bounded node's transformed bounds; empty if none
func (o *Object) WorldBounds() common.Box {
	b := common.EmptyBox()
	o.Traverse(func(n Node) bool {
		if bn, ok := n.(Bounded); ok {
			b = b.Union(bn.LocalBounds().Transform(n.Base().WorldMatrix()))
		}
		return true
	})
	return b
}

// Parent returns the parent node, nil for a root.
func (o *Object) Parent() *Object { return o.parent }

// Children returns the children in order.
func (o *Object) Children() []Node {
	out := make([]Node, len(o.children))
	for i, c := range o.children {
		out[i] = c.Node()
	}
	return out
}

// Add appends child, detaching it from its previous parent first, and hands it this
// object's context, nil included. Adding a child that is already present, the object itself, or one of
// its ancestors does nothing.
//
// Parameters:
//   - child: the node to attach
func (o *Object) Add(child Node) {
	c := child.Base()
	if c == o || o.index(c) >= 0 {
		return
	}
	for p := o.parent; p != nil; p = p.parent {
		if p == c {
			log.Warn("refusing to add an ancestor as a child", "parent", o.label, "child", c.label)
			return
		}
	}
	if c.parent != nil {
		c.parent.Remove(c)
	}
	c.parent = o
	o.children = append(o.children, c)
	c.SetContext(o.context)
}

// Remove detaches the first child with the same id. Unknown children are ignored.
//
// Returns:
//   - bool: true if a child was removed
func (o *Object) Remove(child Node) bool {
	i := o.index(child.Base())
	if i < 0 {
		return false
	}
	c := o.children[i]
	o.children = append(o.children[:i], o.children[i+1:]...)
	c.parent = nil
	return true
}

// RemoveFromParent detaches the object from its parent, if any.
func (o *Object) RemoveFromParent() {
	if o.parent != nil {
		o.parent.Remove(o)
	}
}

func (o *Object) index(c *Object) int {
	for i, existing := range o.children {
		if existing.id == c.id {
			return i
		}
	}
	return -1
}

// Traverse visits this node and its descendants depth first, parents before children.
// Returning false from fn skips the children of the visited node.
func (o *Object) Traverse(fn func(n Node) bool) {
	if !fn(o.Node()) {
		return
	}
	for _, c := range o.children {
		c.Traverse(fn)
	}
}

// Find returns the first node in traversal order with the given label.
func (o *Object) Find(label string) Node {
	var found Node
	o.Traverse(func(n Node) bool {
		if found != nil {
			return false
		}
		if n.Base().label == label {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindByID returns the node with the given id in this subtree.
func (o *Object) FindByID(id string) Node {
	var found Node
	o.Traverse(func(n Node) bool {
		if found != nil {
			return false
		}
		if n.Base().ID() == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Context returns the rendering context that reached this node.
func (o *Object) Context() *gpu.Context { return o.context }

// SetContext hands ctx to this node and every descendant. ContextAware owners are
// notified when the context changes.
func (o *Object) SetContext(ctx *gpu.Context) {
	o.Traverse(func(n Node) bool {
		b := n.Base()
		if b.context == ctx {
			return true
		}
		b.context = ctx
		if ca, ok := n.(ContextAware); ok {
			ca.ContextChanged(ctx)
		}
		return true
	})
}

// OnUpdate registers fn to run from Tick, once per frame before the node is drawn.
func (o *Object) OnUpdate(fn func(n Node)) {
	o.onUpdate = fn
}

// Tick runs the OnUpdate hook, if any.
func (o *Object) Tick() {
	if o.onUpdate != nil {
		o.onUpdate(o.Node())
	}
}
