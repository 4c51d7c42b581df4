package object

import "github.com/go-gl/mathgl/mgl32"

// ObjectBuilderOption is a function that configures an object during construction.
type ObjectBuilderOption func(*Object)

// WithLabel sets the label used by Find and in log lines.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - ObjectBuilderOption: a function that applies the label option to an object
func WithLabel(label string) ObjectBuilderOption {
	return func(o *Object) {
		o.label = label
	}
}

// WithPosition sets the initial translation relative to the parent.
func WithPosition(p mgl32.Vec3) ObjectBuilderOption {
	return func(o *Object) {
		o.SetPosition(p)
	}
}

// WithOrientation sets the initial rotation relative to the parent.
func WithOrientation(q mgl32.Quat) ObjectBuilderOption {
	return func(o *Object) {
		o.SetOrientation(q)
	}
}

// WithScale sets the initial scale relative to the parent.
func WithScale(s mgl32.Vec3) ObjectBuilderOption {
	return func(o *Object) {
		o.SetScale(s)
	}
}

// WithVisible sets whether renderers draw the object.
func WithVisible(visible bool) ObjectBuilderOption {
	return func(o *Object) {
		o.visible = visible
	}
}

// WithChildren attaches children in order.
func WithChildren(children ...Node) ObjectBuilderOption {
	return func(o *Object) {
		for _, c := range children {
			o.Add(c)
		}
	}
}
