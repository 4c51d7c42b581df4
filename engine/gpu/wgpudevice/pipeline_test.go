package wgpudevice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLibraryOutlivesItsHandle(t *testing.T) {
	l := &library{label: "lit"}
	l.refs.Store(1)

	// a render pipeline holding the library for later variants
	l.retain()
	l.Release()
	assert.Equal(t, int32(1), l.refs.Load(), "the pipeline still holds the module")

	l.unref()
	assert.Zero(t, l.refs.Load())
	assert.False(t, l.alive())
}
