package loader

import (
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/qmuntal/gltf"
)

// imageCache decodes each image of a document at most once, so materials sharing a
// texture share its pixels.
type imageCache struct {
	model   string
	dir     string
	doc     *gltf.Document
	decoded map[int]*common.Image
}

func newImageCache(model, dir string, doc *gltf.Document) *imageCache {
	return &imageCache{model: model, dir: dir, doc: doc, decoded: make(map[int]*common.Image)}
}

// texture returns the image the texture at index samples, nil when it cannot be read.
func (c *imageCache) texture(index int) *common.Image {
	if index < 0 || index >= len(c.doc.Textures) || c.doc.Textures[index].Source == nil {
		return nil
	}
	source := *c.doc.Textures[index].Source
	if img, ok := c.decoded[source]; ok {
		return img
	}
	img, err := c.read(source)
	if err != nil {
		log.Warn("skipping texture", "model", c.model, "image", source, "err", err)
	}
	c.decoded[source] = img
	return img
}

func (c *imageCache) read(index int) (*common.Image, error) {
	if index < 0 || index >= len(c.doc.Images) {
		return nil, fmt.Errorf("image %d out of range", index)
	}
	gi := c.doc.Images[index]
	switch {
	case gi.BufferView != nil:
		data, err := c.bufferView(*gi.BufferView)
		if err != nil {
			return nil, err
		}
		return common.DecodeImageBytes(data)
	case gi.IsEmbeddedResource():
		data, err := gi.MarshalData()
		if err != nil {
			return nil, err
		}
		return common.DecodeImageBytes(data)
	case gi.URI != "" && c.dir != "":
		name, err := url.PathUnescape(gi.URI)
		if err != nil {
			return nil, err
		}
		return common.LoadImage(filepath.Join(c.dir, filepath.FromSlash(name)))
	}
	return nil, fmt.Errorf("image %d has no readable source", index)
}

func (c *imageCache) bufferView(index int) ([]byte, error) {
	if index >= len(c.doc.BufferViews) {
		return nil, fmt.Errorf("buffer view %d out of range", index)
	}
	bv := c.doc.BufferViews[index]
	if bv.Buffer >= len(c.doc.Buffers) {
		return nil, fmt.Errorf("buffer %d out of range", bv.Buffer)
	}
	data := c.doc.Buffers[bv.Buffer].Data
	end := bv.ByteOffset + bv.ByteLength
	if end > len(data) {
		return nil, fmt.Errorf("buffer view %d exceeds its buffer", index)
	}
	return data[bv.ByteOffset:end], nil
}
