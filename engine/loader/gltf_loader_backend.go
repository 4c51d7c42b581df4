package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/geometry"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// gltfLoaderBackend reads glTF 2.0 and GLB files with qmuntal/gltf. Only static
// geometry and the metallic-roughness base color and base color texture are imported.
type gltfLoaderBackend struct{}

var _ loaderBackend = &gltfLoaderBackend{}

func (b *gltfLoaderBackend) Load(path string) (*Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %q: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return convertDocument(name, filepath.Dir(path), doc)
}

func (b *gltfLoaderBackend) LoadReader(name string, r io.Reader) (*Model, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("loader: decode %q: %w", name, err)
	}
	return convertDocument(name, "", doc)
}

// convertDocument builds a Model from a decoded document. dir resolves external image
// URIs; images are skipped when it is empty.
func convertDocument(name, dir string, doc *gltf.Document) (*Model, error) {
	images := newImageCache(name, dir, doc)
	colors := make([]mgl32.Vec4, len(doc.Materials))
	textures := make([]*common.Image, len(doc.Materials))
	doubleSided := make([]bool, len(doc.Materials))
	for i, gm := range doc.Materials {
		colors[i] = mgl32.Vec4{1, 1, 1, 1}
		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			cf := pbr.BaseColorFactorOrDefault()
			colors[i] = mgl32.Vec4{float32(cf[0]), float32(cf[1]), float32(cf[2]), float32(cf[3])}
			if pbr.BaseColorTexture != nil {
				textures[i] = images.texture(pbr.BaseColorTexture.Index)
			}
		}
		doubleSided[i] = gm.DoubleSided
	}

	primitives := make([][]Primitive, len(doc.Meshes))
	for mi, gm := range doc.Meshes {
		for pi, prim := range gm.Primitives {
			label := fmt.Sprintf("%s/%d", common.Coalesce(gm.Name, fmt.Sprintf("mesh%d", mi)), pi)
			geom, err := convertPrimitive(doc, label, prim)
			if err != nil {
				log.Warn("skipping primitive", "model", name, "primitive", label, "err", err)
				continue
			}
			p := Primitive{Label: label, Geometry: geom, BaseColor: mgl32.Vec4{1, 1, 1, 1}}
			if prim.Material != nil && *prim.Material < len(colors) {
				p.BaseColor = colors[*prim.Material]
				p.BaseColorTexture = textures[*prim.Material]
				p.DoubleSided = doubleSided[*prim.Material]
			}
			primitives[mi] = append(primitives[mi], p)
		}
	}

	m := &Model{Name: name, Nodes: make([]Node, len(doc.Nodes))}
	hasParent := make([]bool, len(doc.Nodes))
	for i, gn := range doc.Nodes {
		n := Node{Label: common.Coalesce(gn.Name, fmt.Sprintf("node%d", i))}
		n.Position, n.Orientation, n.Scale = nodeTransform(gn)
		if gn.Mesh != nil && *gn.Mesh < len(primitives) {
			n.Primitives = primitives[*gn.Mesh]
		}
		for _, c := range gn.Children {
			if c < len(doc.Nodes) && c != i && !hasParent[c] {
				n.Children = append(n.Children, c)
				hasParent[c] = true
			}
		}
		m.Nodes[i] = n
	}

	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		for _, r := range doc.Scenes[*doc.Scene].Nodes {
			if r < len(m.Nodes) {
				m.Roots = append(m.Roots, r)
			}
		}
	} else {
		for i := range m.Nodes {
			if !hasParent[i] {
				m.Roots = append(m.Roots, i)
			}
		}
	}
	if m.PrimitiveCount() == 0 {
		return nil, fmt.Errorf("loader: %q has no drawable primitives", name)
	}
	return m, nil
}

func convertPrimitive(doc *gltf.Document, label string, prim *gltf.Primitive) (geometry.Geometry, error) {
	topology := gpu.TopologyTriangleList
	switch prim.Mode {
	case gltf.PrimitiveTriangles:
	case gltf.PrimitiveTriangleStrip:
		topology = gpu.TopologyTriangleStrip
	case gltf.PrimitiveLines:
		topology = gpu.TopologyLineList
	case gltf.PrimitiveLineStrip:
		topology = gpu.TopologyLineStrip
	case gltf.PrimitivePoints:
		topology = gpu.TopologyPointList
	default:
		return nil, fmt.Errorf("unsupported primitive mode %d", prim.Mode)
	}

	posIdx, ok := prim.Attributes["POSITION"]
	if !ok || posIdx >= len(doc.Accessors) {
		return nil, fmt.Errorf("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	var normals [][3]float32
	if idx, ok := prim.Attributes["NORMAL"]; ok && idx < len(doc.Accessors) {
		if normals, err = modeler.ReadNormal(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
	}
	var uvs [][2]float32
	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok && idx < len(doc.Accessors) {
		if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("texture coordinates: %w", err)
		}
	}

	vertices := make([]geometry.Vertex, len(positions))
	for i, p := range positions {
		v := geometry.Vertex{Position: p, Normal: [3]float32{0, 1, 0}}
		if i < len(normals) {
			v.Normal = normals[i]
		}
		if i < len(uvs) {
			v.UV = uvs[i]
		}
		vertices[i] = v
	}

	var indices []uint32
	if prim.Indices != nil && *prim.Indices < len(doc.Accessors) {
		if indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
		for _, i := range indices {
			if int(i) >= len(vertices) {
				return nil, fmt.Errorf("index %d out of range of %d vertices", i, len(vertices))
			}
		}
	}
	return geometry.NewGeometry(vertices, indices,
		geometry.WithLabel(label),
		geometry.WithTopology(topology),
	), nil
}

// nodeTransform decomposes a node's matrix, or reads its TRS properties when it has none.
func nodeTransform(gn *gltf.Node) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	mat := gn.MatrixOrDefault()
	var m mgl32.Mat4
	for i := range mat {
		m[i] = float32(mat[i])
	}
	if m != mgl32.Ident4() {
		sx, sy, sz := mgl32.Extract3DScale(m)
		rot := m
		for c, s := range []float32{sx, sy, sz} {
			if s != 0 {
				for r := 0; r < 3; r++ {
					rot[c*4+r] /= s
				}
			}
		}
		return m.Col(3).Vec3(), mgl32.Mat4ToQuat(rot).Normalize(), mgl32.Vec3{sx, sy, sz}
	}

	t := gn.TranslationOrDefault()
	r := gn.RotationOrDefault()
	s := gn.ScaleOrDefault()
	return mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])},
		mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}.Normalize(),
		mgl32.Vec3{float32(s[0]), float32(s[1]), float32(s[2])}
}
