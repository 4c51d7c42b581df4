package main

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine/camera"
	"github.com/Carmen-Shannon/prism/engine/geometry"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/light"
	"github.com/Carmen-Shannon/prism/engine/loader"
	"github.com/Carmen-Shannon/prism/engine/material"
	"github.com/Carmen-Shannon/prism/engine/mesh"
	"github.com/Carmen-Shannon/prism/engine/object"
	"github.com/Carmen-Shannon/prism/engine/scene"
	"github.com/Carmen-Shannon/prism/engine/shader"
	"github.com/Carmen-Shannon/prism/internal/config"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// viewer is the scene the command shows and the state its callbacks share.
type viewer struct {
	scene   scene.Scene
	subject *object.Object
	bounds  common.Box
	spin    float32
	paused  bool

	ctx      *gpu.Context
	textures map[*common.Image]gpu.Texture
}

// newViewer builds the scene described by cfg.Scene and sets it up on ctx.
func newViewer(cfg config.Config, ctx *gpu.Context, aspect float32) (*viewer, error) {
	sun := light.NewDirectional(
		light.WithDirection(mgl32.Vec3{-0.4, -1, -0.3}),
		light.WithColor(mgl32.Vec3{1, 0.97, 0.9}),
		light.WithIntensity(2.5),
	)
	lights := light.NewSystem(light.WithAmbient(mgl32.Vec3{0.12, 0.12, 0.15}), light.WithLights(sun))

	v := &viewer{spin: float32(cfg.Scene.Spin), ctx: ctx, textures: make(map[*common.Image]gpu.Texture)}
	newMaterial, err := v.materialFactory(cfg, lights)
	if err != nil {
		return nil, err
	}

	var subject *object.Object
	if cfg.Scene.Model != "" {
		m, err := loader.NewLoader().Load(cfg.Scene.Model)
		if err != nil {
			return nil, err
		}
		slog.Info("model loaded", "model", m.String(), "primitives", m.PrimitiveCount())
		subject = m.Instantiate(func(p loader.Primitive) material.Material {
			return newMaterial(p.BaseColor, p.BaseColorTexture)
		})
	} else {
		geom := primitive(cfg.Scene.Primitive)
		subject = object.NewObject(
			object.WithLabel(cfg.Scene.Primitive),
			object.WithChildren(mesh.NewMesh(geom, newMaterial(color(cfg.Scene.Color), nil),
				mesh.WithLabel(cfg.Scene.Primitive),
				mesh.WithCullMode(gpu.CullBack),
			)),
		)
	}
	bounds := subject.WorldBounds()

	cam := camera.NewPerspectiveCamera(camera.WithAspect(aspect), camera.WithClip(0.05, 500))
	opts := []scene.SceneBuilderOption{scene.WithNodes(subject), scene.WithLights(lights)}
	if cfg.Scene.Ground && !bounds.Empty() {
		opts = append(opts, scene.WithNodes(ground(bounds)))
	}
	if cfg.Render.Shadows {
		half := max(bounds.Extent().Len(), 1)
		opts = append(opts, scene.WithShadow(light.NewShadow(sun,
			light.WithShadowMapResolution(cfg.Render.ShadowResolution),
			light.WithShadowExtent(half, 0.1, 4*half),
		)))
	}
	if cfg.Render.CullingDisabled {
		opts = append(opts, scene.WithCullingDisabled())
	}
	s := scene.NewScene("viewer", cam, opts...)
	s.Setup(ctx)

	if path := cfg.Scene.Parameters; path != "" {
		applied := 0
		subject.Traverse(func(n object.Node) bool {
			if m, ok := n.(*mesh.Mesh); ok {
				k, err := m.Material().Load(path)
				if err != nil {
					slog.Warn("parameters not applied", "mesh", m.Label(), "path", path, "err", err)
				}
				applied += k
			}
			return true
		})
		slog.Info("parameters loaded", "path", path, "applied", applied)
	}

	v.scene, v.subject, v.bounds = s, subject, bounds
	return v, nil
}

// release frees the textures the viewer uploaded. The scene is released by the engine.
func (v *viewer) release() {
	for _, tex := range v.textures {
		tex.Release()
	}
	clear(v.textures)
}

// frame points oc at the subject so that all of it is in view.
func (v *viewer) frame(oc *camera.OrbitController) {
	fov := mgl32.DegToRad(45)
	if pc, ok := v.scene.Camera().(*camera.PerspectiveCamera); ok {
		fov = pc.Fov()
	}
	if v.bounds.Empty() {
		oc.Frame(mgl32.Vec3{}, 1, fov)
		return
	}
	oc.Frame(v.bounds.Center(), v.bounds.Extent().Len()/2, fov)
}

func (v *viewer) tick(dt float32) {
	if v.paused || v.spin == 0 {
		return
	}
	v.subject.Rotate(mgl32.Vec3{0, 1, 0}, v.spin*dt)
}

// materialFactory returns the constructor of the configured material. Every call creates a
// new material so that meshes can carry their own colors and textures.
func (v *viewer) materialFactory(cfg config.Config, lights *light.System) (func(mgl32.Vec4, *common.Image) material.Material, error) {
	switch cfg.Scene.Material {
	case "basic":
		return func(c mgl32.Vec4, _ *common.Image) material.Material { return material.NewBasicColor(c) }, nil
	case "normal":
		return func(mgl32.Vec4, *common.Image) material.Material { return material.NewNormalColor() }, nil
	case "uv":
		return func(mgl32.Vec4, *common.Image) material.Material { return material.NewUVColor() }, nil
	case "lambert":
		return func(c mgl32.Vec4, _ *common.Image) material.Material { return light.NewLambert(lights, c) }, nil
	case "texture":
		var fallback *common.Image
		if cfg.Scene.Texture != "" {
			img, err := common.LoadImage(cfg.Scene.Texture)
			if err != nil {
				return nil, err
			}
			fallback = img
		}
		return func(c mgl32.Vec4, img *common.Image) material.Material {
			tex := v.upload(common.Coalesce(img, fallback))
			if tex == nil {
				return material.NewBasicColor(c)
			}
			m := material.NewBasicTexture(tex)
			_ = m.Set("color", c)
			return m
		}, nil
	case "live":
		resolver := shader.NewFileResolver(shader.WithSearchPaths(cfg.Shaders.Paths...))
		return func(c mgl32.Vec4, _ *common.Image) material.Material {
			opts := []material.MaterialBuilderOption{material.WithResolver(resolver)}
			var m material.Material
			if cfg.Shaders.LiveReload {
				m = material.NewLive(cfg.Scene.ShaderName, cfg.Scene.Shader, opts...)
			} else {
				m = material.New(cfg.Scene.ShaderName, append(opts, material.WithSourcePath(cfg.Scene.Shader))...)
			}
			m.SetBinding(light.LightsSlot, lights)
			// shaders without a color uniform simply ignore it
			_ = m.Set("color", c)
			return m
		}, nil
	}
	return nil, fmt.Errorf("unknown material %q", cfg.Scene.Material)
}

// upload creates an RGBA8 texture holding img, once per image.
func (v *viewer) upload(img *common.Image) gpu.Texture {
	if img == nil || v.ctx == nil {
		return nil
	}
	if tex, ok := v.textures[img]; ok {
		return tex
	}
	tex, err := v.ctx.Device.NewTexture(gpu.TextureDescriptor{
		Label:     "base color",
		Type:      gpu.Texture2D,
		Format:    gpu.FormatRGBA8UnormSrgb,
		Width:     img.Width,
		Height:    img.Height,
		Depth:     1,
		MipLevels: 1,
		Usage:     gpu.TextureUsageBinding | gpu.TextureUsageCopyDst,
	})
	if err != nil {
		slog.Error("cannot create texture", "width", img.Width, "height", img.Height, "err", err)
		return nil
	}
	tex.Write(0, 0, img.Pixels)
	v.textures[img] = tex
	return tex
}

func primitive(name string) geometry.Geometry {
	switch name {
	case "sphere":
		return geometry.NewSphere(0.75, 48, 24, geometry.WithLabel(name))
	case "plane":
		return geometry.NewPlane(2, 2, 8, 8, geometry.WithLabel(name))
	case "quad":
		return geometry.NewQuad(1.5, 1.5, geometry.WithLabel(name))
	}
	return geometry.NewBox(1, 1, 1, geometry.WithLabel(name))
}

// ground is a horizontal plane under b, large enough to catch its shadow.
func ground(b common.Box) *mesh.Mesh {
	size := 4 * max(b.Extent().X(), b.Extent().Z(), 1)
	center := b.Center()
	return mesh.NewMesh(
		geometry.NewPlane(size, size, 1, 1, geometry.WithLabel("ground")),
		material.NewBasicColor(mgl32.Vec4{0.35, 0.35, 0.38, 1}),
		mesh.WithLabel("ground"),
		mesh.WithTransform(
			object.WithPosition(mgl32.Vec3{center.X(), b.Min.Y(), center.Z()}),
			object.WithOrientation(mgl32.QuatRotate(-math32.Pi/2, mgl32.Vec3{1, 0, 0})),
		),
		mesh.WithShadows(false, true),
	)
}

func color(c [4]float64) mgl32.Vec4 {
	return mgl32.Vec4{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])}
}
