package ibl

import (
	"embed"
	"io/fs"
)

//go:embed assets
var assets embed.FS

var (
	//go:embed assets/ibl/cubemap.wgsl
	cubemapSource string
	//go:embed assets/ibl/irradiance.wgsl
	irradianceSource string
	//go:embed assets/ibl/specular.wgsl
	specularSource string
	//go:embed assets/ibl/brdf.wgsl
	brdfSource string
)

// InputGroup is the bind group where each step reads the previous step's texture: the
// texture at binding 0 and its sampler at binding 1.
const InputGroup = 2

// library returns the embedded kernels rooted so that includes read "ibl/sampling.wgsl".
func library() fs.FS {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic("ibl: embedded kernels: " + err.Error())
	}
	return sub
}
