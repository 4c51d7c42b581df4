// Package config reads the viewer's TOML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Primitives names the built-in geometries a scene can show when no model is given.
var Primitives = []string{"box", "sphere", "plane", "quad"}

// Materials names the materials a scene can be drawn with.
var Materials = []string{"basic", "normal", "uv", "lambert", "texture", "live"}

// Config is the viewer configuration. Every field has a default, so a file only needs
// the values it changes.
type Config struct {
	Window   Window   `toml:"window"`
	Render   Render   `toml:"render"`
	Shaders  Shaders  `toml:"shaders"`
	Scene    Scene    `toml:"scene"`
	Profiler Profiler `toml:"profiler"`
}

// Window configures the native window.
type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// Render configures the renderer and the frame loop.
type Render struct {
	// MSAA is the sample count of the main pass, 1 or 4.
	MSAA       int        `toml:"msaa"`
	VSync      bool       `toml:"vsync"`
	ClearColor [4]float64 `toml:"clear_color"`
	// TickRate is the number of fixed update ticks per second.
	TickRate float64 `toml:"tick_rate"`
	// FrameLimit caps the render rate when positive.
	FrameLimit       float64 `toml:"frame_limit"`
	Shadows          bool    `toml:"shadows"`
	ShadowResolution int     `toml:"shadow_resolution"`
	CullingDisabled  bool    `toml:"culling_disabled"`
}

// Shaders configures shader lookup and recompilation.
type Shaders struct {
	// Paths are searched, in order, for included shader files.
	Paths      []string `toml:"paths"`
	LiveReload bool     `toml:"live_reload"`
	// Workers bounds the concurrent background recompiles.
	Workers int `toml:"workers"`
}

// Scene configures what the viewer shows.
type Scene struct {
	// Model is a .gltf or .glb file; when empty Primitive is shown.
	Model     string     `toml:"model"`
	Primitive string     `toml:"primitive"`
	Material  string     `toml:"material"`
	Color     [4]float64 `toml:"color"`
	// Texture is the image the "texture" material samples when a primitive brings none.
	Texture string `toml:"texture"`
	// Shader is the WGSL file drawn by the "live" material.
	Shader string `toml:"shader"`
	// ShaderName is the name of the live shader; its entry points are derived from it.
	ShaderName string `toml:"shader_name"`
	// Parameters is a parameter document applied to the material after setup.
	Parameters string  `toml:"parameters"`
	Ground     bool    `toml:"ground"`
	Spin       float64 `toml:"spin"`
}

// Profiler configures frame statistics logging.
type Profiler struct {
	Enabled  bool   `toml:"enabled"`
	Interval string `toml:"interval"`
	Memory   bool   `toml:"memory"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	return Config{
		Window: Window{Title: "prism", Width: 1280, Height: 720},
		Render: Render{
			MSAA:             4,
			VSync:            true,
			ClearColor:       [4]float64{0.08, 0.08, 0.1, 1},
			TickRate:         60,
			Shadows:          true,
			ShadowResolution: 2048,
		},
		Shaders: Shaders{Paths: []string{"shaders"}, LiveReload: true, Workers: 2},
		Scene: Scene{
			Primitive: "box",
			Material:  "lambert",
			Color:     [4]float64{0.8, 0.5, 0.2, 1},
			Ground:    true,
			Spin:      0.5,
		},
		Profiler: Profiler{Enabled: false, Interval: "1s", Memory: true},
	}
}

// Load reads the configuration at path over the defaults. Unknown keys are errors, so a
// misspelled setting does not go unnoticed. An empty path yields the defaults.
//
// Parameters:
//   - path: the TOML file, or ""
//
// Returns:
//   - Config: the configuration
//   - error: error if the file cannot be read, decoded or validated
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Decode decodes TOML data over cfg and validates the result.
//
// Parameters:
//   - data: the TOML document
//   - cfg: the configuration to update
//
// Returns:
//   - error: error if the document is malformed, has unknown keys or invalid values
func Decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("unknown keys:\n%s", strict.String())
		}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("line %d column %d: %w", row, col, err)
		}
		return err
	}
	return cfg.Validate()
}

// Save writes cfg as TOML.
//
// Parameters:
//   - path: the destination file
//
// Returns:
//   - error: error if encoding or writing fails
func (c Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Validate checks the values that have a fixed set of choices or bounds.
//
// Returns:
//   - error: the joined list of problems, nil when valid
func (c Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if c.Render.MSAA != 1 && c.Render.MSAA != 4 {
		errs = append(errs, fmt.Errorf("render.msaa %d must be 1 or 4", c.Render.MSAA))
	}
	if c.Render.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("render.tick_rate %v must be positive", c.Render.TickRate))
	}
	if c.Render.Shadows && c.Render.ShadowResolution <= 0 {
		errs = append(errs, fmt.Errorf("render.shadow_resolution %d must be positive", c.Render.ShadowResolution))
	}
	if c.Scene.Model == "" && !slices.Contains(Primitives, c.Scene.Primitive) {
		errs = append(errs, fmt.Errorf("scene.primitive %q is not one of %v", c.Scene.Primitive, Primitives))
	}
	if !slices.Contains(Materials, c.Scene.Material) {
		errs = append(errs, fmt.Errorf("scene.material %q is not one of %v", c.Scene.Material, Materials))
	}
	if c.Scene.Material == "live" && (c.Scene.Shader == "" || c.Scene.ShaderName == "") {
		errs = append(errs, errors.New("scene.material \"live\" needs scene.shader and scene.shader_name"))
	}
	if _, err := c.Profiler.IntervalDuration(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// IntervalDuration parses the reporting interval.
//
// Returns:
//   - time.Duration: the interval, one second when unset
//   - error: error if the interval is not a positive duration
func (p Profiler) IntervalDuration() (time.Duration, error) {
	if p.Interval == "" {
		return time.Second, nil
	}
	d, err := time.ParseDuration(p.Interval)
	if err != nil {
		return 0, fmt.Errorf("profiler.interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("profiler.interval %s must be positive", d)
	}
	return d, nil
}
