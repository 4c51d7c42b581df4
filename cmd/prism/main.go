// Command prism is a model viewer: it opens a window, shows a glTF model or a built-in
// primitive under a directional light and lets the mouse orbit the camera.
//
// Usage:
//
//	prism [-config prism.toml] [-model fox.glb] [-log-level debug] [-write-config out.toml]
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Carmen-Shannon/prism/common"
	"github.com/Carmen-Shannon/prism/engine"
	"github.com/Carmen-Shannon/prism/engine/camera"
	"github.com/Carmen-Shannon/prism/engine/gpu"
	"github.com/Carmen-Shannon/prism/engine/gpu/wgpudevice"
	"github.com/Carmen-Shannon/prism/engine/profiler"
	"github.com/Carmen-Shannon/prism/engine/renderer"
	"github.com/Carmen-Shannon/prism/engine/window"
	"github.com/Carmen-Shannon/prism/internal/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "prism:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("prism", flag.ContinueOnError)
	configPath := flags.String("config", "", "TOML configuration file")
	model := flags.String("model", "", "glTF model to show, overrides scene.model")
	logLevel := flags.String("log-level", "info", "minimum log level: debug, info, warn or error")
	writeConfig := flags.String("write-config", "", "write the effective configuration to this file and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(*logLevel))); err != nil {
		return fmt.Errorf("-log-level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *model != "" {
		cfg.Scene.Model = *model
	}
	if *writeConfig != "" {
		return cfg.Save(*writeConfig)
	}
	return view(cfg)
}

func view(cfg config.Config) error {
	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
	)
	if err != nil {
		return err
	}

	device, err := wgpudevice.NewWithSurface(win.SurfaceDescriptor())
	if err != nil {
		return errors.Join(err, win.Close())
	}
	defer device.Release()

	surface := device.Surface()
	ctx := gpu.NewContext(device,
		gpu.WithSampleCount(cfg.Render.MSAA),
		gpu.WithColorFormat(surface.Format()),
		gpu.WithWorkers(cfg.Shaders.Workers),
	)
	defer ctx.Release()

	present := renderer.PresentModeVSync
	if !cfg.Render.VSync {
		present = renderer.PresentModeUncapped
	}
	width, height := win.Size()
	r, err := renderer.NewRenderer(ctx, surface,
		renderer.WithPresentMode(present),
		renderer.WithClearColor(cfg.Render.ClearColor),
		renderer.WithSize(width, height),
	)
	if err != nil {
		return errors.Join(err, win.Close())
	}

	v, err := newViewer(cfg, ctx, float32(width)/float32(max(height, 1)))
	if err != nil {
		r.Release()
		return errors.Join(err, win.Close())
	}
	defer v.release()

	interval, _ := cfg.Profiler.IntervalDuration()
	profOpts := []profiler.ProfilerBuilderOption{
		profiler.WithInterval(interval),
		profiler.WithReport(func(s profiler.Stats) {
			win.SetTitle(fmt.Sprintf("%s  %.0f fps  %d draws", cfg.Window.Title, s.FPS, s.DrawCalls))
		}),
	}
	if !cfg.Profiler.Memory {
		profOpts = append(profOpts, profiler.WithoutMemoryStats())
	}

	e := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithRenderer(r),
		engine.WithScene(0, v.scene),
		engine.WithTickRate(cfg.Render.TickRate),
		engine.WithRenderFrameLimit(cfg.Render.FrameLimit),
		engine.WithProfiler(profiler.NewProfiler(profOpts...)),
		engine.WithProfiling(cfg.Profiler.Enabled),
	)
	defer e.Release()

	oc := camera.NewOrbitController(camera.WithElevation(0.35))
	v.frame(oc)
	e.SetController(oc, v.scene.Camera())

	profiling := cfg.Profiler.Enabled
	e.SetTickCallback(v.tick)
	e.SetKeyCallback(func(key common.Key, pressed bool) {
		if !pressed {
			return
		}
		switch key {
		case common.KeyF:
			v.frame(oc)
		case common.KeySpace:
			v.paused = !v.paused
		case common.KeyP:
			profiling = !profiling
			if profiling {
				e.EnableProfiler()
			} else {
				e.DisableProfiler()
				win.SetTitle(cfg.Window.Title)
			}
		}
	})

	return e.Run()
}
