// Command scene opens a window and draws the sphere scene until the window
// is closed or the requested number of frames has been presented.
package main

import (
	"runtime"

	"github.com/andewx/strale"
	"github.com/andewx/strale/vkdriver"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	// glfw and the window surface must stay on the main thread.
	runtime.LockOSThread()
}

type options struct {
	config     string
	width      int
	height     int
	validation bool
	frames     int
}

func main() {
	var opts options
	cmd := &cobra.Command{
		Use:           "scene",
		Short:         "Draw the sphere scene in a window",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cfg, opts.frames)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.config, "config", "c", "", "TOML config file overlaid on the defaults")
	flags.IntVar(&opts.width, "width", 0, "window width, overrides the config")
	flags.IntVar(&opts.height, "height", 0, "window height, overrides the config")
	flags.BoolVar(&opts.validation, "validation", true, "enable validation layers, overrides the config")
	flags.IntVarP(&opts.frames, "frames", "n", 0, "frames to draw before exiting, 0 runs until the window closes")

	strale.Fatal(errors.Wrap(cmd.Execute(), "scene"))
}

func loadConfig(cmd *cobra.Command, opts options) (strale.Config, error) {
	cfg := strale.DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = strale.LoadConfig(opts.config); err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("width") {
		cfg.App.Width = opts.width
	}
	if flags.Changed("height") {
		cfg.App.Height = opts.height
	}
	if flags.Changed("validation") {
		cfg.Validation.Enabled = opts.validation
	}
	return cfg, cfg.Validate()
}

func run(cfg strale.Config, frames int) error {
	log, err := strale.NewLogger(cfg.Log.Dir)
	if err != nil {
		return err
	}
	defer log.Close()

	code, err := strale.LoadShaderCode(cfg.Shaders.Dir)
	if err != nil {
		return err
	}

	if err := vkdriver.Init(); err != nil {
		return err
	}
	defer vkdriver.Terminate()

	window, err := vkdriver.NewWindow(cfg.App.Width, cfg.App.Height, cfg.App.Name)
	if err != nil {
		return err
	}
	defer window.Destroy()

	resized := false
	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		resized = true
	})

	backend, err := strale.NewBackend(vkdriver.NewLoader(), window, &cfg, log, code)
	if err != nil {
		return err
	}
	defer backend.Destroy()

	for drawn := 0; !window.ShouldClose() && (frames == 0 || drawn < frames); {
		glfw.PollEvents()
		if w, h := window.FramebufferSize(); w == 0 || h == 0 {
			glfw.WaitEvents()
			continue
		}
		if resized {
			resized = false
			if err := backend.Resize(); err != nil {
				return err
			}
		}
		err := backend.Draw()
		switch {
		case errors.Is(err, strale.ErrRecreateNeeded):
			resized = true
		case err != nil:
			return err
		default:
			drawn++
		}
	}
	log.Infof("scene closed")
	return nil
}
