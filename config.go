package strale

import (
	"os"
	"strings"
	"time"

	"github.com/andewx/strale/driver"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Config holds every tunable of the renderer core. It is read from TOML;
// fields absent from the file keep their DefaultConfig values.
type Config struct {
	App        AppConfig        `toml:"app"`
	Validation ValidationConfig `toml:"validation"`
	Timeouts   TimeoutConfig    `toml:"timeouts"`
	Swapchain  SwapchainConfig  `toml:"swapchain"`
	Features   FeatureConfig    `toml:"features"`
	Bindless   BindlessConfig   `toml:"bindless"`
	Log        LogConfig        `toml:"log"`
	Shaders    ShaderConfig     `toml:"shaders"`
	Scene      SceneConfig      `toml:"scene"`

	// FatalHandler replaces the logger's exit path for steady-state failures.
	FatalHandler FatalHandler `toml:"-"`
}

type AppConfig struct {
	Name   string `toml:"name"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type ValidationConfig struct {
	Enabled                 bool     `toml:"enabled"`
	Layers                  []string `toml:"layers"`
	DropPerformanceWarnings bool     `toml:"drop_performance_warnings"`
}

// TimeoutConfig bounds the blocking waits of the frame loop. Zero waits
// forever.
type TimeoutConfig struct {
	Fence   Duration `toml:"fence"`
	Acquire Duration `toml:"acquire"`
}

type SwapchainConfig struct {
	MinImages   uint32 `toml:"min_images"`
	PresentMode string `toml:"present_mode"`
}

// FeatureConfig names the optional device features to request. Dynamic
// rendering is always requested.
type FeatureConfig struct {
	ScalarBlockLayout    bool `toml:"scalar_block_layout"`
	DescriptorIndexing   bool `toml:"descriptor_indexing"`
	ImagelessFramebuffer bool `toml:"imageless_framebuffer"`
	ShaderFloat16Int8    bool `toml:"shader_float16_int8"`
	BufferDeviceAddress  bool `toml:"buffer_device_address"`
	VulkanMemoryModel    bool `toml:"vulkan_memory_model"`
	RayTracing           bool `toml:"ray_tracing"`
}

// BindlessConfig sizes the bindless set. The renderer needs bindings 0 and 1
// for vertices and spheres, so it rejects fewer than two.
type BindlessConfig struct {
	StorageBuffers uint32 `toml:"storage_buffers"`
}

type LogConfig struct {
	Dir string `toml:"dir"`
}

type ShaderConfig struct {
	Dir string `toml:"dir"`
}

type SceneConfig struct {
	SphereCapacity uint64 `toml:"sphere_capacity"`
}

// Duration reads TOML strings such as "250ms" or "2s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "0" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", s)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func DefaultConfig() Config {
	return Config{
		App: AppConfig{Name: "strale", Width: 1920, Height: 1080},
		Validation: ValidationConfig{
			Enabled:                 true,
			Layers:                  []string{"VK_LAYER_KHRONOS_validation"},
			DropPerformanceWarnings: true,
		},
		Swapchain: SwapchainConfig{MinImages: 3, PresentMode: "immediate"},
		Features: FeatureConfig{
			ScalarBlockLayout:    true,
			DescriptorIndexing:   true,
			ImagelessFramebuffer: true,
			ShaderFloat16Int8:    true,
			BufferDeviceAddress:  true,
			VulkanMemoryModel:    true,
			RayTracing:           true,
		},
		Bindless: BindlessConfig{StorageBuffers: 2},
		Shaders:  ShaderConfig{Dir: "assets/shaders"},
		Scene:    SceneConfig{SphereCapacity: 1 << 20},
	}
}

// LoadConfig overlays the TOML file at path on DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.App.Width <= 0 || c.App.Height <= 0 {
		return errors.Errorf("config: window size %dx%d is not positive", c.App.Width, c.App.Height)
	}
	if c.Bindless.StorageBuffers == 0 {
		return errors.New("config: bindless set needs at least one storage buffer")
	}
	if c.Swapchain.MinImages == 0 {
		return errors.New("config: swapchain min_images must be at least 1")
	}
	if _, err := c.Swapchain.Mode(); err != nil {
		return err
	}
	if c.Scene.SphereCapacity < SphereSize {
		return errors.Errorf("config: sphere capacity %d is smaller than one sphere", c.Scene.SphereCapacity)
	}
	return nil
}

// Mode parses PresentMode. Empty means immediate.
func (s SwapchainConfig) Mode() (driver.PresentMode, error) {
	switch strings.ToLower(s.PresentMode) {
	case "", "immediate":
		return driver.PresentModeImmediate, nil
	case "mailbox":
		return driver.PresentModeMailbox, nil
	case "fifo":
		return driver.PresentModeFifo, nil
	case "fifo-relaxed", "fifo_relaxed":
		return driver.PresentModeFifoRelaxed, nil
	}
	return 0, errors.Errorf("config: unknown present mode %q", s.PresentMode)
}

// requestedFeatures maps the config onto the driver feature set.
func (f FeatureConfig) requestedFeatures() driver.Features {
	return driver.Features{
		DynamicRendering:  true,
		ScalarBlockLayout: f.ScalarBlockLayout,

		DescriptorIndexing:                            f.DescriptorIndexing,
		DescriptorBindingPartiallyBound:               f.DescriptorIndexing,
		DescriptorBindingStorageBufferUpdateAfterBind: f.DescriptorIndexing,
		DescriptorBindingUpdateUnusedWhilePending:     f.DescriptorIndexing,
		RuntimeDescriptorArray:                        f.DescriptorIndexing,

		ImagelessFramebuffer: f.ImagelessFramebuffer,
		ShaderFloat16:        f.ShaderFloat16Int8,
		ShaderInt8:           f.ShaderFloat16Int8,
		BufferDeviceAddress:  f.BufferDeviceAddress,
		VulkanMemoryModel:    f.VulkanMemoryModel,
	}
}

func (c *Config) fatalHandler(log *Logger) FatalHandler {
	if c.FatalHandler != nil {
		return c.FatalHandler
	}
	return func(err error) { log.Fatal(err) }
}
