package core

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

type WindowConfig struct {
	// The application name used in windowing.
	Title string `toml:"title"`
	// Window starting position.
	PosX uint32 `toml:"pos_x"`
	PosY uint32 `toml:"pos_y"`
	// Window starting size.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	FramesInFlight uint32     `toml:"frames_in_flight"`
	FenceTimeoutMS uint64     `toml:"fence_timeout_ms"`
	PreferMailbox  bool       `toml:"prefer_mailbox"`
	ClearColor     [4]float32 `toml:"clear_color"`
	Validation     bool       `toml:"validation"`
}

type DescriptorRatio struct {
	// One of combined_image_sampler, sampled_image, sampler, uniform_buffer,
	// uniform_buffer_dynamic, storage_buffer, storage_image.
	Type  string  `toml:"type"`
	Ratio float32 `toml:"ratio"`
}

type DescriptorConfig struct {
	InitialSets    uint32            `toml:"initial_sets"`
	MaxSetsPerPool uint32            `toml:"max_sets_per_pool"`
	GrowthFactor   float32           `toml:"growth_factor"`
	Ratios         []DescriptorRatio `toml:"ratios"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Window      WindowConfig     `toml:"window"`
	Renderer    RendererConfig   `toml:"renderer"`
	Descriptors DescriptorConfig `toml:"descriptors"`
	Log         LogConfig        `toml:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "Cadence",
			PosX:   100,
			PosY:   100,
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			FramesInFlight: 2,
			FenceTimeoutMS: 1000,
			PreferMailbox:  true,
			ClearColor:     [4]float32{0.0, 0.0, 0.2, 1.0},
		},
		Descriptors: DescriptorConfig{
			InitialSets:    1000,
			MaxSetsPerPool: 4096,
			GrowthFactor:   1.5,
			Ratios: []DescriptorRatio{
				{Type: "combined_image_sampler", Ratio: 3},
				{Type: "uniform_buffer", Ratio: 3},
				{Type: "storage_buffer", Ratio: 1},
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig, so missing keys keep
// their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config `%s`", path)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	// Array tables append to an existing slice, so defaults apply only when
	// the file declares no ratios.
	cfg.Descriptors.Ratios = nil
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if len(cfg.Descriptors.Ratios) == 0 {
		cfg.Descriptors.Ratios = DefaultConfig().Descriptors.Ratios
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Renderer.FramesInFlight == 0 {
		return errors.Wrap(ErrInvalidConfig, "renderer.frames_in_flight must be at least 1")
	}
	if c.Renderer.FenceTimeoutMS == 0 {
		return errors.Wrap(ErrInvalidConfig, "renderer.fence_timeout_ms must be positive")
	}
	if c.Descriptors.InitialSets == 0 {
		return errors.Wrap(ErrInvalidConfig, "descriptors.initial_sets must be at least 1")
	}
	if c.Descriptors.MaxSetsPerPool < c.Descriptors.InitialSets {
		return errors.Wrapf(ErrInvalidConfig, "descriptors.max_sets_per_pool (%d) is below initial_sets (%d)",
			c.Descriptors.MaxSetsPerPool, c.Descriptors.InitialSets)
	}
	if c.Descriptors.GrowthFactor < 1 {
		return errors.Wrap(ErrInvalidConfig, "descriptors.growth_factor must be >= 1")
	}
	if len(c.Descriptors.Ratios) == 0 {
		return errors.Wrap(ErrInvalidConfig, "descriptors.ratios must not be empty")
	}
	for _, r := range c.Descriptors.Ratios {
		if r.Ratio <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "descriptor ratio for `%s` must be positive", r.Type)
		}
	}
	return nil
}
