// Package config loads engine settings from a TOML or YAML file.
//
// Every field has a default, so a file only needs the values it changes:
//
//	[engine]
//	target_fps = 120
//	batch_order = "layer"
//
//	[logging]
//	level = "debug"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/stage/backend"
	"github.com/gogpu/stage/batch"
	"github.com/gogpu/stage/engine"
	"github.com/gogpu/stage/resource"
	"github.com/gogpu/stage/text"
)

// Config is the complete engine configuration. Each section maps onto one
// package's constructor options.
type Config struct {
	Engine       EngineConfig       `toml:"engine" yaml:"engine"`
	Atlas        AtlasConfig        `toml:"atlas" yaml:"atlas"`
	Loader       LoaderConfig       `toml:"loader" yaml:"loader"`
	Tessellation TessellationConfig `toml:"tessellation" yaml:"tessellation"`
	Text         TextConfig         `toml:"text" yaml:"text"`
	Logging      LoggingConfig      `toml:"logging" yaml:"logging"`
	Backend      BackendConfig      `toml:"backend" yaml:"backend"`
}

// EngineConfig holds the frame loop settings.
type EngineConfig struct {
	TargetFPS         float64       `toml:"target_fps" yaml:"target_fps"` // <= 0 ticks unbounded
	PipelineDepth     int           `toml:"pipeline_depth" yaml:"pipeline_depth"`
	ShutdownGrace     time.Duration `toml:"shutdown_grace" yaml:"shutdown_grace"`
	RecoverDeviceLost bool          `toml:"recover_device_lost" yaml:"recover_device_lost"`
	BatchOrder        string        `toml:"batch_order" yaml:"batch_order"` // "state" or "layer"
}

// AtlasConfig sizes the glyph atlas texture.
type AtlasConfig struct {
	Size    int `toml:"size" yaml:"size"`
	Padding int `toml:"padding" yaml:"padding"`
}

// LoaderConfig controls background resource decoding.
type LoaderConfig struct {
	Workers        int `toml:"workers" yaml:"workers"`
	MaxTextureSize int `toml:"max_texture_size" yaml:"max_texture_size"` // 0 disables downscaling
}

// TessellationConfig controls how shapes are turned into triangles.
type TessellationConfig struct {
	// Tolerance is the maximum distance in pixels between a curve and its
	// flattened polyline.
	Tolerance float64 `toml:"tolerance" yaml:"tolerance"`
}

// TextConfig controls text shaping.
type TextConfig struct {
	LayoutCacheSize int `toml:"layout_cache_size" yaml:"layout_cache_size"`
}

// LoggingConfig selects the log level and output encoding.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "json" or "console"
}

// BackendConfig names the renderer backend.
type BackendConfig struct {
	Name string `toml:"name" yaml:"name"` // empty selects the best available
}

// MaxTargetFPS bounds engine.target_fps.
const MaxTargetFPS = 1000

// FieldError reports an invalid configuration value.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Default returns the built-in configuration.
func Default() *Config {
	glyphs := text.DefaultGlyphCacheConfig()
	return &Config{
		Engine: EngineConfig{
			TargetFPS:     60,
			PipelineDepth: glyphs.PipelineDepth,
			ShutdownGrace: 2 * time.Second,
			BatchOrder:    batch.OrderByState.String(),
		},
		Atlas: AtlasConfig{
			Size:    glyphs.AtlasSize,
			Padding: glyphs.Padding,
		},
		Loader: LoaderConfig{
			Workers:        4,
			MaxTextureSize: 4096,
		},
		Tessellation: TessellationConfig{
			Tolerance: batch.DefaultConfig().Tolerance,
		},
		Text: TextConfig{
			LayoutCacheSize: text.DefaultLayoutCacheSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path on top of Default and validates the result. The format
// follows the extension: .toml, .yaml or .yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config %s: unsupported format %q", path, ext)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and returns the first *FieldError.
func (c *Config) Validate() error {
	switch {
	case c.Engine.TargetFPS > MaxTargetFPS:
		return &FieldError{"engine.target_fps", fmt.Sprintf("must be at most %d", MaxTargetFPS)}
	case c.Engine.PipelineDepth < 1:
		return &FieldError{"engine.pipeline_depth", "must be at least 1"}
	case c.Engine.ShutdownGrace < 0:
		return &FieldError{"engine.shutdown_grace", "must not be negative"}
	case c.Atlas.Size < 64 || c.Atlas.Size > 8192:
		return &FieldError{"atlas.size", "must be between 64 and 8192"}
	case c.Atlas.Padding < 0 || c.Atlas.Padding > 8:
		return &FieldError{"atlas.padding", "must be between 0 and 8"}
	case c.Loader.Workers < 1:
		return &FieldError{"loader.workers", "must be at least 1"}
	case c.Loader.MaxTextureSize < 0:
		return &FieldError{"loader.max_texture_size", "must not be negative"}
	case c.Tessellation.Tolerance <= 0:
		return &FieldError{"tessellation.tolerance", "must be positive"}
	case c.Text.LayoutCacheSize < 1:
		return &FieldError{"text.layout_cache_size", "must be at least 1"}
	}
	if _, err := batch.ParseOrder(c.Engine.BatchOrder); err != nil {
		return &FieldError{"engine.batch_order", fmt.Sprintf("unknown order %q", c.Engine.BatchOrder)}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &FieldError{"logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return &FieldError{"logging.format", fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	return nil
}

// LoaderOptions returns the resource loader options.
func (c *Config) LoaderOptions() []resource.Option {
	return []resource.Option{
		resource.WithWorkers(c.Loader.Workers),
		resource.WithMaxTextureSize(c.Loader.MaxTextureSize),
	}
}

// GlyphCacheConfig returns the glyph cache settings.
func (c *Config) GlyphCacheConfig() text.GlyphCacheConfig {
	return text.GlyphCacheConfig{
		AtlasSize:     c.Atlas.Size,
		Padding:       c.Atlas.Padding,
		PipelineDepth: c.Engine.PipelineDepth,
	}
}

// CompilerConfig returns the batch compiler settings.
func (c *Config) CompilerConfig() (batch.Config, error) {
	order, err := batch.ParseOrder(c.Engine.BatchOrder)
	if err != nil {
		return batch.Config{}, &FieldError{"engine.batch_order", err.Error()}
	}
	cc := batch.DefaultConfig()
	cc.Tolerance = c.Tessellation.Tolerance
	cc.Order = order
	return cc, nil
}

// EngineOptions maps the configuration onto engine options. It creates
// the loader and, when a backend is named, the backend; both are owned by
// the engine built from the options.
func (c *Config) EngineOptions() ([]engine.Option, error) {
	cc, err := c.CompilerConfig()
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{
		engine.WithTargetFPS(c.Engine.TargetFPS),
		engine.WithShutdownGrace(c.Engine.ShutdownGrace),
		engine.WithRecoverDeviceLost(c.Engine.RecoverDeviceLost),
		engine.WithCompilerConfig(cc),
		engine.WithGlyphCacheConfig(c.GlyphCacheConfig()),
		engine.WithLayoutCacheSize(c.Text.LayoutCacheSize),
	}
	if c.Backend.Name != "" {
		b, err := backend.Get(c.Backend.Name)
		if err != nil {
			return nil, &FieldError{"backend.name", err.Error()}
		}
		opts = append(opts, engine.WithBackend(b))
	}
	opts = append(opts, engine.WithLoader(resource.NewLoader(c.LoaderOptions()...)))
	return opts, nil
}
