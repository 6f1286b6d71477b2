// Package config loads the immutable per-instance map view configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"spill-map/pkg/geometry"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Map     MapConfig     `mapstructure:"map"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MapConfig configures one map view. Changing any field requires a new view.
type MapConfig struct {
	// Bounds lists four [lon, lat] corners: bottom-left, top-left,
	// top-right, bottom-right.
	Bounds             [][]float64   `mapstructure:"bounds"`
	AnimationThreshold time.Duration `mapstructure:"animation_threshold"`
	LoadTimeout        time.Duration `mapstructure:"load_timeout"`
	Element            string        `mapstructure:"element"`
	FrameClass         string        `mapstructure:"frame_class"`
	ActiveFrameClass   string        `mapstructure:"active_frame_class"`
	PlaceholderClass   string        `mapstructure:"placeholder_class"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// GeoBounds converts the configured corners.
func (m MapConfig) GeoBounds() (*geometry.GeoBounds, error) {
	b, err := geometry.GeoBoundsFromPairs(m.Bounds)
	if err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks the map settings.
func (m MapConfig) Validate() error {
	if _, err := m.GeoBounds(); err != nil {
		return fmt.Errorf("map.bounds: %w", err)
	}
	if m.AnimationThreshold < 0 {
		return fmt.Errorf("map.animation_threshold must not be negative, got %v", m.AnimationThreshold)
	}
	if m.LoadTimeout <= 0 {
		return fmt.Errorf("map.load_timeout must be positive, got %v", m.LoadTimeout)
	}
	return nil
}

// Defaults returns a viper instance primed with default values.
func Defaults() *viper.Viper {
	v := viper.New()

	v.SetDefault("map.bounds", [][]float64{{-180, -90}, {-180, 90}, {180, 90}, {180, -90}})
	v.SetDefault("map.animation_threshold", "200ms")
	v.SetDefault("map.load_timeout", "10s")
	v.SetDefault("map.element", "map")
	v.SetDefault("map.frame_class", "frame")
	v.SetDefault("map.active_frame_class", "active")
	v.SetDefault("map.placeholder_class", "placeholder")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9102")

	return v
}

// Load reads configuration from file and environment variables. When path
// is empty, config.yaml is looked up in . and ./configs and may be absent.
func Load(path string) (*Config, error) {
	v := Defaults()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// Environment variables override file values: SPILLMAP_MAP_LOAD_TIMEOUT etc.
	v.SetEnvPrefix("SPILLMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Map.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
