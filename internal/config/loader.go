package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by defaults in main.
type Config struct {
	Addr       string `json:"addr" yaml:"addr" toml:"addr"`
	DataDir    string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	ModelsDir  string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	CatalogURL string `json:"catalog_url" yaml:"catalog_url" toml:"catalog_url"`

	// Model used when a request does not name one.
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`

	// Catalog admission bounds.
	MaxModelScale     int `json:"max_model_scale" yaml:"max_model_scale" toml:"max_model_scale"`
	MinInputChannels  int `json:"min_input_channels" yaml:"min_input_channels" toml:"min_input_channels"`
	MinOutputChannels int `json:"min_output_channels" yaml:"min_output_channels" toml:"min_output_channels"`

	// Tiling geometry. Thresholds are the largest input dimension that
	// still runs as a single tile, keyed by scale band; 0 means unlimited.
	TileSize      int `json:"tile_size" yaml:"tile_size" toml:"tile_size"`
	TileOverlapPx int `json:"tile_overlap_px" yaml:"tile_overlap_px" toml:"tile_overlap_px"`
	TileFloorSize int `json:"tile_floor_size" yaml:"tile_floor_size" toml:"tile_floor_size"`
	Threshold1x   int `json:"threshold_1x" yaml:"threshold_1x" toml:"threshold_1x"`
	Threshold2x3x int `json:"threshold_2x3x" yaml:"threshold_2x3x" toml:"threshold_2x3x"`
	Threshold4x5x int `json:"threshold_4x5x" yaml:"threshold_4x5x" toml:"threshold_4x5x"`
	Threshold6x7x int `json:"threshold_6x7x" yaml:"threshold_6x7x" toml:"threshold_6x7x"`
	Threshold8x   int `json:"threshold_8x" yaml:"threshold_8x" toml:"threshold_8x"`

	// Device and loaded-model cache limits.
	DeviceStreams    int `json:"device_streams" yaml:"device_streams" toml:"device_streams"`
	DeviceCapacityPx int `json:"device_capacity_px" yaml:"device_capacity_px" toml:"device_capacity_px"`
	MemBudgetMB      int `json:"mem_budget_mb" yaml:"mem_budget_mb" toml:"mem_budget_mb"`
	MemMarginMB      int `json:"mem_margin_mb" yaml:"mem_margin_mb" toml:"mem_margin_mb"`

	// Job admission: how many jobs may wait for a stream and for how long.
	QueueDepth     int `json:"queue_depth" yaml:"queue_depth" toml:"queue_depth"`
	MaxQueueWaitMS int `json:"max_queue_wait_ms" yaml:"max_queue_wait_ms" toml:"max_queue_wait_ms"`

	// Weight fetcher.
	FetchConcurrency int `json:"fetch_concurrency" yaml:"fetch_concurrency" toml:"fetch_concurrency"`

	// HTTP surface.
	MaxBodyBytes    int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	MaxInputPixels  int64    `json:"max_input_pixels" yaml:"max_input_pixels" toml:"max_input_pixels"`
	UpscaleTimeoutS int64    `json:"upscale_timeout_s" yaml:"upscale_timeout_s" toml:"upscale_timeout_s"`
	AllowedOrigins  []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	LogLevel        string   `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
