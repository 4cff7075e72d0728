package config

import "fmt"

// Default returns the configuration used when a field is unspecified.
func Default() Config {
	return Config{
		Addr:              ":8090",
		DataDir:           "~/.upscaled",
		ModelsDir:         "~/.upscaled/models",
		MaxModelScale:     8,
		MinInputChannels:  3,
		MinOutputChannels: 3,
		TileSize:          512,
		TileOverlapPx:     32,
		TileFloorSize:     64,
		Threshold1x:       2048,
		Threshold2x3x:     1024,
		Threshold4x5x:     768,
		Threshold6x7x:     640,
		Threshold8x:       512,
		DeviceStreams:     1,
		MemBudgetMB:       4096,
		MemMarginMB:       256,
		QueueDepth:        16,
		MaxQueueWaitMS:    30_000,
		FetchConcurrency:  3,
		MaxBodyBytes:      64 << 20,
		MaxInputPixels:    64_000_000,
		LogLevel:          "info",
	}
}

// FillDefaults replaces unspecified fields with their defaults.
func (c Config) FillDefaults() Config {
	d := Default()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.ModelsDir == "" {
		c.ModelsDir = d.ModelsDir
	}
	if c.MaxModelScale == 0 {
		c.MaxModelScale = d.MaxModelScale
	}
	if c.MinInputChannels == 0 {
		c.MinInputChannels = d.MinInputChannels
	}
	if c.MinOutputChannels == 0 {
		c.MinOutputChannels = d.MinOutputChannels
	}
	if c.TileSize == 0 {
		c.TileSize = d.TileSize
	}
	if c.TileOverlapPx == 0 {
		c.TileOverlapPx = d.TileOverlapPx
	}
	if c.TileFloorSize == 0 {
		c.TileFloorSize = d.TileFloorSize
	}
	if c.Threshold1x == 0 {
		c.Threshold1x = d.Threshold1x
	}
	if c.Threshold2x3x == 0 {
		c.Threshold2x3x = d.Threshold2x3x
	}
	if c.Threshold4x5x == 0 {
		c.Threshold4x5x = d.Threshold4x5x
	}
	if c.Threshold6x7x == 0 {
		c.Threshold6x7x = d.Threshold6x7x
	}
	if c.Threshold8x == 0 {
		c.Threshold8x = d.Threshold8x
	}
	if c.DeviceStreams == 0 {
		c.DeviceStreams = d.DeviceStreams
	}
	if c.MemBudgetMB == 0 {
		c.MemBudgetMB = d.MemBudgetMB
	}
	if c.MemMarginMB == 0 {
		c.MemMarginMB = d.MemMarginMB
	}
	if c.QueueDepth == 0 {
		c.QueueDepth = d.QueueDepth
	}
	if c.MaxQueueWaitMS == 0 {
		c.MaxQueueWaitMS = d.MaxQueueWaitMS
	}
	if c.FetchConcurrency == 0 {
		c.FetchConcurrency = d.FetchConcurrency
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.MaxInputPixels == 0 {
		c.MaxInputPixels = d.MaxInputPixels
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	return c
}

// Validate rejects out-of-range values before any inference is attempted.
// It expects defaults to be filled in already.
func (c Config) Validate() error {
	if c.TileSize <= 0 {
		return fmt.Errorf("tile_size must be positive, got %d", c.TileSize)
	}
	if c.TileOverlapPx < 0 {
		return fmt.Errorf("tile_overlap_px must not be negative, got %d", c.TileOverlapPx)
	}
	if c.TileOverlapPx*2 >= c.TileSize {
		return fmt.Errorf("tile_overlap_px %d too large for tile_size %d", c.TileOverlapPx, c.TileSize)
	}
	if c.TileFloorSize <= 0 {
		return fmt.Errorf("tile_floor_size must be positive, got %d", c.TileFloorSize)
	}
	if c.TileFloorSize > c.TileSize {
		return fmt.Errorf("tile_floor_size %d exceeds tile_size %d", c.TileFloorSize, c.TileSize)
	}
	for _, th := range []struct {
		name string
		v    int
	}{
		{"threshold_1x", c.Threshold1x},
		{"threshold_2x3x", c.Threshold2x3x},
		{"threshold_4x5x", c.Threshold4x5x},
		{"threshold_6x7x", c.Threshold6x7x},
		{"threshold_8x", c.Threshold8x},
	} {
		if th.v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", th.name, th.v)
		}
	}
	if c.MaxModelScale < 1 {
		return fmt.Errorf("max_model_scale must be at least 1, got %d", c.MaxModelScale)
	}
	if c.MinInputChannels < 1 || c.MinInputChannels > 4 {
		return fmt.Errorf("min_input_channels must be in 1..4, got %d", c.MinInputChannels)
	}
	if c.MinOutputChannels < 1 || c.MinOutputChannels > 4 {
		return fmt.Errorf("min_output_channels must be in 1..4, got %d", c.MinOutputChannels)
	}
	if c.DeviceStreams < 1 {
		return fmt.Errorf("device_streams must be at least 1, got %d", c.DeviceStreams)
	}
	if c.DeviceCapacityPx < 0 {
		return fmt.Errorf("device_capacity_px must not be negative, got %d", c.DeviceCapacityPx)
	}
	if c.MemBudgetMB < 0 {
		return fmt.Errorf("mem_budget_mb must not be negative, got %d", c.MemBudgetMB)
	}
	if c.MemMarginMB < 0 {
		return fmt.Errorf("mem_margin_mb must not be negative, got %d", c.MemMarginMB)
	}
	if c.QueueDepth < 1 {
		return fmt.Errorf("queue_depth must be at least 1, got %d", c.QueueDepth)
	}
	if c.MaxQueueWaitMS < 0 {
		return fmt.Errorf("max_queue_wait_ms must not be negative, got %d", c.MaxQueueWaitMS)
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("fetch_concurrency must be at least 1, got %d", c.FetchConcurrency)
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes must not be negative, got %d", c.MaxBodyBytes)
	}
	if c.MaxInputPixels < 0 {
		return fmt.Errorf("max_input_pixels must not be negative, got %d", c.MaxInputPixels)
	}
	if c.UpscaleTimeoutS < 0 {
		return fmt.Errorf("upscale_timeout_s must not be negative, got %d", c.UpscaleTimeoutS)
	}
	return nil
}
