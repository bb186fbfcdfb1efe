package config

import (
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v2"
)

// Config represents the main configuration
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Culling  CullingConfig  `yaml:"culling"`
	Terrain  TerrainConfig  `yaml:"terrain"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig contains demo window configuration
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// CullingConfig contains occlusion culling configuration
type CullingConfig struct {
	// Resolution is the edge length of the square depth image, and
	// the beam count of the rasterizer.
	Resolution int `yaml:"resolution"`
	// Workers is the number of goroutines used for beam casting and
	// splatting. Zero means one per CPU.
	Workers int `yaml:"workers"`
}

// TerrainConfig contains occluder terrain build configuration
type TerrainConfig struct {
	SizeX        int `yaml:"size_x"`
	SizeY        int `yaml:"size_y"`
	Depth        int `yaml:"depth"`
	TileSizeBits int `yaml:"tile_size_bits"`
	Downsample   int `yaml:"downsample"`
	// TileBudget caps the per-tile voxelization working set, in bytes.
	TileBudget int `yaml:"tile_budget"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error, fatal
	File  string `yaml:"file"`  // Optional log file path
}

// DefaultConfig creates a default configuration
func DefaultConfig() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      800,
			Height:     600,
			Fullscreen: false,
			VSync:      true,
		},
		Culling: CullingConfig{
			Resolution: 128,
			Workers:    0, // One per CPU
		},
		Terrain: TerrainConfig{
			SizeX:        512,
			SizeY:        512,
			Depth:        64,
			TileSizeBits: 6,
			Downsample:   1,
			TileBudget:   0, // No cap
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadConfig loads the configuration from a file
func LoadConfig(filePath string) (*Config, error) {
	// Create default config
	config := DefaultConfig()

	// Read file
	data, err := ioutil.ReadFile(filePath)
	if err != nil {
		return config, fmt.Errorf("config file not found, using defaults: %v", err)
	}

	// Parse YAML
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return config, fmt.Errorf("error parsing config: %v", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, filePath string) error {
	// Convert to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error serializing config: %v", err)
	}

	// Write file
	err = ioutil.WriteFile(filePath, data, 0644)
	if err != nil {
		return fmt.Errorf("error writing config file: %v", err)
	}

	return nil
}
