// Package config handles meshpreview configuration loading and management.
package config

import "time"

// Config holds all preview host settings.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Preview PreviewConfig `yaml:"preview"`
	Render  RenderConfig  `yaml:"render"`
	Sources SourcesConfig `yaml:"sources"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP host settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"` // websocket keepalive
	MaxSessions  int           `yaml:"max_sessions"`
}

// PreviewConfig holds the defaults new panels start with.
type PreviewConfig struct {
	Height   string  `yaml:"height"`
	FOV      float64 `yaml:"fov"`
	Preset   int     `yaml:"default_preset"`
	ShowGrid bool    `yaml:"show_grid"`
	Damping  bool    `yaml:"damping"`
	FPS      int     `yaml:"fps"`
}

// RenderConfig holds software rasterizer settings.
type RenderConfig struct {
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	Supersample  int     `yaml:"supersample"`
	MaxGridLines int     `yaml:"max_grid_lines"`
	LabelSize    float64 `yaml:"label_size"`
}

// SourcesConfig holds asset fetching settings.
type SourcesConfig struct {
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	FileRoot     string        `yaml:"file_root"` // empty disables file:// URLs
	MaxBytes     int64         `yaml:"max_bytes"` // per asset, 0 disables the cap
	S3           S3Config      `yaml:"s3"`
}

// S3Config holds object storage credentials. Keys are usually supplied
// through the environment rather than the config file.
type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

// Enabled reports whether enough is configured to build an S3 client.
func (c S3Config) Enabled() bool {
	return c.Region != "" || c.Endpoint != ""
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			PingInterval: 30 * time.Second,
			MaxSessions:  64,
		},
		Preview: PreviewConfig{
			Height:   "350px",
			FOV:      45,
			Preset:   0,
			ShowGrid: true,
			Damping:  true,
			FPS:      60,
		},
		Render: RenderConfig{
			Width:        800,
			Height:       500,
			Supersample:  2,
			MaxGridLines: 400,
			LabelSize:    13,
		},
		Sources: SourcesConfig{
			HTTPTimeout:  30 * time.Second,
			FetchTimeout: 60 * time.Second,
			MaxBytes:     256 << 20,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
