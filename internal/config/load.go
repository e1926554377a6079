package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read after the config file.
const (
	EnvS3Region    = "MESHPREVIEW_S3_REGION"
	EnvS3Endpoint  = "MESHPREVIEW_S3_ENDPOINT"
	EnvS3AccessKey = "MESHPREVIEW_S3_ACCESS_KEY"
	EnvS3SecretKey = "MESHPREVIEW_S3_SECRET_KEY"
	EnvFileRoot    = "MESHPREVIEW_FILE_ROOT"
)

// Load loads configuration with priority: defaults < file < env < flags.
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	if err := loadDotEnv(*flagEnv); err != nil {
		return nil, fmt.Errorf("loading %s: %w", *flagEnv, err)
	}
	applyEnv(cfg)

	applyFlags(cfg)

	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./meshpreview.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "MeshPreview")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "MeshPreview")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "meshpreview")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "meshpreview")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// loadDotEnv exports the variables in path without overriding ones
// already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Sources.S3.Region, EnvS3Region)
	set(&cfg.Sources.S3.Endpoint, EnvS3Endpoint)
	set(&cfg.Sources.S3.AccessKey, EnvS3AccessKey)
	set(&cfg.Sources.S3.SecretKey, EnvS3SecretKey)
	set(&cfg.Sources.FileRoot, EnvFileRoot)
}
