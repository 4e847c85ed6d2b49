// Package config handles configuration loading and validation for filedrive.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/filedrive/filedrive/pkg/bytesize"
	"gopkg.in/yaml.v3"
)

// Backend names accepted in the backend field.
const (
	BackendMemory = "memory"
	BackendDisk   = "disk"
	BackendS3     = "s3"
)

// Environment variables that override file settings.
const (
	EnvS3Endpoint  = "FILEDRIVE_S3_ENDPOINT"
	EnvS3AccessKey = "FILEDRIVE_S3_ACCESS_KEY"
	EnvS3SecretKey = "FILEDRIVE_S3_SECRET_KEY"
	EnvBucket      = "FILEDRIVE_BUCKET"
	EnvDataDir     = "FILEDRIVE_DATA_DIR"
)

// S3Config holds connection settings for an S3-compatible service.
type S3Config struct {
	Endpoint       string `yaml:"endpoint"` // e.g. http://localhost:9000 for MinIO; empty for AWS
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	ForcePathStyle bool   `yaml:"force_path_style"`
	DisableSSL     bool   `yaml:"disable_ssl"`
}

// Config holds filedrive settings.
type Config struct {
	Backend        string        `yaml:"backend"`         // memory, disk or s3 (default: disk)
	Bucket         string        `yaml:"bucket"`          // default: filedrive
	DataDir        string        `yaml:"data_dir"`        // disk backend root (default: ~/.filedrive/data)
	RequestTimeout string        `yaml:"request_timeout"` // Duration string, e.g. "30s"
	PageSize       int           `yaml:"page_size"`       // keys per listing request (default: 1000)
	MaxUploadSize  bytesize.Size `yaml:"max_upload_size"` // e.g. "512Mi"; 0 disables the limit
	LogLevel       string        `yaml:"log_level"`
	User           string        `yaml:"user"` // default tenant for CLI commands
	S3             S3Config      `yaml:"s3"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from a YAML file, applies environment overrides,
// then fills in defaults. An empty path yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{EnvS3Endpoint, &c.S3.Endpoint},
		{EnvS3AccessKey, &c.S3.AccessKey},
		{EnvS3SecretKey, &c.S3.SecretKey},
		{EnvBucket, &c.Bucket},
		{EnvDataDir, &c.DataDir},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			*o.target = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendDisk
	}
	c.Backend = strings.ToLower(c.Backend)
	if c.Bucket == "" {
		c.Bucket = "filedrive"
	}
	if c.DataDir == "" {
		c.DataDir = "~/.filedrive/data"
	}
	// Expand home directory in data dir
	if strings.HasPrefix(c.DataDir, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			c.DataDir = filepath.Join(homeDir, c.DataDir[2:])
		}
	}
	if c.RequestTimeout == "" {
		c.RequestTimeout = "30s"
	}
	if c.PageSize == 0 {
		c.PageSize = 1000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
	// Custom endpoints use path-style addressing
	if c.S3.Endpoint != "" {
		c.S3.ForcePathStyle = true
	}
}

// Timeout returns the parsed per-request timeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendDisk, BackendS3:
	default:
		return fmt.Errorf("backend must be one of %s, %s, %s", BackendMemory, BackendDisk, BackendS3)
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.Backend == BackendDisk && c.DataDir == "" {
		return fmt.Errorf("data_dir is required for the disk backend")
	}
	if d, err := time.ParseDuration(c.RequestTimeout); err != nil {
		return fmt.Errorf("invalid request_timeout: %w", err)
	} else if d <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.PageSize < 1 || c.PageSize > 1000 {
		return fmt.Errorf("page_size must be between 1 and 1000")
	}
	if c.MaxUploadSize < 0 {
		return fmt.Errorf("max_upload_size must not be negative")
	}
	if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
		return fmt.Errorf("s3.access_key and s3.secret_key must be set together")
	}
	return nil
}
