package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Blob backends of the storage API.
const (
	BlobFS = "fs"
	BlobS3 = "s3"
)

// ServerConfig configures the photo storage API. It is read from the
// environment only.
type ServerConfig struct {
	Port           int    `env:"PORT" envDefault:"8080"`
	StoragePath    string `env:"STORAGE_PATH" envDefault:"./data/photos"`
	DBPath         string `env:"FOTOBOO_DB_PATH"`
	BlobBackend    string `env:"FOTOBOO_BLOB_BACKEND" envDefault:"fs"`
	MaxUploadBytes int64  `env:"FOTOBOO_MAX_UPLOAD_BYTES" envDefault:"10485760"`
	CORSOrigin     string `env:"FOTOBOO_CORS_ORIGIN" envDefault:"*"`
	DebugLevel     int    `env:"FOTOBOO_DEBUG_LEVEL" envDefault:"1"`

	S3 S3Config `envPrefix:"FOTOBOO_S3_"`
}

// S3Config selects the bucket used when BlobBackend is "s3".
type S3Config struct {
	Bucket    string `env:"BUCKET"`
	Prefix    string `env:"PREFIX" envDefault:"photos/"`
	Region    string `env:"REGION"`
	Endpoint  string `env:"ENDPOINT"`
	PathStyle bool   `env:"PATH_STYLE"`
}

// LoadServer reads the storage API configuration from the environment.
func LoadServer() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT must be 1-65535, got %d", cfg.Port)
	}
	if cfg.StoragePath == "" {
		return nil, fmt.Errorf("STORAGE_PATH is required")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.StoragePath, "photos.db")
	}
	switch cfg.BlobBackend {
	case BlobFS:
	case BlobS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("FOTOBOO_S3_BUCKET is required with the s3 blob backend")
		}
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", cfg.BlobBackend)
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("FOTOBOO_MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.DebugLevel < 0 || cfg.DebugLevel > 4 {
		return nil, fmt.Errorf("FOTOBOO_DEBUG_LEVEL must be between 0 and 4, got %d", cfg.DebugLevel)
	}
	return &cfg, nil
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
