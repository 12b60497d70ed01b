package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"AR_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"AR_DB_MAX_CONNS" default:"8"`

	// External collaborators. IPFS and Elasticsearch are optional so the CLI
	// can run against in-memory substitutes in local mode.
	TikaURL     string `envconfig:"TIKA_URL" default:"http://tika:9998"`
	IPFSAPIURL  string `envconfig:"IPFS_API_URL" default:""`
	ElasticURL  string `envconfig:"ELASTIC_URL" default:""`
	SearchIndex string `envconfig:"SEARCH_INDEX" default:"documents"`

	ObjectStoreOrigin string `envconfig:"OBJECT_STORE_ORIGIN" default:"https://s3.amazonaws.com"`
	GatewayBaseURL    string `envconfig:"GATEWAY_BASE_URL" default:"https://gateway.ipfs.io/ipfs"`

	// DocumentURIBase is an identifier namespace, not a dereferenceable URL,
	// so it deliberately stays on plain http without a www subdomain.
	DocumentURIBase string `envconfig:"DOCUMENT_URI_BASE" default:"http://archivist.horse.fit/doc"`
	DocumentURLBase string `envconfig:"DOCUMENT_URL_BASE" default:"https://archivist.horse.fit/doc"`

	MaxPayloadBytes int64 `envconfig:"MAX_PAYLOAD_BYTES" default:"536870912"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("AR_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("AR_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("AR_DB_MIN_CONNS (%d) cannot exceed AR_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.TikaURL) == "" {
		return fmt.Errorf("TIKA_URL is required")
	}
	if strings.TrimSpace(c.ObjectStoreOrigin) == "" {
		return fmt.Errorf("OBJECT_STORE_ORIGIN is required")
	}
	if c.MaxPayloadBytes < 1 {
		return fmt.Errorf("MAX_PAYLOAD_BYTES must be >= 1")
	}
	return nil
}
