package config

import (
	"fmt"
	"os"
	"time"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

type Config struct {
	Backend string        `yaml:"backend"` // "redis", "mongo", "memory"
	Timeout time.Duration `yaml:"timeout"`
	Redis   RedisConfig   `yaml:"redis"`
	Mongo   MongoConfig   `yaml:"mongo"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// ScanCount is the COUNT hint passed to SCAN.
	ScanCount int64 `yaml:"scan_count"`
	// MGetChunk bounds the number of keys per MGET.
	MGetChunk int `yaml:"mget_chunk"`
	// FetchConcurrency bounds the number of MGET chunks in flight.
	FetchConcurrency int `yaml:"fetch_concurrency"`
}

type MongoConfig struct {
	URI          string `yaml:"uri"`
	DatabaseName string `yaml:"database_name"`
	Collection   string `yaml:"collection"`
	BatchSize    int32  `yaml:"batch_size"`
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendRedis,
		Timeout: 5 * time.Second,
		Redis: RedisConfig{
			Addr:             "localhost:6379",
			ScanCount:        1000,
			MGetChunk:        500,
			FetchConcurrency: 4,
		},
		Mongo: MongoConfig{
			URI:          "mongodb://localhost:27017",
			DatabaseName: "pager",
			Collection:   "documents",
			BatchSize:    1000,
		},
	}
}

// ApplyDefaults fills in zero values.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = d.Redis.Addr
	}
	if c.Redis.ScanCount == 0 {
		c.Redis.ScanCount = d.Redis.ScanCount
	}
	if c.Redis.MGetChunk == 0 {
		c.Redis.MGetChunk = d.Redis.MGetChunk
	}
	if c.Redis.FetchConcurrency == 0 {
		c.Redis.FetchConcurrency = d.Redis.FetchConcurrency
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = d.Mongo.URI
	}
	if c.Mongo.DatabaseName == "" {
		c.Mongo.DatabaseName = d.Mongo.DatabaseName
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = d.Mongo.Collection
	}
	if c.Mongo.BatchSize == 0 {
		c.Mongo.BatchSize = d.Mongo.BatchSize
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("PAGER_STORAGE_BACKEND"); val != "" {
		c.Backend = val
	}
	if val := os.Getenv("PAGER_REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("PAGER_REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}
	if val := os.Getenv("PAGER_MONGO_URI"); val != "" {
		c.Mongo.URI = val
	}
}

// ResolvePaths resolves relative paths using the given base directory.
// No paths to resolve in storage config.
func (c *Config) ResolvePaths(_ string) { _ = c }

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendRedis, BackendMongo:
	default:
		return fmt.Errorf("storage.backend: unsupported backend type %q", c.Backend)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("storage.timeout must be >= 0")
	}
	if c.Redis.MGetChunk < 0 || c.Redis.FetchConcurrency < 0 || c.Redis.ScanCount < 0 {
		return fmt.Errorf("storage.redis: scan_count, mget_chunk and fetch_concurrency must be >= 0")
	}
	return nil
}
