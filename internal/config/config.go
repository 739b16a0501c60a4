package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/discovery/internal/domain/search/result"
)

// Index drivers.
const (
	DriverQdrant = "qdrant"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Random sampler variants.
const (
	RandomVector = "vector"
	RandomIDs    = "ids"
)

// Config holds the discovery API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Index     IndexConfig     `yaml:"index"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// IndexConfig selects and configures the similarity index backend.
type IndexConfig struct {
	Driver           string       `yaml:"driver"` // qdrant, redis, memory (default: qdrant)
	Collection       string       `yaml:"collection"`
	ReadinessTimeout int          `yaml:"readiness_timeout_sec"`
	Qdrant           QdrantConfig `yaml:"qdrant"`
	Redis            RedisConfig  `yaml:"redis"`
	Memory           MemoryConfig `yaml:"memory"`
}

// QdrantConfig holds Qdrant gRPC connection settings.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
	Vector string `yaml:"vector"` // named vector; empty for the unnamed one
}

// RedisConfig holds settings of the Redis-backed catalog index.
type RedisConfig struct {
	Addrs           []string `yaml:"addrs"`
	Password        string   `yaml:"password"`
	KeyPrefix       string   `yaml:"key_prefix"`
	Dimensions      int      `yaml:"dimensions"`
	HNSWM           int      `yaml:"hnsw_m"`
	HNSWEFConstruct int      `yaml:"hnsw_ef_construction"`
	RecreateIndex   bool     `yaml:"recreate_index"`
	FixturePath     string   `yaml:"fixture_path"` // optional seed data, loaded at startup
}

// MemoryConfig holds settings of the in-process index.
type MemoryConfig struct {
	FixturePath string `yaml:"fixture_path"`
	Dimensions  int    `yaml:"dimensions"`
}

// CacheConfig enables the Redis embedding cache when addrs are set.
type CacheConfig struct {
	Addrs     []string `yaml:"addrs"`
	Password  string   `yaml:"password"`
	KeyPrefix string   `yaml:"key_prefix"`
}

// Enabled reports whether an embedding cache is configured.
func (c CacheConfig) Enabled() bool { return len(c.Addrs) > 0 }

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"`
	BaseURL          string `yaml:"base_url"`
	APIKey           string `yaml:"api_key"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	TimeoutSec       int    `yaml:"timeout_sec"`
}

// DiscoveryConfig holds engine settings.
type DiscoveryConfig struct {
	DefaultLimit    int            `yaml:"default_limit"`
	MaxLimit        int            `yaml:"max_limit"`
	GroupBy         string         `yaml:"group_by"`
	GroupSize       int            `yaml:"group_size"`
	DisableGrouping bool           `yaml:"disable_grouping"`
	LocationKey     string         `yaml:"location_key"`
	Random          RandomConfig   `yaml:"random"`
	Mapping         result.Mapping `yaml:"mapping"`
}

// RandomConfig selects the random discovery sampler.
type RandomConfig struct {
	Variant    string `yaml:"variant"` // vector, ids (default: vector)
	Population uint64 `yaml:"population"`
	MaxRounds  int    `yaml:"max_rounds"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in data, decodes it and applies defaults and validation.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Index.Driver == "" {
		c.Index.Driver = DriverQdrant
	}
	if c.Index.Collection == "" {
		c.Index.Collection = "food"
	}
	if c.Index.ReadinessTimeout <= 0 {
		c.Index.ReadinessTimeout = 10
	}
	if c.Index.Qdrant.Port <= 0 {
		c.Index.Qdrant.Port = 6334
	}
	if c.Index.Redis.KeyPrefix == "" {
		c.Index.Redis.KeyPrefix = "discovery:"
	}
	if c.Index.Redis.Dimensions <= 0 {
		c.Index.Redis.Dimensions = c.Embedding.Dimensions
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 15
	}

	if c.Discovery.DefaultLimit <= 0 {
		c.Discovery.DefaultLimit = 12
	}
	if c.Discovery.MaxLimit <= 0 {
		c.Discovery.MaxLimit = 100
	}
	if c.Discovery.GroupBy == "" {
		c.Discovery.GroupBy = "cafe.slug"
	}
	if c.Discovery.GroupSize <= 0 {
		c.Discovery.GroupSize = 1
	}
	if c.Discovery.LocationKey == "" {
		c.Discovery.LocationKey = "cafe.location"
	}
	if c.Discovery.Random.Variant == "" {
		c.Discovery.Random.Variant = RandomVector
	}
	if c.Discovery.Random.Population == 0 {
		c.Discovery.Random.Population = 100_000
	}
	if c.Discovery.Random.MaxRounds <= 0 {
		c.Discovery.Random.MaxRounds = 10
	}
	c.Discovery.Mapping = c.Discovery.Mapping.WithDefaults()
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Index.Driver {
	case DriverQdrant:
		if c.Index.Qdrant.Host == "" {
			return fmt.Errorf("index.qdrant.host is required")
		}
	case DriverRedis:
		if len(c.Index.Redis.Addrs) == 0 {
			return fmt.Errorf("index.redis.addrs is required")
		}
		if c.Index.Redis.Dimensions <= 0 {
			return fmt.Errorf("index.redis.dimensions (or embedding.dimensions) must be positive")
		}
	case DriverMemory:
		if c.Index.Memory.FixturePath == "" {
			return fmt.Errorf("index.memory.fixture_path is required")
		}
	default:
		return fmt.Errorf("index.driver must be %q, %q or %q, got %q",
			DriverQdrant, DriverRedis, DriverMemory, c.Index.Driver)
	}

	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}

	d := c.Discovery
	if d.DefaultLimit > d.MaxLimit {
		return fmt.Errorf("discovery.default_limit (%d) exceeds discovery.max_limit (%d)", d.DefaultLimit, d.MaxLimit)
	}
	switch d.Random.Variant {
	case RandomVector, RandomIDs:
	default:
		return fmt.Errorf("discovery.random.variant must be %q or %q, got %q",
			RandomVector, RandomIDs, d.Random.Variant)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
