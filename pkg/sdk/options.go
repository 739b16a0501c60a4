package discovery

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

const (
	driverMemory = "memory"
	driverQdrant = "qdrant"
	driverRedis  = "redis"
)

type clientConfig struct {
	driver     string
	collection string

	qdrantHost   string
	qdrantPort   int
	qdrantAPIKey string
	qdrantTLS    bool
	qdrantVector string

	redisAddrs    []string
	redisPassword string
	dimensions    int

	records     []Record
	fixturePath string

	embedder Embedder

	groupBy      string
	groupSize    int
	noGrouping   bool
	locationKey  string
	defaultLimit int
	maxLimit     int

	idSampler  bool
	population uint64
	maxRounds  int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithQdrant serves the catalog from a Qdrant collection over gRPC.
func WithQdrant(host string, port int, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverQdrant
		c.qdrantHost = host
		c.qdrantPort = port
		c.qdrantAPIKey = apiKey
	})
}

// WithVectorName queries a named vector of the Qdrant collection.
func WithVectorName(name string) Option {
	return optionFunc(func(c *clientConfig) { c.qdrantVector = name })
}

// WithTLS enables TLS for the Qdrant connection.
func WithTLS() Option {
	return optionFunc(func(c *clientConfig) {
		c.qdrantTLS = true
	})
}

// WithRedis serves the catalog from a Redis 8+ search index.
// dimensions is the vector size the index is created with.
func WithRedis(addr, password string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverRedis
		c.redisAddrs = []string{addr}
		c.redisPassword = password
		c.dimensions = dimensions
	})
}

// WithRecords adds items to the catalog. With Redis they are upserted at startup;
// otherwise they form an in-memory catalog.
func WithRecords(records ...Record) Option {
	return optionFunc(func(c *clientConfig) {
		c.records = append(c.records, records...)
	})
}

// WithFixture loads items from a JSON Lines file of {"id", "vector", "payload"}.
func WithFixture(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.fixturePath = path
	})
}

// WithCollection names the collection. Default: "food".
func WithCollection(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.collection = name
	})
}

// WithEmbedder sets the text embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithGrouping returns at most size items per distinct value of the payload path by.
// Default: one item per "cafe.slug".
func WithGrouping(by string, size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.groupBy = by
		c.groupSize = size
		c.noGrouping = false
	})
}

// WithoutGrouping disables per-restaurant diversification.
func WithoutGrouping() Option {
	return optionFunc(func(c *clientConfig) {
		c.noGrouping = true
	})
}

// WithLocationKey sets the payload path holding item coordinates. Default: "cafe.location".
func WithLocationKey(key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.locationKey = key
	})
}

// WithLimits sets the default and maximum result count. Defaults: 12 and 100.
func WithLimits(defaultLimit, maxLimit int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultLimit = defaultLimit
		c.maxLimit = maxLimit
	})
}

// WithIDSampler draws random requests from integer ids in [0, population)
// instead of random vectors. For catalogs keyed by dense numeric ids.
func WithIDSampler(population uint64, maxRounds int) Option {
	return optionFunc(func(c *clientConfig) {
		c.idSampler = true
		c.population = population
		c.maxRounds = maxRounds
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
