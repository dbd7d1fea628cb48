package cache

import "time"

// RedisOption configures RedisCache.
type RedisOption func(*RedisConfig)

// RedisConfig holds connection settings for the report cache.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	Prefix       string // namespaces every key, e.g. regimelab:report:SPY:...
	PingTimeout  time.Duration
}

func defaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		Prefix:       "regimelab",
		PingTimeout:  5 * time.Second,
	}
}

// WithRedisEndpoint sets the host:port address, password and database.
func WithRedisEndpoint(addr, password string, db int) RedisOption {
	return func(c *RedisConfig) {
		c.Addr = addr
		c.Password = password
		c.DB = db
	}
}

// WithRedisPool sizes the connection pool. The API and queue workers share it.
func WithRedisPool(size, minIdle int) RedisOption {
	return func(c *RedisConfig) {
		c.PoolSize = size
		c.MinIdleConns = minIdle
	}
}

// MemoryOption configures MemoryCache.
type MemoryOption func(*MemoryConfig)

// MemoryConfig bounds the in-process report cache used when Redis is off.
type MemoryConfig struct {
	MaxSize         int // entries; the least recently used is evicted
	CleanupInterval time.Duration
	DefaultTTL      time.Duration
}

func defaultMemoryConfig() *MemoryConfig {
	return &MemoryConfig{MaxSize: 256, CleanupInterval: 5 * time.Minute, DefaultTTL: 24 * time.Hour}
}

// WithMemoryMaxSize caps the number of cached reports.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemoryConfig) { c.MaxSize = size }
}

// WithMemoryDefaultTTL is applied when Set is called without an expiration.
func WithMemoryDefaultTTL(ttl time.Duration) MemoryOption {
	return func(c *MemoryConfig) { c.DefaultTTL = ttl }
}
