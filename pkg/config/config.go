package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
		Digest struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"regimelab.logs"`
			FlushInterval  time.Duration `yaml:"flush_interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"digest"`
	} `yaml:"log"`
	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
		RateLimit       float64       `yaml:"rate_limit" default:"5" validate:"gte=0"` // requests/s per client, 0 disables
		RateBurst       int           `yaml:"rate_burst" default:"10" validate:"gte=1"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Source struct {
		Type   string `yaml:"type" default:"alpaca" validate:"oneof=alpaca csv clickhouse"`
		CSVDir string `yaml:"csv_dir" default:"data"`
	} `yaml:"source"`
	Sink struct {
		Types  []string `yaml:"types" default:"[\"csv\"]" validate:"dive,oneof=csv clickhouse postgres"`
		CSVDir string   `yaml:"csv_dir" default:"out"`
	} `yaml:"sink"`
	Alpaca struct {
		APIKey    string        `yaml:"api_key"`
		APISecret string        `yaml:"api_secret"`
		BaseURL   string        `yaml:"base_url"`
		Feed      string        `yaml:"feed" default:"iex"`
		RateLimit float64       `yaml:"rate_limit" default:"3" validate:"gt=0"`
		Burst     int           `yaml:"burst" default:"1" validate:"gte=1"`
		Timeout   time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"alpaca"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"regimelab"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		PriceTable       string        `yaml:"price_table" default:"daily_bars"`
		BatchSize        int           `yaml:"batch_size" default:"1000" validate:"gte=1"`
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN          string        `yaml:"dsn"`
		MaxOpenConns int           `yaml:"max_open_conns" default:"5"`
		Timeout      time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"postgres"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		Topic        string   `yaml:"topic" default:"regimelab.alerts"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled        bool          `yaml:"enabled"`
		Addr           string        `yaml:"addr" default:"localhost:6379"`
		Password       string        `yaml:"password"`
		DB             int           `yaml:"db"`
		PoolSize       int           `yaml:"pool_size" default:"10" validate:"gte=1"`
		MinIdleConns   int           `yaml:"min_idle_conns" default:"2" validate:"gte=0"`
		TTL            time.Duration `yaml:"ttl" default:"1h"`
		MemoryFallback bool          `yaml:"memory_fallback" default:"true"` // in-process report cache when redis is disabled
		MemoryMaxSize  int           `yaml:"memory_max_size" default:"256"`
	} `yaml:"redis"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
		RetryLimit int           `yaml:"retry_limit" default:"2" validate:"gte=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
		Prefix     string        `yaml:"prefix" default:"regimelab:queue"`
	} `yaml:"queue"`
	Classifier struct {
		Enabled          bool          `yaml:"enabled"`
		URL              string        `yaml:"url" default:"http://localhost:8000"`
		Timeout          time.Duration `yaml:"timeout" default:"30s"`
		FailureThreshold uint32        `yaml:"failure_threshold" default:"3"`
		OpenTimeout      time.Duration `yaml:"open_timeout" default:"60s"`
	} `yaml:"classifier"`
	Analysis Analysis `yaml:"analysis"`
}

// Analysis holds every tunable of the pipeline.
type Analysis struct {
	Symbol   string `yaml:"symbol" default:"SPY" validate:"required"`
	Years    int    `yaml:"years" default:"5" validate:"gte=1"`
	Features struct {
		Window          int `yaml:"window" default:"20"`
		MinObservations int `yaml:"min_observations" default:"10" validate:"gte=4"`
	} `yaml:"features"`
	Weights struct {
		Return   float64 `yaml:"return" default:"0.2337" validate:"gte=0"`
		Skewness float64 `yaml:"skewness" default:"0.2126" validate:"gte=0"`
		Kurtosis float64 `yaml:"kurtosis" default:"0.2122" validate:"gte=0"`
		Range    float64 `yaml:"range" default:"0.2542" validate:"gte=0"`
	} `yaml:"weights"`
	Regime struct {
		ShortWindow int `yaml:"short_window" default:"20" validate:"gte=1"`
		LongWindow  int `yaml:"long_window" default:"50"`
	} `yaml:"regime"`
	Fatigue struct {
		Scale            float64 `yaml:"scale" default:"0.5" validate:"gt=0"`
		HighQuantile     float64 `yaml:"high_quantile" default:"0.75" validate:"gt=0,lt=1"`
		VeryHighQuantile float64 `yaml:"very_high_quantile" default:"0.90" validate:"gt=0,lt=1"`
	} `yaml:"fatigue"`
	Causal struct {
		Enabled         bool `yaml:"enabled" default:"true"`
		ReferenceWindow int  `yaml:"reference_window" default:"252"`
		MinReference    int  `yaml:"min_reference" default:"30" validate:"gte=2"`
	} `yaml:"causal"`
	History struct {
		LookbackDays    int `yaml:"lookback_days" default:"30" validate:"gte=1"`
		LongRegimeDays  int `yaml:"long_regime_days" default:"100" validate:"gte=0"`
		TopN            int `yaml:"top_n" default:"15" validate:"gte=0"`
		ForwardSteps    int `yaml:"forward_steps" default:"30" validate:"gte=1"`
		ChangeLookahead int `yaml:"change_lookahead" default:"60" validate:"gte=1"`
	} `yaml:"history"`
	Evaluation struct {
		Horizon      int    `yaml:"horizon" default:"5" validate:"gte=1"`
		ChangeSource string `yaml:"change_source" default:"segmenter" validate:"oneof=segmenter classifier"`
		Rule         string `yaml:"rule" default:"band" validate:"oneof=band threshold"`
		Band         struct {
			SkewMin float64 `yaml:"skew_min" default:"-2.0"`
			SkewMax float64 `yaml:"skew_max" default:"-0.4"`
			KurtMin float64 `yaml:"kurt_min" default:"1.5"`
			KurtMax float64 `yaml:"kurt_max" default:"7.0"`
			Trend   string  `yaml:"trend" default:"up" validate:"oneof=up down"`
			MinAge  int     `yaml:"min_age" default:"10"`
		} `yaml:"band"`
		Threshold struct {
			MinScore float64 `yaml:"min_score" default:"90"`
			MinAge   int     `yaml:"min_age" default:"10"`
		} `yaml:"threshold"`
		CorrelationSince string  `yaml:"correlation_since" default:"2024-01-01"`
		Alpha            float64 `yaml:"alpha" default:"0.05" validate:"gt=0,lt=1"`
		ProfileWindow    int     `yaml:"profile_window" default:"5" validate:"gte=1"`
	} `yaml:"evaluation"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decode(b)
}

func decode(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML (defaults only when path is empty),
// applies environment overrides and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		c.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		c.Alpaca.APISecret = v
	}
	if v := os.Getenv("SYMBOL"); v != "" {
		c.Analysis.Symbol = strings.ToUpper(v)
	}
	if v := os.Getenv("SOURCE"); v != "" {
		c.Source.Type = v
	}
	if v := os.Getenv("SINK"); v != "" {
		c.Sink.Types = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks tags first, then the rules that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	a := &c.Analysis
	if a.Features.Window < a.Features.MinObservations+1 {
		return fmt.Errorf("analysis.features.window (%d) must be >= min_observations+1 (%d)",
			a.Features.Window, a.Features.MinObservations+1)
	}
	if a.Regime.ShortWindow >= a.Regime.LongWindow {
		return fmt.Errorf("analysis.regime.short_window (%d) must be < long_window (%d)",
			a.Regime.ShortWindow, a.Regime.LongWindow)
	}
	if a.Fatigue.HighQuantile >= a.Fatigue.VeryHighQuantile {
		return fmt.Errorf("analysis.fatigue.high_quantile must be < very_high_quantile")
	}
	if a.Weights.Return+a.Weights.Skewness+a.Weights.Kurtosis+a.Weights.Range <= 0 {
		return fmt.Errorf("analysis.weights must not all be zero")
	}
	if a.Causal.ReferenceWindow < a.Causal.MinReference {
		return fmt.Errorf("analysis.causal.reference_window must be >= min_reference")
	}
	if _, err := time.Parse("2006-01-02", a.Evaluation.CorrelationSince); err != nil {
		return fmt.Errorf("analysis.evaluation.correlation_since: %w", err)
	}

	if c.Source.Type == "alpaca" && (c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "") {
		return fmt.Errorf("alpaca.api_key and alpaca.api_secret are required for source.type=alpaca")
	}
	for _, s := range c.Sink.Types {
		if s == "postgres" && c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for the postgres sink")
		}
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue.enabled requires redis.enabled")
	}
	if c.Analysis.Evaluation.ChangeSource == "classifier" && !c.Classifier.Enabled {
		return fmt.Errorf("evaluation.change_source=classifier needs classifier.enabled")
	}
	return nil
}

// CorrelationSince returns the parsed start of the correlation sub-period.
func (a *Analysis) CorrelationSince() time.Time {
	t, _ := time.Parse("2006-01-02", a.Evaluation.CorrelationSince)
	return t
}
