// Package config carrega a configuração do cliente e do sandbox.
//
// Ordem de precedência: variáveis de ambiente (USERMANAGER_*, com "." virando "_"),
// arquivo YAML opcional e, por fim, os defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "USERMANAGER"

type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Store   StoreConfig   `mapstructure:"store"`
	Stats   StatsConfig   `mapstructure:"stats"`
	Log     LogConfig     `mapstructure:"log"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	AppID   string        `mapstructure:"app_id"`
	Token   string        `mapstructure:"token"`
}

type LimitsConfig struct {
	RequestInterval time.Duration `mapstructure:"request_interval"`
	TaskInterval    time.Duration `mapstructure:"task_interval"`
	MaxPendingTasks int           `mapstructure:"max_pending_tasks"`
	MaxBatch        int           `mapstructure:"max_batch"`
	QueryLimit      int           `mapstructure:"query_limit"`
}

type CacheConfig struct {
	CostLimit int64 `mapstructure:"cost_limit"`
	// Responses é o tamanho do LRU de respostas GET. 0 desliga.
	Responses int `mapstructure:"responses"`
}

type StoreConfig struct {
	Driver string      `mapstructure:"driver"` // memory | file | redis | leveldb
	Path   string      `mapstructure:"path"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type StatsConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Redis     bool          `mapstructure:"redis"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
	Bucket    string        `mapstructure:"bucket"`
	TrackKeys bool          `mapstructure:"track_keys"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
}

type SandboxConfig struct {
	ListenAddr         string        `mapstructure:"listen_addr"`
	Token              string        `mapstructure:"token"`
	RPS                float64       `mapstructure:"rps"`
	Burst              int           `mapstructure:"burst"`
	RetryAfter         time.Duration `mapstructure:"retry_after"`
	ConcurrencyMax     int           `mapstructure:"concurrency_max"`
	ConcurrencyTimeout time.Duration `mapstructure:"concurrency_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://api-{app_id}.sendbird.com/v3")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.app_id", "")
	v.SetDefault("api.token", "")

	v.SetDefault("limits.request_interval", time.Second)
	v.SetDefault("limits.task_interval", time.Second)
	v.SetDefault("limits.max_pending_tasks", 10)
	v.SetDefault("limits.max_batch", 10)
	v.SetDefault("limits.query_limit", 100)

	v.SetDefault("cache.cost_limit", 5*1024*1024)
	v.SetDefault("cache.responses", 256)

	v.SetDefault("store.driver", "file")
	v.SetDefault("store.path", defaultStorePath())
	v.SetDefault("store.redis.addr", "")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "usermanager")

	v.SetDefault("stats.enabled", false)
	v.SetDefault("stats.redis", false)
	v.SetDefault("stats.prefix", "usermanager:stats")
	v.SetDefault("stats.ttl", 24*time.Hour)
	v.SetDefault("stats.bucket", "minute")
	v.SetDefault("stats.track_keys", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("sandbox.listen_addr", ":8080")
	v.SetDefault("sandbox.token", "sandbox-token")
	v.SetDefault("sandbox.rps", 5.0)
	v.SetDefault("sandbox.burst", 10)
	v.SetDefault("sandbox.retry_after", time.Second)
	v.SetDefault("sandbox.concurrency_max", 64)
	v.SetDefault("sandbox.concurrency_timeout", 200*time.Millisecond)
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "usermanager", "app.yaml")
}

// Load lê a configuração. path vazio usa só defaults e ambiente.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default devolve a configuração padrão (ignora o ambiente).
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(errors.Wrap(err, "config: invalid defaults"))
	}
	return &cfg
}

func (c *Config) Validate() error {
	if c.Limits.RequestInterval < 0 || c.Limits.TaskInterval < 0 {
		return errors.New("limits: intervals must not be negative")
	}
	if c.Limits.MaxPendingTasks <= 0 {
		return errors.New("limits.max_pending_tasks must be > 0")
	}
	if c.Limits.MaxBatch <= 0 {
		return errors.New("limits.max_batch must be > 0")
	}
	if c.Limits.QueryLimit <= 0 {
		return errors.New("limits.query_limit must be > 0")
	}

	switch c.Store.Driver {
	case "memory":
	case "file", "leveldb":
		if c.Store.Path == "" {
			return errors.Errorf("store.path is required for driver %q", c.Store.Driver)
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required for driver \"redis\"")
		}
	default:
		return errors.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	if c.Stats.Enabled && c.Stats.Redis && c.Store.Redis.Addr == "" {
		return errors.New("store.redis.addr is required when stats.redis is enabled")
	}
	return nil
}
