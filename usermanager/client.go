// Package usermanager monta o gerenciador de usuários a partir da configuração.
//
// Visão geral (camadas):
//
//   - domain: tipos, erros e contratos (sem net/http)
//   - application: casos de uso (Manager) e Future
//   - infra: fila, scheduler, gate, cache, transporte HTTP, app store, estatísticas
//   - usermanager (este pacote): wiring a partir de config.Config
package usermanager

import (
	"context"
	"net/http"
	"time"

	"user-manager/config"
	"user-manager/usermanager/application"
	"user-manager/usermanager/domain"
	"user-manager/usermanager/infra"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Client é o Manager já ligado à infraestrutura escolhida na configuração.
type Client struct {
	*application.Manager

	Stats     domain.StatsStore
	appStore  domain.AppStore
	responses *infra.ResponseCache
	closers  []func() error
}

type options struct {
	log        logrus.FieldLogger
	httpClient *http.Client
	transport  domain.Transport
	appStore   domain.AppStore
	stats      domain.StatsStore
}

type Option func(*options)

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTransport substitui o transporte HTTP inteiro.
func WithTransport(t domain.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithAppStore ignora store.driver.
func WithAppStore(s domain.AppStore) Option {
	return func(o *options) { o.appStore = s }
}

// WithStats ignora a seção stats.
func WithStats(s domain.StatsStore) Option {
	return func(o *options) { o.stats = s }
}

func New(cfg *config.Config, opts ...Option) (*Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		log, err := config.NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		o.log = log
	}

	c := &Client{}

	var rdb *redis.Client
	redisClient := func() (*redis.Client, error) {
		if rdb != nil {
			return rdb, nil
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, errors.Wrapf(err, "redis ping %s", cfg.Store.Redis.Addr)
		}
		c.closers = append(c.closers, rdb.Close)
		return rdb, nil
	}

	appStore := o.appStore
	if appStore == nil {
		var err error
		appStore, err = newAppStore(cfg.Store, redisClient)
		if err != nil {
			_ = c.closeAll()
			return nil, err
		}
	}
	c.appStore = appStore

	stats := o.stats
	if stats == nil && cfg.Stats.Enabled {
		if cfg.Stats.Redis {
			r, err := redisClient()
			if err != nil {
				_ = c.Close()
				return nil, err
			}
			stats = infra.NewRedisStatsStore(r,
				infra.WithStatsPrefix(cfg.Stats.Prefix),
				infra.WithStatsTTL(cfg.Stats.TTL),
				infra.WithStatsBucket(cfg.Stats.Bucket),
				infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
			)
		} else {
			stats = infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.Stats.TrackKeys))
		}
	}
	c.Stats = stats

	var responses *infra.ResponseCache
	transport := o.transport
	if transport == nil {
		topts := []infra.HTTPTransportOption{infra.WithTransportLogger(o.log)}
		if cfg.Cache.Responses > 0 {
			rc, err := infra.NewResponseCache(cfg.Cache.Responses)
			if err != nil {
				_ = c.Close()
				return nil, err
			}
			responses = rc
			topts = append(topts, infra.WithResponseCache(rc))
		}
		httpClient := o.httpClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: cfg.API.Timeout}
		}
		topts = append(topts, infra.WithHTTPClient(httpClient))
		transport = infra.NewHTTPTransport(topts...)
	}

	mcfg := application.Config{
		Transport:  transport,
		Gate:       infra.NewGate(cfg.Limits.RequestInterval),
		Scheduler:  infra.NewScheduler(cfg.Limits.MaxPendingTasks, cfg.Limits.TaskInterval, infra.WithSchedulerLogger(o.log)),
		Users:      infra.NewUserCache(cfg.Cache.CostLimit, infra.WithUserCacheLogger(o.log)),
		AppStore:   appStore,
		Stats:      stats,
		Log:        o.log,
		Routes:     application.Routes{BaseURL: cfg.API.BaseURL},
		MaxBatch:   cfg.Limits.MaxBatch,
		QueryLimit: cfg.Limits.QueryLimit,
	}
	if responses != nil {
		mcfg.Responses = responses
		c.responses = responses
	}
	c.Manager = application.New(mcfg)
	return c, nil
}

func newAppStore(c config.StoreConfig, redisClient func() (*redis.Client, error)) (domain.AppStore, error) {
	switch c.Driver {
	case "memory":
		return infra.NewMemoryAppStore(), nil
	case "file":
		return infra.NewFileAppStore(c.Path)
	case "leveldb":
		return infra.OpenLevelDBAppStore(c.Path)
	case "redis":
		rdb, err := redisClient()
		if err != nil {
			return nil, err
		}
		return infra.NewRedisAppStore(rdb, infra.WithAppStorePrefix(c.Redis.Prefix)), nil
	default:
		return nil, errors.Errorf("unknown store driver %q", c.Driver)
	}
}

// Close descarta criações pendentes e libera app store e conexões.
func (c *Client) Close() error {
	if c.Manager != nil {
		c.Manager.Close()
	}
	return c.closeAll()
}

func (c *Client) closeAll() error {
	var first error
	if c.appStore != nil {
		if err := c.appStore.Close(); err != nil {
			first = err
		}
		c.appStore = nil
	}
	for _, fn := range c.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}
