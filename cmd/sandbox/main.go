package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"user-manager/config"
	"user-manager/sandbox"
	"user-manager/usermanager/domain"
	"user-manager/usermanager/infra"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "sandbox",
	Short:        "Run an in-memory emulation of the platform user API",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return run(cfg)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}

	opts := sandbox.OptionsFromConfig(cfg.Sandbox)
	opts.Log = log

	if cfg.Stats.Enabled {
		var stats domain.StatsStore = infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.Stats.TrackKeys))
		if cfg.Stats.Redis {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Store.Redis.Addr,
				Password: cfg.Store.Redis.Password,
				DB:       cfg.Store.Redis.DB,
			})
			defer func() { _ = rdb.Close() }()

			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_, err := rdb.Ping(pingCtx).Result()
			cancel()
			if err != nil {
				return fmt.Errorf("redis stats ping error: %w", err)
			}

			stats = infra.NewRedisStatsStore(
				rdb,
				infra.WithStatsPrefix(cfg.Stats.Prefix+":sandbox"),
				infra.WithStatsTTL(cfg.Stats.TTL),
				infra.WithStatsBucket(cfg.Stats.Bucket),
				infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
			)
		}
		opts.Stats = stats
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              cfg.Sandbox.ListenAddr,
		Handler:           sandbox.NewServer(ctx, opts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", cfg.Sandbox.ListenAddr).Info("sandbox listening")
	log.WithField("rps", cfg.Sandbox.RPS).WithField("burst", cfg.Sandbox.Burst).Info("throttle")
	log.WithField("max", cfg.Sandbox.ConcurrencyMax).WithField("acquire_timeout", cfg.Sandbox.ConcurrencyTimeout).Info("concurrency")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
