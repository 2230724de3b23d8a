package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"user-manager/config"
	"user-manager/usermanager"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	appIDFlag  string
	tokenFlag  string
)

var rootCmd = &cobra.Command{
	Use:           "usermanager",
	Short:         "Manage platform users from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&appIDFlag, "app-id", "", "application id (overrides api.app_id)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "api token (overrides api.token)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if appIDFlag != "" {
		cfg.API.AppID = appIDFlag
	}
	if tokenFlag != "" {
		cfg.API.Token = tokenFlag
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if cfg.API.AppID == "" {
		return nil, errors.New("application id is required (--app-id or USERMANAGER_API_APP_ID)")
	}
	return cfg, nil
}

// withClient monta o cliente, inicializa a aplicação e roda fn.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *usermanager.Client) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := usermanager.New(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c.InitApplication(ctx, cfg.API.AppID, cfg.API.Token)
	return fn(ctx, c)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
