package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bossnet/party-signup/internal/config"
	"github.com/bossnet/party-signup/internal/logger"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
	appLog  *slog.Logger
)

// flagKeys maps command-line flags to config keys. A flag only overrides
// the key when the running command defines it.
var flagKeys = map[string]string{
	"port":    "port",
	"api-url": "api_url",
	"token":   "admin_auth_token",
}

var rootCmd = &cobra.Command{
	Use:               "party-signup",
	Short:             "Registration API for the private party",
	Long:              `party-signup serves the registration API, manages its schema and talks to a running server from the command line.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (yaml, json or toml); environment variables take precedence")
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	v := config.New()
	if err := config.ReadFile(v, cfgFile); err != nil {
		return err
	}
	if err := bindFlags(cmd, v); err != nil {
		return err
	}

	var err error
	cfg, err = config.Load(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	appLog = logger.New(os.Stderr, level, cfg.LogFormat)
	slog.SetDefault(appLog)
	return nil
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	return nil
}
