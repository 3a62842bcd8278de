// Package cmd implements the gov-indexer command-line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/config"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/logger"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "gov-indexer",
		Short: "Crawl, index and search government data sources",
		Long: `gov-indexer crawls government websites, harvests open data catalogues and
serves a ranked fuzzy search over the collected datasets, APIs, pages and sections.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	_ = godotenv.Load()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yml or ./config/config.yml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(httpdCmd())
	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(versionCmd())
}

// initConfig reads the config file and environment into viper and decodes it.
func initConfig() (*config.Config, error) {
	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.SetDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	if debug {
		v.Set("logger.level", "debug")
		v.Set("logger.development", true)
		v.Set("logger.format", "console")
	}
	return config.Load(v)
}

// bindEnv maps the conventional variable names onto config keys.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"server.port":        {"PORT", "GOV_INDEXER_PORT"},
		"logger.level":       {"LOG_LEVEL"},
		"logger.format":      {"LOG_FORMAT"},
		"catalog.path":       {"CATALOG_PATH"},
		"refresh.schedule":   {"REFRESH_SCHEDULE"},
		"crawler.user_agent": {"CRAWLER_USER_AGENT"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// setup loads configuration and builds the logger for a command.
func setup() (*config.Config, logger.Logger, error) {
	cfg, err := initConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}
