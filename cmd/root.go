package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aure/fpdash/internal/config"
	"github.com/aure/fpdash/internal/logging"
)

var cfgFile string
var apiURL string
var logLevel string

var rootCmd = &cobra.Command{
	Use:   "fpdash",
	Short: "Fingerprint dashboard",
	Long:  `fpdash shows recent fingerprints and their submission counts from a fingerprint API.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fpdash.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "fingerprint API base URL (overrides api.base_url)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".fpdash")
	}

	godotenv.Load()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	if apiURL != "" {
		viper.Set("api.base_url", apiURL)
	}
	if logLevel != "" {
		viper.Set("log.level", logLevel)
	}
}

// loadConfig resolves the configuration and a logger for the named component.
// Logs go to stderr so command output on stdout stays clean.
func loadConfig(component string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat, component)
	if err != nil {
		return nil, nil, fmt.Errorf("configuring logging: %w", err)
	}
	return cfg, logger, nil
}
