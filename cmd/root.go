// Package cmd wires the greenlit CLI: shared flags, configuration loading,
// and one subcommand per research capability plus the workflow runner.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tiangong-ai/greenlit/internal/config"
	"github.com/tiangong-ai/greenlit/internal/log"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config

	flagDryRun   bool
	flagNoCache  bool
	flagJSON     bool
	flagDebug    bool
	flagCacheDir string
	flagSources  []string
)

var rootCmd = &cobra.Command{
	Use:   "greenlit",
	Short: "Automated sustainability research from registered data sources",
	Long: `greenlit orchestrates research on sustainability topics across a
catalogue of data sources: SDG taxonomy mapping, code and literature search,
grid carbon intensity, chart rendering, and LLM synthesis. Single calls run
as subcommands; multi-stage profiles run through "greenlit workflow run".`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .greenlit/config.yaml, then ~/.config/greenlit/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false,
		"plan calls without contacting any data source")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false,
		"bypass the response cache for this invocation")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false,
		"machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false,
		"write a debug log under the cache directory")
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "",
		"override the cache directory")
	rootCmd.PersistentFlags().StringSliceVar(&flagSources, "source", nil,
		"restrict calls to these source ids (repeatable)")

	_ = viper.BindPFlag("cache_dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
}

func initConfig() {
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .greenlit/config.yaml (current directory)
		// 2. ~/.config/greenlit/config.yaml (user config)
		if _, err := os.Stat(filepath.Join(".greenlit", "config.yaml")); err == nil {
			viper.SetConfigFile(filepath.Join(".greenlit", "config.yaml"))
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "greenlit"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := filepath.Join(".greenlit", "config.yaml")
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, continue with defaults.
		}
	}

	_ = viper.Unmarshal(&cfg)

	if flagCacheDir != "" {
		cfg.CacheDir = flagCacheDir
	}
	if flagNoCache {
		cfg.Cache.Disabled = true
	}

	if flagDebug || os.Getenv("GREENLIT_DEBUG") != "" {
		logPath := filepath.Join(cfg.CacheDir, "greenlit.log")
		_ = os.MkdirAll(cfg.CacheDir, 0750)
		if _, err := log.Init(logPath); err != nil {
			fmt.Fprintf(os.Stderr, "debug log unavailable: %v\n", err)
		}
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
