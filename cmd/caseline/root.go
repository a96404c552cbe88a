package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"caseline/internal/config"
	"caseline/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	dbPath     string
}

// cfg is resolved once before any subcommand runs.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "caseline",
	Short: "Evidence-based KYC screening for client onboarding",
	Long: "Caseline screens onboarding clients through a resumable pipeline:\n" +
		"intake scoring, capability fan-out, evidence synthesis, and a human\nreview gate with a durable decision log.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error
		cfg, err = resolveConfig()
		if err != nil {
			return err
		}
		logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
		return nil
	},
}

// resolveConfig loads the config file if present and applies flag overrides.
func resolveConfig() (config.Config, error) {
	path := rootFlags.configPath
	explicit := path != ""
	if !explicit {
		path = config.DefaultPath
	}

	c := config.Default()
	if _, err := os.Stat(path); err == nil {
		c, err = config.LoadFromPath(path)
		if err != nil {
			return config.Config{}, err
		}
	} else if explicit {
		return config.Config{}, fmt.Errorf("config file %s: %w", path, err)
	}

	if rootFlags.dbPath != "" {
		c.DBPath = rootFlags.dbPath
	}
	return c, nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Path to config file (default "+config.DefaultPath+" if present)")
	pf.StringVar(&rootFlags.dbPath, "db", "", "Path to SQLite case database (overrides config)")

	rootCmd.AddCommand(screenCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
