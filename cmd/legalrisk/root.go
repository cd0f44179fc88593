// legalrisk analyzes legal documents against an index of statutes.
//
// Usage:
//
//	legalrisk ingest acts/*.pdf [--watch acts/]
//	legalrisk analyze lease.docx [--json] [--xlsx report.xlsx]
//	legalrisk sources [--delete <id>] [--refresh] [--history 10]
//	legalrisk serve [--addr :8080]
//	legalrisk eval testdata/leases.yaml
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/legalrisk"
	"github.com/brunobiangulo/legalrisk/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	dbPath     string
}

// cfg is resolved once in PersistentPreRunE and read by every subcommand.
var cfg legalrisk.Config

var rootCmd = &cobra.Command{
	Use:   "legalrisk",
	Short: "Risk analysis of legal documents against a statute index",
	Long: `legalrisk extracts the key facts of a contract or agreement, retrieves
the statute clauses most related to it from a local vector index and asks
an LLM for omissions, corrections, compliance issues and risks.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&rootFlags.configPath, "config", "c", "", "Config file (YAML or JSON)")
	f.StringVar(&rootFlags.envFile, "env-file", ".env", "Environment file loaded before the config")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	f.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json (overrides config)")
	f.StringVar(&rootFlags.dbPath, "db", "", "Database path (overrides config)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	// A missing .env is normal; a malformed one is not.
	if err := godotenv.Load(rootFlags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", rootFlags.envFile, err)
	}

	c := legalrisk.DefaultConfig()
	if rootFlags.configPath != "" {
		loaded, err := legalrisk.LoadConfig(rootFlags.configPath)
		if err != nil {
			return err
		}
		c = loaded
	}
	c.ApplyEnv()

	if rootFlags.dbPath != "" {
		c.DBPath = rootFlags.dbPath
	}
	if rootFlags.logLevel != "" {
		c.Log.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		c.Log.Format = rootFlags.logFormat
	}

	logging.Init(logging.ParseLevel(c.Log.Level), c.Log.Format)
	cfg = c
	return nil
}

func openEngine() (*legalrisk.Engine, error) {
	engine, err := legalrisk.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return engine, nil
}
