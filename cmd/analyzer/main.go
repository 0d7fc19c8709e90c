// Command analyzer scores people in surveillance video for danger, writes an
// annotated copy and a SQLite run database, and serves uploads over HTTP.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/securityvision/analyzer/internal/config"
	"github.com/securityvision/analyzer/internal/monitoring"
)

// app carries the state shared by every subcommand.
type app struct {
	configFile string
	logLevel   string
	logFormat  string

	cfg   *config.AnalysisConfig
	flush func()
}

func newRootCmd() *cobra.Command {
	a := &app{flush: func() {}}

	rootCmd := &cobra.Command{
		Use:           "analyzer",
		Short:         "Danger analysis of people in surveillance video",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(c *cobra.Command, args []string) {
			a.flush()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Path to a JSON analysis config")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log_level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Override log_format (json, console)")

	rootCmd.AddCommand(
		newAnalyzeCmd(a),
		newServeCmd(a),
		newReportCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// init loads the configuration and installs the zap logger.
func (a *app) init() error {
	cfg := config.DefaultAnalysisConfig()
	if a.configFile != "" {
		loaded, err := config.LoadAnalysisConfig(a.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if a.logLevel != "" {
		cfg.LogLevel = &a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = &a.logFormat
	}
	a.cfg = cfg

	logger, err := monitoring.NewLogger(cfg.GetLogLevel(), cfg.GetLogFormat(), "analyzer")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.flush = monitoring.UseZap(logger)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("analyzer: %v", err)
		os.Exit(1)
	}
}
