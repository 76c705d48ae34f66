package cli

import (
	"fmt"
	"os"

	"github.com/ahsanj/local-log-analyzer/internal/config"
	"github.com/ahsanj/local-log-analyzer/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	outputFmt string
	logLevel  string

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "loglens",
	Short: "Analyze log files locally",
	Long: `loglens runs the log analyzer against files on disk. It detects the
format, parses entries, mines error patterns, flags anomalies and prints
a summary without needing the server or a database.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./config.yaml if present)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "application log level")
}

func initConfig() {
	cfg, err := config.Load(cfgFile)
	cobra.CheckErr(err)
	appConfig = cfg

	logger.Initialize(logger.Options{Level: logLevel, Format: "text"})
	logger.GetLogger().SetOutput(os.Stderr)
}
