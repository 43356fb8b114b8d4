package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/balajialg/Datahub-Usage-Analysis/internal/extract"
	"github.com/balajialg/Datahub-Usage-Analysis/internal/output"
	"github.com/balajialg/Datahub-Usage-Analysis/internal/suppress"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hubtrace",
	Short: "Anonymize and aggregate JupyterHub usage logs",
	Long: `Hubtrace extracts user server start/stop events from JupyterHub
operational logs and produces a privacy-reduced dataset safe for
external publication.

Usernames are replaced with per-run keyed pseudonyms, timestamps are
bucketed by hour, and any hour with fewer events than a configurable
threshold is dropped entirely (k-anonymity suppression).

Examples:
  hubtrace anonymize -o events.jsonl hub-2018-01-21.log
  hubtrace anonymize --min-entries-per-hour 10 -o out.jsonl.gz logs/*.log.gz
  hubtrace stats --format table logs/*.log`,
}

// Execute is called by main.main(). It runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initDiagnostics)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hubtrace.yaml)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "report output format (text, json, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose diagnostics")

	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error finding home directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".hubtrace")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("HUBTRACE")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("format", "text")
	viper.SetDefault("verbose", false)
	viper.SetDefault("min_entries_per_hour", suppress.DefaultMinEntriesPerHour)
	viper.SetDefault("hub_label", extract.DefaultHubLabel)

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// initDiagnostics routes suppression notices and fatal parse context to
// stderr: pretty console lines for a human at a terminal, JSON otherwise.
func initDiagnostics() {
	level := zerolog.InfoLevel
	if viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if output.IsTerminal(os.Stderr) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = log.Output(os.Stderr)
	}
}
