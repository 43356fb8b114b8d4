package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/balajialg/Datahub-Usage-Analysis/internal/analyzer"
	"github.com/balajialg/Datahub-Usage-Analysis/internal/config"
	"github.com/balajialg/Datahub-Usage-Analysis/internal/extract"
	"github.com/balajialg/Datahub-Usage-Analysis/internal/output"
	"github.com/balajialg/Datahub-Usage-Analysis/internal/pseudonym"
)

var statsCmd = &cobra.Command{
	Use:   "stats [flags] <file>...",
	Short: "Show aggregate usage statistics for hub activity logs",
	Long: `Summarize server start/stop activity from JupyterHub logs: event
counts, distinct users, per-hub and per-hour breakdowns, and spawn
duration statistics.

Usernames are pseudonymized before any aggregation, so the report
carries no more identifying detail than the anonymize output.

Examples:
  hubtrace stats hub-2018-01-21.log
  hubtrace stats --format table logs/*.log.gz
  hubtrace stats --since "2018-01-21" --until "2018-01-22" hub.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().String("since", "", "only include events since timestamp (absolute or relative, e.g. 24h)")
	statsCmd.Flags().String("until", "", "only include events until timestamp")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	sinceStr, _ := cmd.Flags().GetString("since")
	untilStr, _ := cmd.Flags().GetString("until")

	var since, until time.Time
	var err error
	if sinceStr != "" {
		if since, err = config.ParseTimeRef(sinceStr); err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
	}
	if untilStr != "" {
		if until, err = config.ParseTimeRef(untilStr); err != nil {
			return fmt.Errorf("invalid --until value: %w", err)
		}
	}

	files, err := config.ExpandGlobs(args)
	if err != nil {
		return err
	}

	key, err := pseudonym.NewKey()
	if err != nil {
		return err
	}
	x := extract.New(key, viper.GetString("hub_label"))

	var records []extract.Record
	for _, file := range files {
		err := x.ExtractFile(file, func(rec extract.Record) error {
			if !since.IsZero() && rec.Timestamp.Before(since) {
				return nil
			}
			if !until.IsZero() && rec.Timestamp.After(until) {
				return nil
			}
			records = append(records, rec)
			return nil
		})
		if err != nil {
			return fmt.Errorf("processing %s: %w", file, err)
		}
	}

	w := output.New(cmd.OutOrStdout(), output.ParseFormat(viper.GetString("format")))
	return w.WriteUsageStats(analyzer.Compute(records), files)
}
