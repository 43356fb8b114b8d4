package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/balajialg/Datahub-Usage-Analysis/internal/analyzer"
)

func newStatsTestCmd(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{Use: "stats"}
	cmd.SetOut(out)
	cmd.Flags().String("since", "", "only include events since timestamp")
	cmd.Flags().String("until", "", "only include events until timestamp")
	return cmd
}

func statsFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return writeTempFile(t, dir, "hub.log", []string{
		hubLogLine("2018-01-21 09:05:00.000", "alice", "start"),
		hubLogLine("2018-01-21 09:10:00.000", "bob", "start"),
		hubLogLine("2018-01-21 09:40:00.000", "alice", "stop"),
		hubLogLine("2018-01-21 10:02:00.000", "carol", "start"),
		`{"textPayload": "[I 2018-01-21 10:03:00.000 JupyterHub log:122] 200 GET /hub/home", "labels": {"k8s-pod/release": "datahub-prod"}}`,
	})
}

func TestStatsText(t *testing.T) {
	viper.Reset()
	viper.Set("format", "text")

	file := statsFixture(t)

	var out bytes.Buffer
	cmd := newStatsTestCmd(&out)
	if err := runStats(cmd, []string{file}); err != nil {
		t.Fatalf("runStats() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "Total Events: 4 (3 starts, 1 stops)") {
		t.Errorf("missing event totals, got:\n%s", got)
	}
	if !strings.Contains(got, "Distinct Users: 3") {
		t.Errorf("missing distinct user count, got:\n%s", got)
	}
	if !strings.Contains(got, "2018-01-21 09:00: 3") {
		t.Errorf("missing 09:00 hour bucket, got:\n%s", got)
	}
	if strings.Contains(got, "alice") || strings.Contains(got, "bob") {
		t.Errorf("stats output leaks raw usernames:\n%s", got)
	}
}

func TestStatsJSON(t *testing.T) {
	viper.Reset()
	viper.Set("format", "json")

	file := statsFixture(t)

	var out bytes.Buffer
	cmd := newStatsTestCmd(&out)
	if err := runStats(cmd, []string{file}); err != nil {
		t.Fatalf("runStats() error = %v", err)
	}

	var stats analyzer.UsageStats
	if err := json.Unmarshal(out.Bytes(), &stats); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v\noutput: %s", err, out.String())
	}

	if stats.TotalEvents != 4 {
		t.Errorf("TotalEvents = %d, want 4", stats.TotalEvents)
	}
	if stats.DistinctUsers != 3 {
		t.Errorf("DistinctUsers = %d, want 3", stats.DistinctUsers)
	}
	if stats.Hubs["datahub-prod"] != 4 {
		t.Errorf("Hubs = %v", stats.Hubs)
	}
	if stats.Spawn.Count != 3 || stats.Spawn.Min != 13.654 {
		t.Errorf("Spawn = %+v", stats.Spawn)
	}
}

func TestStatsTable(t *testing.T) {
	viper.Reset()
	viper.Set("format", "table")

	file := statsFixture(t)

	var out bytes.Buffer
	cmd := newStatsTestCmd(&out)
	if err := runStats(cmd, []string{file}); err != nil {
		t.Fatalf("runStats() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "HOUR") || !strings.Contains(got, "EVENTS") {
		t.Errorf("missing table header, got:\n%s", got)
	}
	if !strings.Contains(got, "2018-01-21 09:00") {
		t.Errorf("missing hour row, got:\n%s", got)
	}
}

func TestStatsSinceFilter(t *testing.T) {
	viper.Reset()
	viper.Set("format", "json")

	file := statsFixture(t)

	var out bytes.Buffer
	cmd := newStatsTestCmd(&out)
	if err := cmd.Flags().Set("since", "2018-01-21 10:00"); err != nil {
		t.Fatal(err)
	}
	if err := runStats(cmd, []string{file}); err != nil {
		t.Fatalf("runStats() error = %v", err)
	}

	var stats analyzer.UsageStats
	if err := json.Unmarshal(out.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalEvents != 1 {
		t.Errorf("TotalEvents = %d after --since filter, want 1", stats.TotalEvents)
	}
}

func TestStatsInvalidSince(t *testing.T) {
	viper.Reset()

	file := statsFixture(t)

	var out bytes.Buffer
	cmd := newStatsTestCmd(&out)
	if err := cmd.Flags().Set("since", "yesterday"); err != nil {
		t.Fatal(err)
	}
	if err := runStats(cmd, []string{file}); err == nil {
		t.Error("runStats() accepted an invalid --since value")
	}
}
