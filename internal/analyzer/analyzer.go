// Package analyzer computes aggregate usage statistics over anonymized
// activity records. It only ever sees pseudonymized users, so its reports
// carry no more identifying detail than the anonymized output itself.
package analyzer

import (
	"sort"
	"strconv"
	"time"

	"github.com/balajialg/Datahub-Usage-Analysis/internal/extract"
)

// HourCount is the number of events observed in one hour bucket.
type HourCount struct {
	Hour  time.Time `json:"hour"`
	Count int       `json:"count"`
}

// SpawnStats summarizes server start durations in seconds.
type SpawnStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Mean  float64 `json:"mean"`
	Max   float64 `json:"max"`
}

// UsageStats holds aggregate statistics for a set of activity records.
type UsageStats struct {
	TotalEvents   int            `json:"total_events"`
	Starts        int            `json:"starts"`
	Stops         int            `json:"stops"`
	DistinctUsers int            `json:"distinct_users"`
	Hubs          map[string]int `json:"hubs"`
	Hours         []HourCount    `json:"hours,omitempty"`
	Spawn         SpawnStats     `json:"spawn_seconds"`
	FirstEvent    time.Time      `json:"first_event,omitempty"`
	LastEvent     time.Time      `json:"last_event,omitempty"`
}

// Compute aggregates records into usage statistics. Hour buckets are
// reported in chronological order regardless of input order.
func Compute(records []extract.Record) UsageStats {
	stats := UsageStats{
		TotalEvents: len(records),
		Hubs:        make(map[string]int),
	}
	if len(records) == 0 {
		return stats
	}

	users := make(map[string]struct{})
	hours := make(map[time.Time]int)

	for _, rec := range records {
		users[rec.User] = struct{}{}
		stats.Hubs[rec.Hub]++
		hours[rec.TimestampHour]++

		switch rec.Action {
		case extract.ActionStart:
			stats.Starts++
			if secs, err := strconv.ParseFloat(rec.SpawnTime, 64); err == nil {
				addSpawn(&stats.Spawn, secs)
			}
		case extract.ActionStop:
			stats.Stops++
		}

		if stats.FirstEvent.IsZero() || rec.Timestamp.Before(stats.FirstEvent) {
			stats.FirstEvent = rec.Timestamp
		}
		if stats.LastEvent.IsZero() || rec.Timestamp.After(stats.LastEvent) {
			stats.LastEvent = rec.Timestamp
		}
	}

	stats.DistinctUsers = len(users)

	for hour, count := range hours {
		stats.Hours = append(stats.Hours, HourCount{Hour: hour, Count: count})
	}
	sort.Slice(stats.Hours, func(i, j int) bool {
		return stats.Hours[i].Hour.Before(stats.Hours[j].Hour)
	})

	if stats.Spawn.Count > 0 {
		stats.Spawn.Mean /= float64(stats.Spawn.Count)
	}

	return stats
}

// addSpawn folds one spawn duration into the running stats. Mean holds the
// running sum until Compute divides it at the end.
func addSpawn(s *SpawnStats, secs float64) {
	if s.Count == 0 || secs < s.Min {
		s.Min = secs
	}
	if secs > s.Max {
		s.Max = secs
	}
	s.Mean += secs
	s.Count++
}
