// Package suppress enforces k-anonymity over hourly activity buckets.
//
// Records arrive in log order and are grouped into contiguous hour-aligned
// buckets. A bucket is only released to the sink when it holds at least the
// configured minimum number of records; anything smaller is dropped whole,
// so no published hour can single out fewer than k users' events.
package suppress

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/balajialg/Datahub-Usage-Analysis/internal/extract"
)

// DefaultMinEntriesPerHour is the suppression threshold applied when no
// explicit value is configured.
const DefaultMinEntriesPerHour = 5

// Sink receives the records of every bucket that survives suppression, in
// original arrival order.
type Sink interface {
	Write(extract.Record) error
}

// Summary reports what one run emitted and what it held back.
type Summary struct {
	BucketsEmitted    int `json:"buckets_emitted"`
	BucketsSuppressed int `json:"buckets_suppressed"`
	RecordsWritten    int `json:"records_written"`
	RecordsDropped    int `json:"records_dropped"`
}

// Suppressor holds at most one open hour bucket at a time. The input log is
// assumed non-decreasing in hour, so a bucket closes for good the moment a
// record with a different hour arrives, or at end of stream via Flush.
type Suppressor struct {
	sink Sink
	min  int

	open    bool
	hour    time.Time
	records []extract.Record

	summary Summary
}

// New creates a Suppressor writing surviving buckets to sink. A min of zero
// or less falls back to DefaultMinEntriesPerHour.
func New(sink Sink, min int) *Suppressor {
	if min <= 0 {
		min = DefaultMinEntriesPerHour
	}
	return &Suppressor{sink: sink, min: min}
}

// Add routes one record into the open bucket, closing and deciding the
// previous bucket first when the hour has moved on.
func (s *Suppressor) Add(rec extract.Record) error {
	if s.open && rec.TimestampHour.Equal(s.hour) {
		s.records = append(s.records, rec)
		return nil
	}

	if s.open {
		if rec.TimestampHour.Before(s.hour) {
			// The log is assumed time-ordered; a regression means records
			// landed in the wrong bucket upstream of us.
			log.Warn().
				Time("open_hour", s.hour).
				Time("record_hour", rec.TimestampHour).
				Msg("out-of-order record hour, input log is not time-sorted")
		}
		if err := s.decide(); err != nil {
			return err
		}
	}

	s.open = true
	s.hour = rec.TimestampHour
	s.records = append(s.records[:0], rec)
	return nil
}

// Flush applies the emit decision to the bucket still open at end of input.
// Safe to call on an empty stream and safe to call twice.
func (s *Suppressor) Flush() error {
	if !s.open {
		return nil
	}
	err := s.decide()
	s.open = false
	s.records = nil
	return err
}

// decide emits or drops the open bucket. Emission keeps arrival order and
// is all-or-nothing: a sink failure mid-bucket aborts the run rather than
// leaving the choice ambiguous.
func (s *Suppressor) decide() error {
	if len(s.records) < s.min {
		log.Warn().
			Time("hour", s.hour).
			Int("records", len(s.records)).
			Int("min_entries_per_hour", s.min).
			Msg("suppressing under-threshold hour bucket")
		s.summary.BucketsSuppressed++
		s.summary.RecordsDropped += len(s.records)
		return nil
	}

	for _, rec := range s.records {
		if err := s.sink.Write(rec); err != nil {
			return err
		}
	}
	s.summary.BucketsEmitted++
	s.summary.RecordsWritten += len(s.records)
	return nil
}

// Summary returns run totals; call after Flush.
func (s *Suppressor) Summary() Summary {
	return s.summary
}
