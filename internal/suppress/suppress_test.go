package suppress

import (
	"fmt"
	"testing"
	"time"

	"github.com/balajialg/Datahub-Usage-Analysis/internal/extract"
)

type memorySink struct {
	records []extract.Record
	failAt  int // fail on the Nth write (1-based), 0 = never
}

func (m *memorySink) Write(rec extract.Record) error {
	if m.failAt > 0 && len(m.records)+1 == m.failAt {
		return fmt.Errorf("sink write %d failed", m.failAt)
	}
	m.records = append(m.records, rec)
	return nil
}

var baseHour = time.Date(2018, 1, 21, 21, 0, 0, 0, time.UTC)

// recordAt builds a record n minutes into the given hour, tagged so order
// can be asserted later.
func recordAt(hour time.Time, minute int, tag string) extract.Record {
	ts := hour.Add(time.Duration(minute) * time.Minute)
	return extract.Record{
		Timestamp:     ts,
		TimestampHour: hour,
		User:          tag,
		Action:        extract.ActionStart,
		Hub:           "prod",
	}
}

func feed(t *testing.T, s *Suppressor, recs ...extract.Record) {
	t.Helper()
	for _, r := range recs {
		if err := s.Add(r); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func TestBucketAtThresholdEmitted(t *testing.T) {
	sink := &memorySink{}
	s := New(sink, 5)

	var recs []extract.Record
	for i := 0; i < 5; i++ {
		recs = append(recs, recordAt(baseHour, i, fmt.Sprintf("u%d", i)))
	}
	feed(t, s, recs...)

	if len(sink.records) != 5 {
		t.Fatalf("emitted %d records, want all 5", len(sink.records))
	}
	sum := s.Summary()
	if sum.BucketsEmitted != 1 || sum.RecordsWritten != 5 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestBucketBelowThresholdSuppressed(t *testing.T) {
	sink := &memorySink{}
	s := New(sink, 5)

	var recs []extract.Record
	for i := 0; i < 4; i++ {
		recs = append(recs, recordAt(baseHour, i, fmt.Sprintf("u%d", i)))
	}
	feed(t, s, recs...)

	if len(sink.records) != 0 {
		t.Fatalf("emitted %d records from a k-1 bucket, want none", len(sink.records))
	}
	sum := s.Summary()
	if sum.BucketsSuppressed != 1 || sum.RecordsDropped != 4 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestMixedBuckets(t *testing.T) {
	sink := &memorySink{}
	s := New(sink, 5)

	hourB := baseHour.Add(time.Hour)
	var recs []extract.Record
	for i := 0; i < 5; i++ {
		recs = append(recs, recordAt(baseHour, i, fmt.Sprintf("a%d", i)))
	}
	for i := 0; i < 2; i++ {
		recs = append(recs, recordAt(hourB, i, fmt.Sprintf("b%d", i)))
	}
	feed(t, s, recs...)

	if len(sink.records) != 5 {
		t.Fatalf("emitted %d records, want 5 from hour A only", len(sink.records))
	}
	for _, rec := range sink.records {
		if !rec.TimestampHour.Equal(baseHour) {
			t.Errorf("record from suppressed hour leaked: %+v", rec)
		}
	}
	sum := s.Summary()
	if sum.BucketsEmitted != 1 || sum.BucketsSuppressed != 1 || sum.RecordsDropped != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestTrailingBucketFlushedAtEOF(t *testing.T) {
	sink := &memorySink{}
	s := New(sink, 2)

	hourB := baseHour.Add(time.Hour)
	feed(t, s,
		recordAt(baseHour, 0, "a0"),
		recordAt(hourB, 0, "b0"),
		recordAt(hourB, 1, "b1"),
	)

	// Hour A (1 record) suppressed, hour B (2 records) only exists in the
	// output because of the end-of-stream flush.
	if len(sink.records) != 2 {
		t.Fatalf("emitted %d records, want 2 from trailing bucket", len(sink.records))
	}
	for _, rec := range sink.records {
		if !rec.TimestampHour.Equal(hourB) {
			t.Errorf("unexpected record emitted: %+v", rec)
		}
	}
}

func TestOrderPreservedWithinBucket(t *testing.T) {
	sink := &memorySink{}
	s := New(sink, 3)

	feed(t, s,
		recordAt(baseHour, 3, "first"),
		recordAt(baseHour, 7, "second"),
		recordAt(baseHour, 12, "third"),
	)

	want := []string{"first", "second", "third"}
	if len(sink.records) != len(want) {
		t.Fatalf("emitted %d records, want %d", len(sink.records), len(want))
	}
	for i, tag := range want {
		if sink.records[i].User != tag {
			t.Errorf("position %d = %q, want %q", i, sink.records[i].User, tag)
		}
	}
}

func TestEmptyStreamFlush(t *testing.T) {
	sink := &memorySink{}
	s := New(sink, 5)

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() on empty stream error = %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("second Flush() error = %v", err)
	}
	if got := s.Summary(); got != (Summary{}) {
		t.Errorf("summary = %+v, want zero", got)
	}
}

func TestDefaultThreshold(t *testing.T) {
	s := New(&memorySink{}, 0)
	if s.min != DefaultMinEntriesPerHour {
		t.Errorf("min = %d, want default %d", s.min, DefaultMinEntriesPerHour)
	}
}

func TestSinkErrorPropagates(t *testing.T) {
	sink := &memorySink{failAt: 2}
	s := New(sink, 2)

	if err := s.Add(recordAt(baseHour, 0, "a0")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add(recordAt(baseHour, 1, "a1")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Flush(); err == nil {
		t.Fatal("Flush() swallowed a sink write error")
	}
}
