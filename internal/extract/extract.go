// Package extract turns raw JupyterHub operational log lines into
// normalized, pseudonymized activity records.
//
// The source log is newline-delimited JSON; only lines whose textPayload
// carries a spawn/stop duration measurement are activity candidates. The
// payload itself is an implicit positional wire format (see parsePayload)
// that must be matched exactly against real log samples.
package extract

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/balajialg/Datahub-Usage-Analysis/internal/pseudonym"
)

// ActivityMarker identifies server start/stop duration lines, e.g.
// "User jovyan took 13.654 seconds to start". Lines without it are skipped
// before any JSON parsing happens.
const ActivityMarker = "seconds to"

// DefaultHubLabel is the labels key carrying the hub release name in logs
// shipped from Kubernetes.
const DefaultHubLabel = "k8s-pod/release"

// Action is the kind of server lifecycle event a record describes.
type Action string

const (
	ActionStart Action = "start"
	ActionStop  Action = "stop"
)

// Record is one normalized activity event. Timestamp keeps full resolution
// and is what gets written out; TimestampHour is the hour-truncated instant
// used only for bucketing and suppression decisions.
type Record struct {
	Timestamp     time.Time `json:"timestamp"`
	TimestampHour time.Time `json:"-"`
	User          string    `json:"user"`
	Action        Action    `json:"action"`
	Hub           string    `json:"hub"`
	SpawnTime     string    `json:"spawn_time"`
}

// ParseError reports a line that matched the activity marker but could not
// be extracted. It carries the decoded object and token list so an operator
// can diagnose log-format drift before retrying.
type ParseError struct {
	Reason string
	Object map[string]interface{}
	Tokens []string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("extract: %s (object=%v tokens=%v)", e.Reason, e.Object, e.Tokens)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// rawLine mirrors the subset of the source log schema we consume.
type rawLine struct {
	TextPayload string            `json:"textPayload"`
	Labels      map[string]string `json:"labels"`
}

// Extractor converts raw log lines into Records using one per-run key.
type Extractor struct {
	key      pseudonym.Key
	hubLabel string
}

// New creates an Extractor. The key must be the single key used for the
// whole run so repeated usernames map to the same pseudonym. An empty
// hubLabel falls back to DefaultHubLabel.
func New(key pseudonym.Key, hubLabel string) *Extractor {
	if hubLabel == "" {
		hubLabel = DefaultHubLabel
	}
	return &Extractor{key: key, hubLabel: hubLabel}
}

// Extract parses one raw log line. It returns ok=false for lines that are
// not activity candidates (no marker). A candidate line that fails JSON
// decoding or the positional token contract returns a *ParseError; this is
// fatal for the run by design, never silently skipped.
func (x *Extractor) Extract(raw []byte) (Record, bool, error) {
	if !bytes.Contains(raw, []byte(ActivityMarker)) {
		return Record{}, false, nil
	}

	var line rawLine
	if err := json.Unmarshal(raw, &line); err != nil {
		return Record{}, false, &ParseError{
			Reason: "line is not a valid JSON object",
			Object: decodeForDiagnostic(raw),
			Err:    err,
		}
	}
	if line.TextPayload == "" {
		return Record{}, false, &ParseError{
			Reason: "missing textPayload field",
			Object: decodeForDiagnostic(raw),
		}
	}
	hub, ok := line.Labels[x.hubLabel]
	if !ok || hub == "" {
		return Record{}, false, &ParseError{
			Reason: fmt.Sprintf("missing labels[%q] field", x.hubLabel),
			Object: decodeForDiagnostic(raw),
		}
	}

	rec, err := x.parsePayload(line.TextPayload)
	if err != nil {
		if pe, isParse := err.(*ParseError); isParse {
			pe.Object = decodeForDiagnostic(raw)
		}
		return Record{}, false, err
	}
	rec.Hub = hub
	return rec, true, nil
}

// Payload token contract (whitespace-split, 0-indexed), fixed by the hub's
// log format:
//
//	[I 2018-01-21 21:55:07.960 JupyterHub log:122] User jovyan took 13.654 seconds to start
//	 0  1          2           3          4        5    6      7    8      9       10 11
//
// tokens 1,2 = date and time, token 6 = raw username, token 8 = spawn
// duration, last token contains the action keyword.
const minPayloadTokens = 9

func (x *Extractor) parsePayload(payload string) (Record, error) {
	tokens := strings.Fields(payload)
	if len(tokens) < minPayloadTokens {
		return Record{}, &ParseError{
			Reason: fmt.Sprintf("payload has %d tokens, need at least %d", len(tokens), minPayloadTokens),
			Tokens: tokens,
		}
	}

	ts, err := parseTimestamp(tokens[1] + " " + tokens[2])
	if err != nil {
		return Record{}, &ParseError{
			Reason: "unparseable timestamp",
			Tokens: tokens,
			Err:    err,
		}
	}

	action := ActionStop
	spawnTime := ""
	if strings.Contains(tokens[len(tokens)-1], "start") {
		action = ActionStart
		spawnTime = tokens[8]
	}

	return Record{
		Timestamp:     ts,
		TimestampHour: TruncateHour(ts),
		User:          x.key.Pseudonym(tokens[6]),
		Action:        action,
		SpawnTime:     spawnTime,
	}, nil
}

// timestampLayouts covers the hub's log timestamps with and without
// millisecond precision.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matches %q", s)
}

// TruncateHour zeroes the minute, second, and sub-second components of t.
// Idempotent: truncating an already truncated instant is a no-op.
func TruncateHour(t time.Time) time.Time {
	return t.Truncate(time.Hour)
}

// decodeForDiagnostic best-effort decodes a raw line into a generic object
// for error reporting. Only called on the fatal path.
func decodeForDiagnostic(raw []byte) map[string]interface{} {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return map[string]interface{}{"raw": string(raw)}
	}
	return obj
}

// ExtractFile streams records from one log file, invoking fn for each
// extracted record in input order. Files ending in .gz are decompressed
// transparently. The first extraction or callback error aborts the scan;
// the file handle is released on every path.
func (x *Extractor) ExtractFile(path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening gzip stream %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	return x.ExtractStream(r, fn)
}

// ExtractStream is ExtractFile over an arbitrary reader.
func (x *Extractor) ExtractStream(r io.Reader, fn func(Record) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		rec, ok, err := x.Extract(line)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}

	return scanner.Err()
}
