package output

import (
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/balajialg/Datahub-Usage-Analysis/internal/extract"
)

// RecordWriter writes anonymized activity records as newline-delimited
// JSON, one record per line. It satisfies suppress.Sink.
type RecordWriter struct {
	enc *json.Encoder
	gz  *gzip.Writer
	f   *os.File
}

// NewRecordWriter wraps an existing writer, typically a test buffer or
// stdout. The caller owns the underlying writer.
func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{enc: json.NewEncoder(w)}
}

// CreateRecordFile opens path for writing records. A path ending in .gz is
// gzip-compressed on the fly. Close releases the file on every exit path of
// the caller, so partial output survives a mid-run abort.
func CreateRecordFile(path string) (*RecordWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	rw := &RecordWriter{f: f}
	if strings.HasSuffix(path, ".gz") {
		rw.gz = gzip.NewWriter(f)
		rw.enc = json.NewEncoder(rw.gz)
	} else {
		rw.enc = json.NewEncoder(f)
	}
	return rw, nil
}

// Write emits one record as a JSON line.
func (rw *RecordWriter) Write(rec extract.Record) error {
	return rw.enc.Encode(rec)
}

// Close flushes the gzip stream (if any) and closes the file (if owned).
func (rw *RecordWriter) Close() error {
	var firstErr error
	if rw.gz != nil {
		firstErr = rw.gz.Close()
	}
	if rw.f != nil {
		if err := rw.f.Close(); firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
