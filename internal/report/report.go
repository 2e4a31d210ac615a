// Package report defines the route check report and its JSON output.
package report

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/fragnav/fragnav/internal/assemble"
	"github.com/fragnav/fragnav/internal/metrics"
)

// RouteResult describes the outcome of checking one route.
type RouteResult struct {
	Key        string           `json:"key"`
	Template   string           `json:"template"`
	Title      string           `json:"title,omitempty"`
	OK         bool             `json:"ok"`
	Error      string           `json:"error,omitempty"`
	Issues     []assemble.Issue `json:"issues,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

// Report is the complete result of checking a site's route table.
type Report struct {
	Site        string           `json:"site"`
	GeneratedAt time.Time        `json:"generated_at"`
	Routes      []RouteResult    `json:"routes"`
	Metrics     metrics.Snapshot `json:"metrics"`
}

// OK reports whether every route checked clean.
func (r *Report) OK() bool {
	for _, rr := range r.Routes {
		if !rr.OK {
			return false
		}
	}
	return true
}

// JSONWriter writes reports in JSON format.
type JSONWriter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
	stream bool
	closed bool
}

// NewJSONWriter creates a new JSON writer. In stream mode each route result
// is emitted as its own line as checking progresses.
func NewJSONWriter(w io.Writer, pretty, stream bool) *JSONWriter {
	return &JSONWriter{
		writer: w,
		pretty: pretty,
		stream: stream,
	}
}

// WriteReport writes the complete report.
func (j *JSONWriter) WriteReport(report *Report) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	return j.write(report)
}

// WriteRoute writes a single route result in streaming mode.
func (j *JSONWriter) WriteRoute(result *RouteResult) error {
	if !j.stream {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	return j.write(StreamEvent{Type: "route", Data: result})
}

func (j *JSONWriter) write(v interface{}) error {
	var data []byte
	var err error

	if j.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	if _, err = j.writer.Write(data); err != nil {
		return err
	}
	_, err = j.writer.Write([]byte("\n"))
	return err
}

// Close closes the writer.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true

	if closer, ok := j.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// StreamEvent represents a streaming output event.
type StreamEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
