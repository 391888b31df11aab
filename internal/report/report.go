// Package report emits one result per strategy and parameter set.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"go-docbench/internal/metrics"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type (
	// Result is the outcome of one successful measurement.
	Result struct {
		Strategy string            `json:"strategy"`
		Backend  string            `json:"backend,omitempty"`
		Docs     int               `json:"docs"`
		Size     int               `json:"size"`
		Trials   int               `json:"trials"`
		Elapsed  time.Duration     `json:"-"`
		Latency  []metrics.Summary `json:"latency,omitempty"`
	}

	// Sink receives results as they are produced.
	Sink interface {
		Emit(Result) error
	}

	// TextSink writes comma-separated lines:
	// <strategy>, docs=<n>, size=<bytes>, trials=<t>, <elapsed-seconds>
	TextSink struct {
		mu sync.Mutex
		w  io.Writer
	}

	// JSONSink writes one JSON object per line.
	JSONSink struct {
		mu  sync.Mutex
		enc *json.Encoder
	}
)

// NewSink returns the sink for format writing to w.
func NewSink(format string, w io.Writer) (Sink, error) {
	switch format {
	case "", FormatText:
		return NewTextSink(w), nil
	case FormatJSON:
		return NewJSONSink(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (s *TextSink) Emit(r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s, docs=%d, size=%d, trials=%d, %.6f\n",
		r.Strategy, r.Docs, r.Size, r.Trials, r.Elapsed.Seconds())
	if err != nil {
		return fmt.Errorf("write report line: %w", err)
	}
	return nil
}

func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

func (s *JSONSink) Emit(r Result) error {
	line := struct {
		Result
		ElapsedSeconds float64 `json:"elapsed_seconds"`
	}{Result: r, ElapsedSeconds: r.Elapsed.Seconds()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(line); err != nil {
		return fmt.Errorf("encode report line: %w", err)
	}
	return nil
}
