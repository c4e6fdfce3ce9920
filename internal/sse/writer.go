// Package sse serializes the answer stream to the client as data-only
// server-sent events and enforces the event ordering contract:
// token* (sourceDocs? docId?) (done|error), exactly one terminal event.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/devashis/prajna/internal/model"
)

// ErrClosed is returned for any write attempted after the terminal event.
var ErrClosed = fmt.Errorf("stream already terminated")

// event is the wire union. SourceDocs is a pointer so an empty citation list
// still serializes as [] instead of being dropped by omitempty.
type event struct {
	Token      string                     `json:"token,omitempty"`
	Model      string                     `json:"model,omitempty"`
	SourceDocs *[]model.RetrievedDocument `json:"sourceDocs,omitempty"`
	DocID      string                     `json:"docId,omitempty"`
	Done       bool                       `json:"done,omitempty"`
	Error      string                     `json:"error,omitempty"`
}

type Writer struct {
	mu          sync.Mutex
	w           http.ResponseWriter
	flusher     http.Flusher
	sourcesSent bool
	terminated  bool
}

// NewWriter prepares w for event streaming. It fails when the underlying
// writer cannot flush, which would buffer the whole stream.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	return &Writer{w: w, flusher: flusher}, nil
}

// Token emits one partial answer chunk. Tag distinguishes the pipelines in
// comparison mode and is empty for single-model requests. Tokens are rejected
// once citations have been sent, keeping the stream grammar intact.
func (s *Writer) Token(tag, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return ErrClosed
	}
	if s.sourcesSent {
		return fmt.Errorf("token after sourceDocs violates stream ordering")
	}
	return s.emit(event{Token: text, Model: tag})
}

func (s *Writer) SourceDocs(docs []model.RetrievedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return ErrClosed
	}
	s.sourcesSent = true
	if docs == nil {
		docs = []model.RetrievedDocument{}
	}
	return s.emit(event{SourceDocs: &docs})
}

func (s *Writer) DocID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return ErrClosed
	}
	s.sourcesSent = true
	return s.emit(event{DocID: id})
}

// Done emits the success terminal event. Subsequent writes fail with
// ErrClosed.
func (s *Writer) Done() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return ErrClosed
	}
	s.terminated = true
	return s.emit(event{Done: true})
}

// Error emits the failure terminal event so the client can tell a partial
// stream from a completed one.
func (s *Writer) Error(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return ErrClosed
	}
	s.terminated = true
	return s.emit(event{Error: message})
}

// Terminated reports whether a terminal event has been written.
func (s *Writer) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

func (s *Writer) emit(ev event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		// A failed write usually means the client went away; the caller
		// stops streaming but must not crash.
		return err
	}
	s.flusher.Flush()
	return nil
}
