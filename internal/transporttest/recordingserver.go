package transporttest

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"sync"

	"github.com/outposthq/outpost/core/internal/protocol"
)

// RecordingServer is an ingest endpoint that records all submissions
// made to it.
type RecordingServer struct {
	sync.Mutex
	*httptest.Server

	requests []RequestCopy
}

type RequestCopy struct {
	Method string
	URL    *url.URL
	Body   []byte
	Header http.Header
}

// ParseEnvelope decodes the request body as a wire-format envelope,
// decompressing it if necessary.
func (r RequestCopy) ParseEnvelope() (*protocol.RawEnvelope, error) {
	if r.Header.Get("Content-Encoding") == "gzip" {
		return protocol.ParseCompressedEnvelope(bytes.NewReader(r.Body))
	}
	return protocol.ParseEnvelope(bytes.NewReader(r.Body))
}

// Requests returns all requests recorded by the server.
func (s *RecordingServer) Requests() []RequestCopy {
	s.Lock()
	defer s.Unlock()
	return slices.Clone(s.requests)
}

type RecordingServerOption func(*recordingServerConfig)

type recordingServerConfig struct {
	handlerFunc http.HandlerFunc
}

// WithHandlerFunc overrides the response behavior. The default responds
// 200 with an acknowledgment body.
func WithHandlerFunc(handler http.HandlerFunc) RecordingServerOption {
	return func(config *recordingServerConfig) {
		config.handlerFunc = handler
	}
}

// NewRecordingServer returns a server that records all requests made
// to it. The caller must Close it.
func NewRecordingServer(opts ...RecordingServerOption) *RecordingServer {
	rs := &RecordingServer{}

	config := &recordingServerConfig{}
	for _, opt := range opts {
		opt(config)
	}

	rs.Server = httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)

			rs.Lock()
			rs.requests = append(rs.requests,
				RequestCopy{
					Method: r.Method,
					URL:    r.URL,
					Body:   body,
					Header: r.Header,
				})
			rs.Unlock()

			if config.handlerFunc != nil {
				config.handlerFunc(w, r)
			} else {
				_, _ = w.Write([]byte(`{"id":"9ec79c33ec9942ab8353589fcb2e04dc"}`))
			}
		}),
	)

	return rs
}
