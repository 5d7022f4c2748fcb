// Package clientfake is an httptest backend that answers canned responses
// and records what it was sent.
package clientfake

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jrsteele09/learnlink-client/client"
)

type Request struct {
	Method      string
	Path        string
	Query       map[string][]string
	Header      http.Header
	Body        []byte
	ContentType string
}

// JSON decodes the recorded body into v
func (r Request) JSON(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("decode %s %s body: %v", r.Method, r.Path, err)
	}
}

// Form parses the recorded multipart body
func (r Request) Form(t *testing.T) *multipart.Form {
	t.Helper()
	_, params, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		t.Fatalf("parse content type %q: %v", r.ContentType, err)
	}
	form, err := multipart.NewReader(bytes.NewReader(r.Body), params["boundary"]).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read multipart form: %v", err)
	}
	return form
}

type response struct {
	status int
	body   any
}

type Server struct {
	*httptest.Server
	mu        sync.Mutex
	responses map[string]response
	requests  []Request
}

func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{responses: make(map[string]response)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle registers the response for method and exact path. body is
// marshalled as JSON unless it is a string.
func (s *Server) Handle(method, path string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[method+" "+path] = response{status: status, body: body}
}

// Client returns an API client pointed at the server
func (s *Server) Client() *client.Client {
	return client.New(s.URL, s.Server.Client())
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Last returns the most recent request, or the zero Request
func (s *Server) Last() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}
	}
	return s.requests[len(s.requests)-1]
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.Query(),
		Header:      r.Header.Clone(),
		Body:        body,
		ContentType: r.Header.Get("Content-Type"),
	})
	resp, ok := s.responses[r.Method+" "+r.URL.Path]
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no route"}`))
		return
	}

	switch b := resp.body.(type) {
	case nil:
		w.WriteHeader(resp.status)
	case string:
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(b))
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_ = json.NewEncoder(w).Encode(b)
	}
}
