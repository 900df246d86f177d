package tee

import (
	"bytes"
	"fmt"
	"net/http"
	"time"
)

// ResponseSaver is a wrapper around http.ResponseWriter that saves the
// response to a buffer in HTTP/1.1 wire format while writing it through
// to the client. It is used to mirror network responses into a store
// without delaying the response.
type ResponseSaver struct {
	rw           http.ResponseWriter
	b            *bytes.Buffer
	header       http.Header
	status       int
	wroteHeaders bool
	// FetchedAt is the time the saver was created, i.e. just before the
	// network fetch whose response it records.
	FetchedAt time.Time
}

// NewResponseSaver returns a new ResponseSaver.
// If w is nil, the response is only recorded, not forwarded.
func NewResponseSaver(w http.ResponseWriter) *ResponseSaver {
	return &ResponseSaver{
		FetchedAt: time.Now(),
		rw:        w,
		b:         &bytes.Buffer{},
		header:    http.Header{},
	}
}

func (t *ResponseSaver) Header() http.Header {
	return t.header
}

func (t *ResponseSaver) WriteHeader(statusCode int) {
	t.wroteHeaders = true
	t.status = statusCode
	// record status line, headers and separator in HTTP/1.1 format
	fmt.Fprintf(t.b, "HTTP/1.1 %d %s\r\n", statusCode, http.StatusText(statusCode))
	t.header.Write(t.b)
	t.b.WriteString("\r\n")
	if t.rw != nil {
		copyHeader(t.rw.Header(), t.header)
		t.rw.WriteHeader(statusCode)
	}
}

func (t *ResponseSaver) Write(b []byte) (int, error) {
	if !t.wroteHeaders {
		t.WriteHeader(http.StatusOK)
	}
	if t.rw != nil {
		t.rw.Write(b)
	}
	return t.b.Write(b)
}

// Response returns the recorded response as a byte slice.
func (t *ResponseSaver) Response() []byte {
	return t.b.Bytes()
}

// StatusCode returns the status code of the recorded response.
func (t *ResponseSaver) StatusCode() int {
	return t.status
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
