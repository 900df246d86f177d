// Package snapshot converts HTTP responses to and from their stored
// byte representation (the HTTP/1.1 wire format).
package snapshot

import (
	"bufio"
	"bytes"
	"net/http"
)

// Marshal returns the HTTP/1.1 representation of the response.
// The response body is consumed in the process and replaced with an
// equivalent reader, so the response stays usable afterwards.
func Marshal(res *http.Response) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := res.Write(buf); err != nil {
		return nil, err
	}
	bts := buf.Bytes()
	// res.Write drained the body; restore it from the written bytes
	clone, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(bts)), res.Request)
	if err != nil {
		return nil, err
	}
	res.Body = clone.Body
	return bts, nil
}

// Unmarshal parses a stored snapshot back into a http.Response.
// The request may be nil.
func Unmarshal(b []byte, req *http.Request) (*http.Response, error) {
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), req)
}
