package avstudio

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-openapi/runtime/middleware/header"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Access is the set of HTTP capabilities a sub-resource client needs.  Both
// API generations implement it, so sub-resources never depend on which one
// they were given.
type Access interface {
	FullURL(path string) string
	Get(path string) (*Response, error)
	Head(path string, withCredentials bool) (*Response, error)
	Delete(path string) (*Response, error)
	Post(path string) (*Response, error)
	PostJSON(path string, data interface{}) (*Response, error)
	PutJSON(path string, data interface{}) (*Response, error)
	PostFile(path string, fileName string, mimeType string) (*Response, error)
	DownloadFile(path string, localFileName string) (*Response, error)
	Logger() *logrus.Entry
}

var (
	_ Access = (*AccessV1)(nil)
	_ Access = (*AccessV2)(nil)
)

// Response is a completed, successful exchange.  Body is empty for
// downloads, which are written straight to disk.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Cookies parses the Set-Cookie headers of the response
func (r *Response) Cookies() []*http.Cookie {
	return (&http.Response{Header: r.Header}).Cookies()
}

// Cookie returns the named cookie set by the response
func (r *Response) Cookie(name string) (*http.Cookie, bool) {
	for _, c := range r.Cookies() {
		if c.Name == name {
			return c, true
		}
	}

	return nil, false
}

// DecodeJSON unmarshals the body into dst.  Numbers are kept as json.Number
// so that objects written back to the platform are not altered.
func (r *Response) DecodeJSON(dst interface{}) error {
	if r.Header.Get("Content-Type") != "" {
		value, _ := header.ParseValueAndParams(r.Header, "Content-Type")
		if !isJSONMediaType(value) {
			return errors.Errorf("expected JSON response, got %s", value)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, "decoding JSON response")
	}

	return nil
}

// RawJSON returns the body untouched, or nil for an empty body
func (r *Response) RawJSON() json.RawMessage {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}

	return json.RawMessage(r.Body)
}

func isJSONMediaType(value string) bool {
	value = strings.ToLower(value)
	return value == "application/json" || value == "text/json" || strings.HasSuffix(value, "+json")
}
