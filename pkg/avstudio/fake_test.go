package avstudio

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

// fakePlatform is a TLS test server standing in for the platform.  Tests
// register the routes they need on router.
type fakePlatform struct {
	server *httptest.Server
	router *mux.Router
	hook   *logtest.Hook
	logger *logrus.Entry

	mu       sync.Mutex
	requests []recordedRequest
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()

	f := &fakePlatform{router: mux.NewRouter()}
	f.router.Use(f.record)
	f.server = httptest.NewTLSServer(f.router)
	t.Cleanup(f.server.Close)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f.hook = hook
	f.logger = logrus.NewEntry(logger)

	return f
}

func (f *fakePlatform) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		r.Body.Close()
		r.Body = ioutil.NopCloser(bytes.NewReader(body))

		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		f.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

// host is what the clients are pointed at
func (f *fakePlatform) host() string {
	return f.server.Listener.Addr().String()
}

func (f *fakePlatform) options() []Option {
	return []Option{WithHTTPClient(f.server.Client()), WithLogger(f.logger)}
}

func (f *fakePlatform) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]recordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// recordedMethod returns the requests made with method
func (f *fakePlatform) recordedMethod(method string) []recordedRequest {
	var out []recordedRequest
	for _, r := range f.recorded() {
		if r.Method == method {
			out = append(out, r)
		}
	}

	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// userMe serves users/me under prefix
func (f *fakePlatform) userMe(prefix string) {
	f.router.HandleFunc(prefix+"/users/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ID": "user-1", "Name": "Ada"})
	}).Methods(http.MethodGet)
}

// newTokenAPI returns a v2 facade with a token already accepted
func newTokenAPI(t *testing.T, f *fakePlatform) *API2 {
	t.Helper()

	f.userMe("/front/api/v2")

	api := NewAPI2(f.host(), f.options()...)
	if err := api.SetAuthToken("token-1"); err != nil {
		t.Fatalf("SetAuthToken: %v", err)
	}

	return api
}
