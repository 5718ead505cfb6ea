package avstudio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"net/http/httputil"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jake-scott/avstudio/internal/pkg/logging"
	"github.com/jake-scott/avstudio/version"
)

const (
	// DefaultHost is the production platform
	DefaultHost = "go.avstudio.com"

	apiPrefix         = "/front/api/"
	downloadChunkSize = 1024
	defaultUploadMIME = "application/binary"
	redactedText      = "********"
)

// Option configures the transport of either API generation
type Option func(*transport)

// WithHTTPClient sets the HTTP client used for every exchange
func WithHTTPClient(c *http.Client) Option {
	return func(t *transport) {
		t.httpClient = c
	}
}

// WithTimeout bounds each exchange, including reading the body
func WithTimeout(d time.Duration) Option {
	return func(t *transport) {
		t.timeout = d
	}
}

// WithLogger replaces the default logger
func WithLogger(l *logrus.Entry) Option {
	return func(t *transport) {
		t.logger = l
	}
}

// transport executes requests and logs the exchanges for both generations
type transport struct {
	host       string
	version    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *logrus.Entry
	success    func(statusCode int) bool
	classify   func(statusCode int, body []byte) error
}

func newTransport(host string, apiVersion string, success func(int) bool, classify func(int, []byte) error, opts []Option) *transport {
	t := &transport{
		host:       host,
		version:    apiVersion,
		httpClient: &http.Client{},
		logger:     logging.Logger(nil).WithField("api", apiVersion),
		success:    success,
		classify:   classify,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Logger returns the logger exchanges are recorded to
func (t *transport) Logger() *logrus.Entry {
	return t.logger
}

// Host returns the platform host name
func (t *transport) Host() string {
	return t.host
}

func (t *transport) makeContext() (context.Context, context.CancelFunc) {
	var ctx = context.Background()
	var cancel context.CancelFunc = func() {}
	if t.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
	}

	return ctx, cancel
}

// buildURL resolves path against the host.  Paths starting with a slash
// are absolute, everything else lives under the versioned API prefix,
// optionally below a team.
func (t *transport) buildURL(path string, team string) string {
	if strings.HasPrefix(path, "/") {
		return "https://" + t.host + path
	}

	base := "https://" + t.host + apiPrefix + t.version + "/"
	if team != "" {
		base += "team/" + url.PathEscape(team) + "/"
	}

	return base + path
}

// exchange holds the per-request knobs of do()
type exchange struct {
	client   *http.Client
	dumpBody bool
	// the value of query parameter secretParam is masked in log output
	// and errors
	secretParam string
	secret      string
	// sink consumes the body of a successful response instead of buffering it
	sink func(io.Reader) error
}

func (x exchange) redact(s string) string {
	if x.secretParam == "" || x.secret == "" {
		return s
	}

	return strings.ReplaceAll(s, x.secretParam+"="+url.QueryEscape(x.secret), x.secretParam+"="+redactedText)
}

// do runs one exchange.  Failure statuses are classified and returned as
// errors, never as responses.
func (t *transport) do(req *http.Request, x exchange) (*Response, error) {
	client := x.client
	if client == nil {
		client = t.httpClient
	}

	txnID := uuid.New().String()
	ctx, cancel := t.makeContext()
	defer cancel()

	req = req.WithContext(logging.WithTxnID(ctx, txnID))
	req.Header.Set("User-Agent", version.UserAgent())

	reqDump, err := httputil.DumpRequestOut(req, x.dumpBody)
	if err != nil {
		return nil, errors.Wrap(err, "dumping request")
	}

	displayURL := x.redact(req.URL.String())
	fields := logrus.Fields{
		"txnid":  txnID,
		"method": req.Method,
		"url":    displayURL,
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if urlErr, ok := err.(*url.Error); ok {
			urlErr.URL = displayURL
		}
		t.logger.WithFields(fields).WithError(err).Errorf("%s", x.redact(string(reqDump)))
		return nil, errors.Wrapf(err, "%s %s", req.Method, displayURL)
	}
	defer resp.Body.Close()

	fields["status"] = resp.StatusCode

	if t.success(resp.StatusCode) && x.sink != nil {
		if err := x.sink(resp.Body); err != nil {
			fields["duration"] = time.Since(start)
			t.logger.WithFields(fields).WithError(err).Error("consuming response body")
			return nil, err
		}

		fields["duration"] = time.Since(start)
		t.logExchange(fields, reqDump, resp, nil, x, true)

		return &Response{StatusCode: resp.StatusCode, Header: resp.Header}, nil
	}

	body, err := ioutil.ReadAll(resp.Body)
	fields["duration"] = time.Since(start)
	if err != nil {
		t.logger.WithFields(fields).WithError(err).Error("reading response body")
		return nil, errors.Wrapf(err, "reading response body of %s %s", req.Method, displayURL)
	}

	ok := t.success(resp.StatusCode)
	t.logExchange(fields, reqDump, resp, body, x, ok)
	if !ok {
		return nil, t.classify(resp.StatusCode, body)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (t *transport) logExchange(fields logrus.Fields, reqDump []byte, resp *http.Response, body []byte, x exchange, success bool) {
	level := logrus.DebugLevel
	if !success {
		level = logrus.ErrorLevel
	}

	if !t.logger.Logger.IsLevelEnabled(level) {
		return
	}

	var sb strings.Builder
	sb.Write(reqDump)
	sb.WriteString("\n")
	if respDump, err := httputil.DumpResponse(resp, false); err == nil {
		sb.Write(respDump)
	}
	sb.Write(body)

	if d, ok := fields["duration"].(time.Duration); ok {
		fmt.Fprintf(&sb, "\nRequest processed in %f seconds", d.Seconds())
	}

	t.logger.WithFields(fields).Log(level, x.redact(sb.String()))
}

// payload is a request body and its content type
type payload struct {
	data        []byte
	contentType string
	dump        bool
}

func jsonPayload(v interface{}) (*payload, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding JSON request body")
	}

	return &payload{data: data, contentType: "application/json", dump: true}, nil
}

// filePayload builds a multipart body with the file under the "file" field
func filePayload(fileName string, mimeType string) (*payload, error) {
	if mimeType == "" {
		mimeType = defaultUploadMIME
	}

	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s for upload", fileName)
	}
	defer file.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filepath.Base(fileName))))
	h.Set("Content-Type", mimeType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, errors.Wrap(err, "creating multipart section")
	}

	if _, err := io.Copy(part, file); err != nil {
		return nil, errors.Wrapf(err, "reading %s for upload", fileName)
	}

	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "finishing multipart body")
	}

	return &payload{data: buf.Bytes(), contentType: mw.FormDataContentType()}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// writeChunks copies r to fileName a chunk at a time, skipping empty reads
func writeChunks(r io.Reader, fileName string) error {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "opening %s for write", fileName)
	}
	defer file.Close()

	buf := make([]byte, downloadChunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				return errors.Wrapf(err, "writing %s", fileName)
			}
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return errors.Wrapf(rerr, "downloading to %s", fileName)
		}
	}

	return errors.Wrapf(file.Close(), "closing %s", fileName)
}
