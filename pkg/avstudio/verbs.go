package avstudio

import (
	"bytes"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// endpoint is what differs between the API generations: where a path
// resolves to and how the credential is attached
type endpoint interface {
	FullURL(path string) string
	authorize(req *http.Request, withCredentials bool) *http.Client
}

// verbs implements the HTTP verbs of Access once for both generations
type verbs struct {
	*transport
	ep endpoint
}

func (v verbs) send(method string, path string, body *payload, withCredentials bool) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body.data)
	}

	req, err := http.NewRequest(method, v.ep.FullURL(path), reader)
	if err != nil {
		return nil, errors.Wrapf(err, "building %s request", method)
	}

	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}
	req.Header.Set("Accept", "application/json")

	x := exchange{
		client:   v.ep.authorize(req, withCredentials),
		dumpBody: body != nil && body.dump,
	}

	return v.do(req, x)
}

// Get performs a GET with credentials
func (v verbs) Get(path string) (*Response, error) {
	return v.send(http.MethodGet, path, nil, true)
}

// Head performs a HEAD, only attaching the credential when asked to
func (v verbs) Head(path string, withCredentials bool) (*Response, error) {
	return v.send(http.MethodHead, path, nil, withCredentials)
}

// Delete performs a DELETE with credentials
func (v verbs) Delete(path string) (*Response, error) {
	return v.send(http.MethodDelete, path, nil, true)
}

// Post performs a POST without a body
func (v verbs) Post(path string) (*Response, error) {
	return v.send(http.MethodPost, path, nil, true)
}

// PostJSON performs a POST with data encoded as JSON
func (v verbs) PostJSON(path string, data interface{}) (*Response, error) {
	body, err := jsonPayload(data)
	if err != nil {
		return nil, err
	}

	return v.send(http.MethodPost, path, body, true)
}

// PutJSON performs a PUT with data encoded as JSON
func (v verbs) PutJSON(path string, data interface{}) (*Response, error) {
	body, err := jsonPayload(data)
	if err != nil {
		return nil, err
	}

	return v.send(http.MethodPut, path, body, true)
}

// PostFile uploads a local file as multipart form field "file".  An empty
// mimeType means application/binary.
func (v verbs) PostFile(path string, fileName string, mimeType string) (*Response, error) {
	body, err := filePayload(fileName, mimeType)
	if err != nil {
		return nil, err
	}

	return v.send(http.MethodPost, path, body, true)
}

// DownloadFile streams the resource at path to localFileName.  The local
// file is only created once the platform has answered with success.
func (v verbs) DownloadFile(path string, localFileName string) (*Response, error) {
	v.Logger().Debugf("Downloading %q to file %q", path, localFileName)

	req, err := http.NewRequest(http.MethodGet, v.ep.FullURL(path), nil)
	if err != nil {
		return nil, errors.Wrap(err, "building download request")
	}

	x := exchange{
		client: v.ep.authorize(req, true),
		sink: func(r io.Reader) error {
			return writeChunks(r, localFileName)
		},
	}

	resp, err := v.do(req, x)
	if err != nil {
		return nil, err
	}

	v.Logger().Debugf("Downloaded %q to file %q", path, localFileName)
	return resp, nil
}
