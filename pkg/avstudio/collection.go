package avstudio

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// Object is a resource as the platform describes it.  It is kept as a
// generic map so that fields this client knows nothing about survive a
// read-modify-write.
type Object map[string]interface{}

// ID returns the resource identifier
func (o Object) ID() string {
	return stringField(o, "Id")
}

// Name returns the resource display name
func (o Object) Name() string {
	return stringField(o, "Name")
}

// resourcePath joins path segments, escaping each one
func resourcePath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}

	return strings.Join(escaped, "/")
}

// withQuery appends the key/value pairs to path as a query string, in the
// order given
func withQuery(path string, pairs ...string) string {
	if len(pairs) == 0 {
		return path
	}

	params := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		params = append(params, url.QueryEscape(pairs[i])+"="+url.QueryEscape(pairs[i+1]))
	}

	return path + "?" + strings.Join(params, "&")
}

// Collection is a list of resources of one type, e.g. devices or scenes
type Collection struct {
	access Access
	path   string
	noun   string
}

// NewCollection returns a client for the resources under path; noun is
// the singular used in log messages
func NewCollection(access Access, path string, noun string) *Collection {
	return &Collection{
		access: access,
		path:   path,
		noun:   noun,
	}
}

// GetAll lists every resource in the collection
func (c *Collection) GetAll() ([]Object, error) {
	c.access.Logger().Infof("Getting all %s", c.path)

	resp, err := c.access.Get(c.path)
	if err != nil {
		return nil, err
	}

	var items []Object
	if err := resp.DecodeJSON(&items); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", c.path)
	}

	return items, nil
}

// Get fetches one resource
func (c *Collection) Get(id string) (Object, error) {
	if id == "" {
		return nil, errors.Errorf("empty %s id", c.noun)
	}

	c.access.Logger().Infof("Getting %s %s", c.noun, id)

	resp, err := c.access.Get(resourcePath(c.path, id))
	if err != nil {
		return nil, err
	}

	var item Object
	if err := resp.DecodeJSON(&item); err != nil {
		return nil, errors.Wrapf(err, "decoding %s %s", c.noun, id)
	}

	return item, nil
}

// Delete removes one resource, returning whatever the platform answers
func (c *Collection) Delete(id string) (json.RawMessage, error) {
	if id == "" {
		return nil, errors.Errorf("empty %s id", c.noun)
	}

	c.access.Logger().Infof("Deleting %s %s", c.noun, id)

	resp, err := c.access.Delete(resourcePath(c.path, id))
	if err != nil {
		return nil, err
	}

	return resp.RawJSON(), nil
}

// DeleteAll deletes the resources one at a time, in listed order.  The
// first failure is returned as is and the remaining resources are left
// in place.
func (c *Collection) DeleteAll() error {
	c.access.Logger().Infof("Deleting all %s", c.path)

	items, err := c.GetAll()
	if err != nil {
		return err
	}

	for _, item := range items {
		if item.ID() == "" {
			return errors.Errorf("%s without Id in listing", c.noun)
		}

		if _, err := c.Delete(item.ID()); err != nil {
			return err
		}
	}

	return nil
}
