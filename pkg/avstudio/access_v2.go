package avstudio

import (
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// AccessV2 talks to the bearer token authenticated v2 API
type AccessV2 struct {
	verbs
	authClient *http.Client
	userInfo   UserInfo
}

// NewAccessV2 returns a v2 transport for host with no token set
func NewAccessV2(host string, opts ...Option) *AccessV2 {
	a := &AccessV2{}
	a.verbs = verbs{transport: newTransport(host, "v2", successV2, classifyV2, opts), ep: a}

	return a
}

// FullURL resolves path under the v2 API, or against the host when absolute
func (a *AccessV2) FullURL(path string) string {
	return a.buildURL(path, "")
}

func (a *AccessV2) authorize(req *http.Request, withCredentials bool) *http.Client {
	if withCredentials && a.authClient != nil {
		return a.authClient
	}

	return a.httpClient
}

// SetAuthToken installs the bearer token for all further requests and
// validates it straight away by fetching the user info
func (a *AccessV2) SetAuthToken(token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	base := a.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	authClient := *a.httpClient
	authClient.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		Base:   base,
	}
	a.authClient = &authClient
	a.userInfo = nil

	_, err := a.GetUserInfo()
	return err
}

// GetUserInfo fetches and remembers the user the token belongs to
func (a *AccessV2) GetUserInfo() (UserInfo, error) {
	resp, err := a.Get("users/me")
	if err != nil {
		return nil, err
	}

	var info UserInfo
	if err := resp.DecodeJSON(&info); err != nil {
		return nil, errors.Wrap(err, "decoding user info")
	}

	a.userInfo = info
	return info, nil
}

// CurrentUserID returns the token owner's ID; ok is false until a token
// has been validated
func (a *AccessV2) CurrentUserID() (id string, ok bool) {
	if a.userInfo == nil {
		return "", false
	}

	return a.userInfo.ID(), true
}

// CurrentUserName returns the token owner's name; ok is false until a
// token has been validated
func (a *AccessV2) CurrentUserName() (name string, ok bool) {
	if a.userInfo == nil {
		return "", false
	}

	return a.userInfo.Name(), true
}
