package avstudio

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const (
	sessionCookieName = "KSESSIONID"
	inviteCookieName  = "invite-token"
	passwordParam     = "pwd"
)

// UserInfo is the platform's description of the authenticated user
type UserInfo map[string]interface{}

// ID returns the user identifier
func (u UserInfo) ID() string {
	return stringField(u, "ID")
}

// Name returns the user display name
func (u UserInfo) Name() string {
	return stringField(u, "Name")
}

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// sessionV1 is the mutable login state, shared by an AccessV1 and its
// unscoped view
type sessionV1 struct {
	username  string
	sessionID string
	team      string
	userInfo  UserInfo
}

// AccessV1 talks to the cookie authenticated, team scoped v1t API
type AccessV1 struct {
	verbs
	state  *sessionV1
	noTeam bool
}

// NewAccessV1 returns a logged out v1t transport for host
func NewAccessV1(host string, opts ...Option) *AccessV1 {
	a := &AccessV1{state: &sessionV1{}}
	a.verbs = verbs{transport: newTransport(host, "v1t", successV1, classifyV1, opts), ep: a}

	return a
}

// Unscoped returns a view of the same session whose relative paths are
// never placed below the current team
func (a *AccessV1) Unscoped() *AccessV1 {
	u := &AccessV1{state: a.state, noTeam: true}
	u.verbs = verbs{transport: a.transport, ep: u}

	return u
}

// BuildURL resolves path, placing relative paths below the current team
// unless there is none or noTeam is set
func (a *AccessV1) BuildURL(path string, noTeam bool) string {
	team := a.state.team
	if noTeam {
		team = ""
	}

	return a.buildURL(path, team)
}

// FullURL resolves path the way every verb of this view does
func (a *AccessV1) FullURL(path string) string {
	return a.BuildURL(path, a.noTeam)
}

func (a *AccessV1) authorize(req *http.Request, withCredentials bool) *http.Client {
	if withCredentials && a.state.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: a.state.sessionID})
	}

	return a.httpClient
}

// noRedirectClient is the configured client, minus redirect following
func (a *AccessV1) noRedirectClient() *http.Client {
	c := *a.httpClient
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &c
}

// Login authenticates username, replacing any existing session.  A
// non-empty inviteToken accepts a pending team invitation at the same time.
func (a *AccessV1) Login(username string, password string, inviteToken string) error {
	if username == "" {
		return ErrEmptyUsername
	}

	if a.state.userInfo != nil {
		a.Logger().Debug("Already logged in, logout first")
		if err := a.Logout(); err != nil {
			return errors.Wrap(err, "logging out previous session")
		}
	}

	a.state.username = username

	// The platform only accepts the password in the query string
	loginPath := "oauth/base/" + url.PathEscape(username) + "?" + url.Values{passwordParam: {password}}.Encode()
	if inviteToken != "" {
		loginPath += "&invite=yes"
	}

	req, err := http.NewRequest(http.MethodGet, a.BuildURL(loginPath, true), nil)
	if err != nil {
		return errors.Wrap(err, "building login request")
	}
	if inviteToken != "" {
		req.AddCookie(&http.Cookie{Name: inviteCookieName, Value: inviteToken})
	}

	a.Logger().Infof("Logging in as %s", username)

	resp, err := a.do(req, exchange{client: a.noRedirectClient(), secretParam: passwordParam, secret: password})
	if err != nil {
		return err
	}

	team, err := teamFromLocation(resp.Header.Get("Location"))
	if err != nil {
		return err
	}

	cookie, ok := resp.Cookie(sessionCookieName)
	if !ok || cookie.Value == "" {
		return errors.Errorf("login response carried no %s cookie", sessionCookieName)
	}

	a.state.team = team
	a.state.sessionID = cookie.Value

	_, err = a.GetUserInfo()
	return err
}

// teamFromLocation picks the team ID out of the login redirect, which looks
// like https://host/TEAMID#/...
func teamFromLocation(location string) (string, error) {
	if location == "" {
		return "", errors.New("login response has no Location header")
	}

	parts := strings.Split(location, "/")
	if len(parts) < 4 {
		return "", errors.Errorf("cannot find team in login redirect %q", location)
	}

	return strings.Trim(parts[3], "#"), nil
}

// Logout ends the session.  The current team is forgotten even if the
// platform refuses the logout; the cookie and user info only once it
// has accepted it.
func (a *AccessV1) Logout() error {
	a.state.team = ""
	a.Logger().Infof("Logging out as %s", a.state.username)

	req, err := http.NewRequest(http.MethodGet, a.BuildURL("oauth/logout", true), nil)
	if err != nil {
		return errors.Wrap(err, "building logout request")
	}

	client := a.noRedirectClient()
	if a.state.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: a.state.sessionID})
	}

	if _, err := a.do(req, exchange{client: client}); err != nil {
		return err
	}

	a.state.sessionID = ""
	a.state.userInfo = nil

	return nil
}

// GetUserInfo fetches and remembers the authenticated user
func (a *AccessV1) GetUserInfo() (UserInfo, error) {
	resp, err := a.Get("users/me")
	if err != nil {
		return nil, err
	}

	var info UserInfo
	if err := resp.DecodeJSON(&info); err != nil {
		return nil, errors.Wrap(err, "decoding user info")
	}

	a.state.userInfo = info
	return info, nil
}

// RestoreSession resumes a session saved from SessionID and CurrentTeam,
// checking it is still valid by fetching the user info
func (a *AccessV1) RestoreSession(sessionID string, team string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	a.state.sessionID = sessionID
	a.state.team = team

	if _, err := a.GetUserInfo(); err != nil {
		a.state.sessionID = ""
		a.state.team = ""
		return errors.Wrap(err, "restoring session")
	}

	return nil
}

// SessionID returns the session cookie value, empty when logged out
func (a *AccessV1) SessionID() string {
	return a.state.sessionID
}

// CurrentUserID returns the logged in user's ID; ok is false before login
func (a *AccessV1) CurrentUserID() (id string, ok bool) {
	if a.state.userInfo == nil {
		return "", false
	}

	return a.state.userInfo.ID(), true
}

// CurrentUserName returns the logged in user's name; ok is false before login
func (a *AccessV1) CurrentUserName() (name string, ok bool) {
	if a.state.userInfo == nil {
		return "", false
	}

	return a.state.userInfo.Name(), true
}

// CurrentTeam returns the team relative paths are scoped to
func (a *AccessV1) CurrentTeam() string {
	return a.state.team
}

// SetCurrentTeam overrides the team relative paths are scoped to
func (a *AccessV1) SetCurrentTeam(team string) {
	a.state.team = team
}
