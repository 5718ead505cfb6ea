// Package avstudio is a client for the AV Studio device management and
// media review API, covering both the session (v1t) and token (v2)
// generations of the platform.
package avstudio

// API is the entry point to the session authenticated, team scoped (v1t)
// generation of the platform
type API struct {
	HTTP    *AccessV1
	Devices *Devices
	Scenes  *Collection
	Assets  *Collection
}

// NewAPI returns a logged out client for host
func NewAPI(host string, opts ...Option) *API {
	if host == "" {
		host = DefaultHost
	}

	access := NewAccessV1(host, opts...)

	return &API{
		HTTP:    access,
		Devices: NewDevices(access),
		Scenes:  NewCollection(access, "scenes", "scene"),
		Assets:  NewCollection(access, "assets", "asset"),
	}
}

// Login authenticates the user; inviteToken may be empty
func (a *API) Login(username string, password string, inviteToken string) error {
	return a.HTTP.Login(username, password, inviteToken)
}

// Logout ends the session
func (a *API) Logout() error {
	return a.HTTP.Logout()
}

// CurrentUserID returns the logged in user's ID; ok is false before login
func (a *API) CurrentUserID() (string, bool) {
	return a.HTTP.CurrentUserID()
}

// CurrentUserName returns the logged in user's name; ok is false before login
func (a *API) CurrentUserName() (string, bool) {
	return a.HTTP.CurrentUserName()
}

// CurrentTeam returns the team requests are scoped to
func (a *API) CurrentTeam() string {
	return a.HTTP.CurrentTeam()
}

// SetCurrentTeam switches the team requests are scoped to
func (a *API) SetCurrentTeam(team string) {
	a.HTTP.SetCurrentTeam(team)
}

type deleter interface {
	DeleteAll() error
}

// DeleteAll empties the scenes, devices and assets of the current team,
// in that order, stopping at the first failure
func (a *API) DeleteAll() error {
	for _, r := range []deleter{a.Scenes, a.Devices, a.Assets} {
		if err := r.DeleteAll(); err != nil {
			return err
		}
	}

	return nil
}

// API2 is the entry point to the token authenticated (v2) generation of
// the platform
type API2 struct {
	HTTP    *AccessV2
	Devices *Devices
}

// NewAPI2 returns a client for host, which defaults to DefaultHost
func NewAPI2(host string, opts ...Option) *API2 {
	if host == "" {
		host = DefaultHost
	}

	access := NewAccessV2(host, opts...)

	return &API2{
		HTTP:    access,
		Devices: NewDevices(access),
	}
}

// SetAuthToken sets and validates the bearer token
func (a *API2) SetAuthToken(token string) error {
	return a.HTTP.SetAuthToken(token)
}
