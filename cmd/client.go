package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jake-scott/avstudio/internal/pkg/session"
	"github.com/jake-scott/avstudio/pkg/avstudio"
)

// replaced in tests
var (
	_httpClient *http.Client
	_stdout     io.Writer = os.Stdout
)

var errNotLoggedIn = errors.New("not logged in, run `avstudio login` first")

func clientOptions() []avstudio.Option {
	opts := []avstudio.Option{
		avstudio.WithTimeout(viper.GetDuration("api.timeout")),
	}

	if _httpClient != nil {
		opts = append(opts, avstudio.WithHTTPClient(_httpClient))
	}

	return opts
}

func sessionFileName() (string, error) {
	if f := viper.GetString("session.file"); f != "" {
		return f, nil
	}

	return session.DefaultPath()
}

// loadSession reads the saved session; a missing file gives an empty state
func loadSession() (session.State, string, error) {
	state := session.NewState()

	fileName, err := sessionFileName()
	if err != nil {
		return state, "", err
	}

	if _, err := os.Stat(fileName); os.IsNotExist(err) {
		return state, fileName, nil
	}

	if err := state.Load(fileName); err != nil {
		return state, fileName, err
	}

	return state, fileName, nil
}

func generation() (int, error) {
	switch g := viper.GetInt("api.generation"); g {
	case 1, 2:
		return g, nil
	default:
		return 0, fmt.Errorf("unsupported API generation %d, use 1 or 2", g)
	}
}

// sessionAPI returns a generation 1 client restored from the saved session
func sessionAPI() (*avstudio.API, *session.State, error) {
	state, _, err := loadSession()
	if err != nil {
		return nil, nil, err
	}

	if state.Generation != 1 || !state.LoggedIn() {
		return nil, nil, errNotLoggedIn
	}

	api := avstudio.NewAPI(state.Host, clientOptions()...)
	if err := api.HTTP.RestoreSession(state.SessionID(), state.Team); err != nil {
		if avstudio.IsUnauthorized(err) {
			return nil, nil, errors.Wrap(errNotLoggedIn, "session expired")
		}
		return nil, nil, errors.Wrap(err, "restoring session")
	}

	return api, &state, nil
}

// tokenAPI returns a generation 2 client using the configured token, or
// the one saved by login
func tokenAPI() (*avstudio.API2, error) {
	token := viper.GetString("api.token")
	host := viper.GetString("api.host")

	if token == "" {
		state, _, err := loadSession()
		if err != nil {
			return nil, err
		}
		if state.Generation != 2 || !state.LoggedIn() {
			return nil, errNotLoggedIn
		}
		token = state.Token()
		host = state.Host
	}

	api := avstudio.NewAPI2(host, clientOptions()...)
	if err := api.SetAuthToken(token); err != nil {
		return nil, errors.Wrap(err, "validating token")
	}

	return api, nil
}

// devicesClient returns the device client of the configured generation
func devicesClient() (*avstudio.Devices, error) {
	gen, err := generation()
	if err != nil {
		return nil, err
	}

	if gen == 2 {
		api, err := tokenAPI()
		if err != nil {
			return nil, err
		}
		return api.Devices, nil
	}

	api, _, err := sessionAPI()
	if err != nil {
		return nil, err
	}

	return api.Devices, nil
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return errors.Wrap(err, "formatting result")
	}

	fmt.Fprintln(_stdout, string(b))
	return nil
}

// printRaw pretty prints a platform answer, falling back to the raw text
// when it is not JSON
func printRaw(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}

	if !json.Valid(raw) {
		fmt.Fprintln(_stdout, string(raw))
		return nil
	}

	return printJSON(raw)
}
