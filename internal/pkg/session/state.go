package session

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"

	"github.com/jake-scott/avstudio/internal/pkg/logging"
)

// DefaultFileName is the session file below the user's home directory
const DefaultFileName = ".avstudio-session.json"

// State is what the CLI remembers between invocations: the session of a
// generation 1 login or the token of a generation 2 one
type State struct {
	Generation int
	Host       string
	Team       string
	Username   string
	SavedAt    time.Time

	// non-exported
	sessionID string
	token     string
	ctx       context.Context
	fileName  string
}

// Version of state that we marshal/unmarshal
type stateMarshal struct {
	Generation int       `json:"generation"`
	Host       string    `json:"host"`
	Team       string    `json:"team,omitempty"`
	Username   string    `json:"username,omitempty"`
	SessionID  string    `json:"session-id,omitempty"`
	Token      string    `json:"token,omitempty"`
	SavedAt    time.Time `json:"saved-at"`
}

func hashOf(s string) string {
	if s == "" {
		return ""
	}

	sum := sha1.Sum([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// obfuscate credentials when stringified
//
func (s State) String() string {
	return fmt.Sprintf("Generation [%d], Host [%s], Team [%s], Username [%s], sessionID [%s], token [%s], SavedAt [%s]",
		s.Generation, s.Host, s.Team, s.Username, hashOf(s.sessionID), hashOf(s.token), s.SavedAt)
}

func NewState() State {
	return State{
		ctx: context.Background(),
	}
}

func (s State) WithContext(ctx context.Context) State {
	s.ctx = ctx
	return s
}

// WithSession records a generation 1 login
func (s State) WithSession(sessionID string, team string) State {
	s.Generation = 1
	s.sessionID = sessionID
	s.Team = team
	return s
}

// WithToken records a generation 2 bearer token
func (s State) WithToken(token string) State {
	s.Generation = 2
	s.token = token
	return s
}

func (s State) SessionID() string {
	return s.sessionID
}

func (s State) Token() string {
	return s.token
}

// LoggedIn reports whether the state holds a credential for its generation
func (s State) LoggedIn() bool {
	switch s.Generation {
	case 1:
		return s.sessionID != ""
	case 2:
		return s.token != ""
	}

	return false
}

// DefaultPath returns the session file in the user's home directory
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "locating home directory")
	}

	return filepath.Join(home, DefaultFileName), nil
}

func (s *State) Save(fileName string) error {
	s.SavedAt = time.Now().UTC()

	sm := stateMarshal{
		Generation: s.Generation,
		Host:       s.Host,
		Team:       s.Team,
		Username:   s.Username,
		SessionID:  s.sessionID,
		Token:      s.token,
		SavedAt:    s.SavedAt,
	}

	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrapf(err, "opening avstudio session %s for write", fileName)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(sm); err != nil {
		return errors.Wrapf(err, "saving avstudio session to %s", fileName)
	}

	logging.Logger(s.ctx).Debugf("Saved session: %s", s)

	// Store for later use
	s.fileName = fileName
	return nil
}

// Update rewrites the file the state was loaded from or last saved to
func (s *State) Update() error {
	if s.fileName != "" {
		return s.Save(s.fileName)
	}

	logging.Logger(s.ctx).Warn("cannot save avstudio session, no file name available")
	return nil
}

func (s *State) Load(fileName string) error {
	sm := stateMarshal{}

	file, err := os.OpenFile(fileName, os.O_RDONLY, 0600)
	if err != nil {
		return errors.Wrapf(err, "opening avstudio session %s for read", fileName)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&sm); err != nil {
		return errors.Wrapf(err, "loading avstudio session from %s", fileName)
	}

	s.Generation = sm.Generation
	s.Host = sm.Host
	s.Team = sm.Team
	s.Username = sm.Username
	s.SavedAt = sm.SavedAt
	s.sessionID = sm.SessionID
	s.token = sm.Token

	// Store for later use
	s.fileName = fileName

	logging.Logger(s.ctx).Debugf("Loaded session: %s", s)
	return nil
}

// Remove deletes the session file; a missing file is not an error
func Remove(fileName string) error {
	if err := os.Remove(fileName); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing avstudio session %s", fileName)
	}

	return nil
}
