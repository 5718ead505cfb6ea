package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/avstudio/internal/pkg/logging"
	"github.com/jake-scott/avstudio/internal/pkg/session"
	"github.com/jake-scott/avstudio/pkg/avstudio"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and remember the session",
	Long: `Log in and remember the session.

Generation 1 logs in with a user name and password, optionally accepting
a team invitation.  Generation 2 validates the configured token.`,
	Args: cobra.NoArgs,

	PreRunE: func(cmd *cobra.Command, args []string) error {
		gen, err := generation()
		if err != nil {
			return err
		}
		if gen == 2 {
			return checkRequiredFlags("api.token")
		}
		return checkRequiredFlags("auth.username", "auth.password")
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return doLogin()
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and forget it",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		return doLogout()
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		return doWhoami()
	},
}

var teamCmd = &cobra.Command{
	Use:   "team [team-id]",
	Short: "Show or switch the team requests are scoped to (generation 1)",
	Args:  cobra.MaximumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		team := ""
		if len(args) == 1 {
			team = args[0]
		}
		return doTeam(team)
	},
}

func init() {
	loginCmd.Flags().String("username", "", "user name (generation 1)")
	loginCmd.Flags().String("password", "", "password (generation 1)")
	loginCmd.Flags().String("invite-token", "", "team invitation to accept while logging in")

	errPanic(viper.GetViper().BindPFlag("auth.username", loginCmd.Flags().Lookup("username")))
	errPanic(viper.GetViper().BindPFlag("auth.password", loginCmd.Flags().Lookup("password")))
	errPanic(viper.GetViper().BindPFlag("auth.invite-token", loginCmd.Flags().Lookup("invite-token")))

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, teamCmd)
}

func doLogin() error {
	fileName, err := sessionFileName()
	if err != nil {
		return err
	}

	gen, _ := generation()
	host := viper.GetString("api.host")
	state := session.NewState()
	state.Host = host

	if gen == 2 {
		api, err := tokenAPI()
		if err != nil {
			return err
		}

		name, _ := api.HTTP.CurrentUserName()
		state = state.WithToken(viper.GetString("api.token"))
		state.Username = name
		if err := state.Save(fileName); err != nil {
			return err
		}

		fmt.Fprintf(_stdout, "Logged in as %s\n", name)
		return nil
	}

	username := viper.GetString("auth.username")

	api := avstudio.NewAPI(host, clientOptions()...)
	if err := api.Login(username, viper.GetString("auth.password"), viper.GetString("auth.invite-token")); err != nil {
		return errors.Wrapf(err, "logging in as %s", username)
	}

	state = state.WithSession(api.HTTP.SessionID(), api.CurrentTeam())
	state.Username = username
	if err := state.Save(fileName); err != nil {
		return err
	}

	fmt.Fprintf(_stdout, "Logged in as %s, team %s\n", username, api.CurrentTeam())
	return nil
}

func doLogout() error {
	state, fileName, err := loadSession()
	if err != nil {
		return err
	}

	if state.Generation == 1 && state.LoggedIn() {
		api := avstudio.NewAPI(state.Host, clientOptions()...)
		if err := api.HTTP.RestoreSession(state.SessionID(), state.Team); err != nil {
			logging.Logger(nil).WithError(err).Info("session already gone on the platform")
		} else if err := api.Logout(); err != nil {
			return errors.Wrap(err, "logging out")
		}
	}

	if err := session.Remove(fileName); err != nil {
		return err
	}

	fmt.Fprintln(_stdout, "Logged out")
	return nil
}

type whoami struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Team string `json:"team,omitempty"`
}

func doWhoami() error {
	gen, err := generation()
	if err != nil {
		return err
	}

	var w whoami
	if gen == 2 {
		api, err := tokenAPI()
		if err != nil {
			return err
		}
		w.ID, _ = api.HTTP.CurrentUserID()
		w.Name, _ = api.HTTP.CurrentUserName()
	} else {
		api, _, err := sessionAPI()
		if err != nil {
			return err
		}
		w.ID, _ = api.CurrentUserID()
		w.Name, _ = api.CurrentUserName()
		w.Team = api.CurrentTeam()
	}

	return printJSON(w)
}

func doTeam(team string) error {
	api, state, err := sessionAPI()
	if err != nil {
		return err
	}

	if team == "" {
		fmt.Fprintln(_stdout, api.CurrentTeam())
		return nil
	}

	api.SetCurrentTeam(team)
	state.Team = team
	if err := state.Update(); err != nil {
		return err
	}

	fmt.Fprintf(_stdout, "Switched to team %s\n", team)
	return nil
}
