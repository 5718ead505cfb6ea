package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/avstudio/internal/pkg/logging"
	"github.com/jake-scott/avstudio/internal/pkg/session"
	"github.com/jake-scott/avstudio/pkg/avstudio"
)

var (
	_cfgFile string
	_debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "avstudio",
	Short: "Manage AV Studio devices and media from the command line",

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Configure(viper.GetViper())
	},
}

// Execute runs the command named on the command line
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	viper.SetDefault("api.host", avstudio.DefaultHost)
	viper.SetDefault("api.generation", 1)
	viper.SetDefault("api.timeout", time.Second*30)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&_cfgFile, "config", "", "config file (default is $HOME/.avstudio.yaml)")
	pf.BoolVar(&_debug, "debug", false, "log HTTP exchanges and other debug output")
	pf.String("host", avstudio.DefaultHost, "platform host name")
	pf.Int("generation", 1, "API generation: 1 (session login) or 2 (token)")
	pf.String("token", "", "bearer token for generation 2")
	pf.Duration("timeout", time.Second*30, "maximum duration of one API call, eg. 1m or 10s")
	pf.String("session-file", "", "file to keep the login session in (default is $HOME/"+session.DefaultFileName+")")
	pf.String("log-level", "warning", "log level: panic, fatal, error, warning, info, debug or trace")
	pf.String("log-location", "stderr", "log to stderr, stdout or a file name")
	pf.String("log-format", "text", "log format: text or json")

	errPanic(viper.GetViper().BindPFlag("api.host", pf.Lookup("host")))
	errPanic(viper.GetViper().BindPFlag("api.generation", pf.Lookup("generation")))
	errPanic(viper.GetViper().BindPFlag("api.token", pf.Lookup("token")))
	errPanic(viper.GetViper().BindPFlag("api.timeout", pf.Lookup("timeout")))
	errPanic(viper.GetViper().BindPFlag("session.file", pf.Lookup("session-file")))
	errPanic(viper.GetViper().BindPFlag("logging.level", pf.Lookup("log-level")))
	errPanic(viper.GetViper().BindPFlag("logging.location", pf.Lookup("log-location")))
	errPanic(viper.GetViper().BindPFlag("logging.format", pf.Lookup("log-format")))
}

// initConfig reads the config file and AVSTUDIO_* environment variables
func initConfig() {
	if _debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if _cfgFile != "" {
		viper.SetConfigFile(_cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			logging.Logger(nil).WithError(err).Warn("cannot locate home directory, no config file read")
		} else {
			viper.AddConfigPath(home)
			viper.SetConfigName(".avstudio")
			viper.SetConfigType("yaml")
		}
	}

	viper.SetEnvPrefix("avstudio")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || _cfgFile != "" {
			logging.Logger(nil).WithError(err).Warn("reading config file")
		}
		return
	}

	logging.Logger(nil).Debugf("Using config file %s", viper.ConfigFileUsed())
}

func errPanic(err error) {
	if err != nil {
		panic(err)
	}
}

func checkRequiredFlags(needFlags ...string) error {
	missingFlags := []string{}

	for _, f := range needFlags {
		if !viper.IsSet(f) || viper.GetString(f) == "" {
			missingFlags = append(missingFlags, f)
		}
	}

	if len(missingFlags) > 0 {
		itemPlural := "item"
		if len(missingFlags) > 1 {
			itemPlural = "items"
		}
		return fmt.Errorf("required config %s `%s` not set", itemPlural, strings.Join(missingFlags, "`, `"))
	}

	return nil
}
