package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scigolib/mat73"
)

// exitError is the process status for any failed command.
const exitError = 1

// app is the state shared by subcommands, set up before each run.
type app struct {
	configFile string
	jsonOut    bool

	cfg  *viper.Viper
	log  *slog.Logger
	opts []mat73.Option
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "mat73",
		Short: "Inspect MATLAB v7.3 MAT-files",
		Long: `mat73 lists and prints the variables of MATLAB v7.3 MAT-files
(HDF5 based) without a MATLAB installation, including timeseries objects.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default: ./mat73.yaml or $XDG_CONFIG_HOME/mat73/mat73.yaml)")
	pf.BoolVar(&a.jsonOut, "json", false, "output as JSON")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.String("strategy", "", "timeseries allocation: auto, alternating, shape-match")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newListCmd(a))
	root.AddCommand(newShowCmd(a))
	root.AddCommand(newDumpCmd())
	return root
}

// setup loads the configuration, applies flag overrides and builds the
// logger and reader options.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configFile)
	if err != nil {
		return err
	}
	pf := cmd.Flags()
	for key, flag := range map[string]string{
		cfgKeyLogLevel:  "log-level",
		cfgKeyLogFormat: "log-format",
		cfgKeyStrategy:  "strategy",
	} {
		if f := pf.Lookup(flag); f != nil && f.Changed {
			cfg.Set(key, f.Value.String())
		}
	}

	a.cfg = cfg
	a.log = newLogger(cfg.GetString(cfgKeyLogLevel), cfg.GetString(cfgKeyLogFormat), cmd.ErrOrStderr())
	opts, err := readerOptions(cfg)
	if err != nil {
		return err
	}
	a.opts = append(opts, mat73.WithLogger(a.log))
	return nil
}

// open opens a MAT-file with the configured options.
func (a *app) open(path string) (*mat73.File, error) {
	return mat73.Open(path, a.opts...)
}
