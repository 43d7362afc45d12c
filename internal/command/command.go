package command

import (
	"io"
	"sync"

	"nts/internal/logging"
	"nts/pkg/config"

	"github.com/spf13/cobra"
)

var (
	configPath string
	overrides  map[string]string
	logOpts    = logging.DefaultOptions()
	logCloser  io.Closer

	loadOnce sync.Once
	loaded   config.Configuration
)

var root = cobra.Command{
	Use:          "nts",
	Short:        "Build, send, capture and parse network test frames",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		closer, err := logging.Setup(logOpts)
		if err != nil {
			return err
		}
		logCloser = closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func init() {
	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "configuration file (json, yaml or toml)")
	flags.StringToStringVar(&overrides, "set", nil, "override a configuration key, e.g. --set Protocols.Ipv4.TTL=32")
	flags.StringVar(&logOpts.Level, "log-level", logOpts.Level, "log level: trace, debug, info, warn, error")
	flags.StringVar(&logOpts.Format, "log-format", logOpts.Format, "log format: text or json")
	flags.StringVar(&logOpts.File.Filename, "log-file", "", "also write logs to this file, rotated")
}

func Register(sub *cobra.Command) {
	root.AddCommand(sub)
}

func Execute() error {
	return root.Execute()
}

// Config returns the configuration named by --config with --set overrides
// on top. Problems with the file are logged and leave the defaults in place.
func Config() config.Configuration {
	loadOnce.Do(func() {
		composite := config.NewComposite(config.Load(configPath))
		if len(overrides) > 0 {
			m := config.Map{}
			for k, v := range overrides {
				m[k] = v
			}
			composite.Push(m)
		}
		loaded = composite
	})
	return loaded
}
