// Package cli implements trendctl, the operator and developer command line for trendpush.
package cli

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/trendpush/trendpush/internal/config"
)

type rootOptions struct {
	configPath string
	verbose    bool
	version    string
}

// NewRootCommand builds the trendctl command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{version: version}

	root := &cobra.Command{
		Use:   "trendctl",
		Short: "Send trend events and inspect notifications",
		Long: `trendctl submits trend events to a trendpush API or straight to the
configured push backend, renders delivered payloads the way the mobile
receiver displays them, and manages device tokens for development.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", config.Path(), "config file path")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newSendCmd(opts),
		newReceiveCmd(opts),
		newIdentityCmd(),
		newRegisterTokenCmd(opts),
		newDevTokenCmd(opts),
		newVersionCmd(opts),
	)

	return root
}

// Execute runs trendctl with the process arguments.
func Execute(version string) error {
	return NewRootCommand(version).Execute()
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logger writes human readable logs to w; debug level with --verbose.
func (o *rootOptions) logger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := zerolog.WarnLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
