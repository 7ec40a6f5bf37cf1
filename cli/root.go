// Package cli implements the ultimate64-manager command tree: device
// discovery, machine control, disk and runner operations, device
// configuration, and stream capture.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/sandlbn/ultimate64-manager/config"
	"github.com/sandlbn/ultimate64-manager/session"
)

// options carries the resolved connection settings shared by all
// subcommands.
type options struct {
	cfg      *config.Config
	endpoint session.Endpoint
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	var (
		cfgPath  string
		host     string
		password string
		profile  string
	)
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "ultimate64-manager",
		Short:         "control and stream from Ultimate64/Ultimate-II+ devices",
		Long:          "ultimate64-manager talks to an Ultimate64 or Ultimate-II+ on the local network: machine control, disk mounting, program runners, device configuration, and live VIC/SID stream capture.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level:      cfg.SlogLevel(),
				TimeFormat: time.Kitchen,
			})))

			if profile != "" {
				store, err := config.NewProfileStore("")
				if err != nil {
					return err
				}
				p, err := store.Get(profile)
				if err != nil {
					return err
				}
				cfg.Host = p.Host
				if p.Password != "" {
					cfg.Password = p.Password
				}
				if p.VideoPort > 0 {
					cfg.VideoPort = p.VideoPort
				}
				if p.AudioPort > 0 {
					cfg.AudioPort = p.AudioPort
				}
			}
			if host != "" {
				cfg.Host = host
			}
			if password != "" {
				cfg.Password = password
			}

			opts.cfg = cfg
			opts.endpoint = session.Endpoint{
				Host:      cfg.Host,
				Password:  cfg.Password,
				VideoPort: cfg.VideoPort,
				AudioPort: cfg.AudioPort,
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "device address, host[:port]")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "device API password")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "use a named device profile")

	rootCmd.AddCommand(newDiscoverCommand())
	rootCmd.AddCommand(newInfoCommand(opts))
	rootCmd.AddCommand(newMachineCommands(opts)...)
	rootCmd.AddCommand(newMountCommand(opts))
	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newConfigCommand(opts))
	rootCmd.AddCommand(newStreamCommand(opts))
	rootCmd.AddCommand(newProfileCommand())

	return rootCmd
}

// requireHost fails early when no device address was resolved from
// flags, profile, or config file.
func (o *options) requireHost() error {
	if o.endpoint.Host == "" {
		return fmt.Errorf("no device host configured: pass --host, --profile, or set host in the config file")
	}
	return nil
}

// connect establishes a session against the configured endpoint.
func (o *options) connect(cmd *cobra.Command) (*session.Session, error) {
	if err := o.requireHost(); err != nil {
		return nil, err
	}
	s := session.New(nil)
	if _, err := s.Connect(cmd.Context(), o.endpoint); err != nil {
		return nil, err
	}
	return s, nil
}
