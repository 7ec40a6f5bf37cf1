package cli

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sandlbn/ultimate64-manager/session"
)

func newInfoCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "show device identification",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Disconnect()

			info := s.Info()
			version, _ := s.Client().Version(cmd.Context())

			pterm.DefaultTable.WithData(pterm.TableData{
				{"Product", info.Product},
				{"Firmware", info.FirmwareVersion},
				{"Core", info.CoreVersion},
				{"Hostname", info.Hostname},
				{"Unique ID", info.UniqueID},
				{"API version", version},
			}).Render()
			return nil
		},
	}
}

// newMachineCommands builds the flat machine-control verbs.
func newMachineCommands(opts *options) []*cobra.Command {
	type verb struct {
		use, short string
		fn         func(*session.Session, context.Context) error
	}

	verbs := []verb{
		{"pause", "freeze the machine", func(s *session.Session, ctx context.Context) error { return s.Pause(ctx) }},
		{"resume", "unfreeze the machine", func(s *session.Session, ctx context.Context) error { return s.Resume(ctx) }},
		{"reset", "reset the C64", func(s *session.Session, ctx context.Context) error { return s.Reset(ctx) }},
		{"reboot", "reboot the Ultimate firmware", func(s *session.Session, ctx context.Context) error { return s.Reboot(ctx) }},
		{"poweroff", "power the device down", func(s *session.Session, ctx context.Context) error { return s.PowerOff(ctx) }},
		{"menu", "press the Ultimate menu button", func(s *session.Session, ctx context.Context) error { return s.MenuButton(ctx) }},
	}

	cmds := make([]*cobra.Command, 0, len(verbs))
	for _, v := range verbs {
		cmds = append(cmds, &cobra.Command{
			Use:   v.use,
			Short: v.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.connect(cmd)
				if err != nil {
					return err
				}
				defer s.Disconnect()
				if err := v.fn(s, cmd.Context()); err != nil {
					return err
				}
				pterm.Success.Println(v.use + " ok")
				return nil
			},
		})
	}
	return cmds
}
