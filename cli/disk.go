package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sandlbn/ultimate64-manager/rest"
)

func newMountCommand(opts *options) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "mount <drive> <image>",
		Short: "mount a disk image on drive a or b",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			drive, image := args[0], args[1]
			if drive != "a" && drive != "b" {
				return fmt.Errorf("drive must be a or b, got %q", drive)
			}

			var m rest.MountMode
			switch mode {
			case "rw":
				m = rest.MountReadWrite
			case "ro":
				m = rest.MountReadOnly
			case "unlinked":
				m = rest.MountUnlinked
			default:
				return fmt.Errorf("mode must be rw, ro, or unlinked, got %q", mode)
			}

			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Disconnect()

			if err := s.Client().MountDisk(cmd.Context(), drive, image, m); err != nil {
				return err
			}
			pterm.Success.Printfln("mounted %s on drive %s (%s)", image, drive, mode)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "rw", "mount mode: rw, ro, or unlinked")
	return cmd
}

// runnerForFile picks the device runner endpoint from the file extension.
func runnerForFile(path string) (rest.Runner, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".prg":
		return rest.RunPrg, nil
	case ".crt":
		return rest.RunCrt, nil
	case ".sid":
		return rest.SidPlay, nil
	case ".mod":
		return rest.ModPlay, nil
	default:
		return "", fmt.Errorf("cannot pick a runner for %q: expected .prg, .crt, .sid, or .mod", path)
	}
}

func newRunCommand(opts *options) *cobra.Command {
	var runner string

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "run a program, cartridge, or music file already on the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]

			var r rest.Runner
			var err error
			switch runner {
			case "":
				if r, err = runnerForFile(file); err != nil {
					return err
				}
			case "prg":
				r = rest.RunPrg
			case "crt":
				r = rest.RunCrt
			case "sid":
				r = rest.SidPlay
			case "mod":
				r = rest.ModPlay
			default:
				return fmt.Errorf("runner must be prg, crt, sid, or mod, got %q", runner)
			}

			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Disconnect()

			if err := s.Client().Run(cmd.Context(), r, file); err != nil {
				return err
			}
			pterm.Success.Printfln("running %s", file)
			return nil
		},
	}
	cmd.Flags().StringVar(&runner, "runner", "", "force a runner: prg, crt, sid, or mod (default: by extension)")
	return cmd
}
