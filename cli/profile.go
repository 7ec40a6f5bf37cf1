package cli

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sandlbn/ultimate64-manager/config"
)

func newProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "manage named device profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list saved profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.NewProfileStore("")
			if err != nil {
				return err
			}
			profiles, err := store.Load()
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				pterm.Info.Println("no profiles saved")
				return nil
			}
			data := pterm.TableData{{"Name", "Host", "Video port"}}
			for _, p := range profiles {
				port := ""
				if p.VideoPort > 0 {
					port = fmt.Sprintf("%d", p.VideoPort)
				}
				data = append(data, []string{p.Name, p.Host, port})
			}
			pterm.DefaultTable.WithHasHeader().WithData(data).Render()
			return nil
		},
	})

	var (
		password  string
		videoPort int
		audioPort int
	)
	add := &cobra.Command{
		Use:   "add <name> <host>",
		Short: "save or replace a profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.NewProfileStore("")
			if err != nil {
				return err
			}
			p := config.Profile{
				Name:      args[0],
				Host:      args[1],
				Password:  password,
				VideoPort: videoPort,
				AudioPort: audioPort,
			}
			if err := store.Put(p); err != nil {
				return err
			}
			pterm.Success.Printfln("profile %s -> %s", p.Name, p.Host)
			return nil
		},
	}
	add.Flags().StringVar(&password, "password", "", "device API password")
	add.Flags().IntVar(&videoPort, "video-port", 0, "local UDP port for video")
	add.Flags().IntVar(&audioPort, "audio-port", 0, "local UDP port for audio")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: "delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.NewProfileStore("")
			if err != nil {
				return err
			}
			if err := store.Remove(args[0]); err != nil {
				return err
			}
			pterm.Success.Printfln("removed profile %s", args[0])
			return nil
		},
	})

	return cmd
}
