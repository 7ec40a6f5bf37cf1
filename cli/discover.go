package cli

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sandlbn/ultimate64-manager/discover"
)

func newDiscoverCommand() *cobra.Command {
	var subnet string

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "scan the local network for Ultimate devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			spinner, _ := pterm.DefaultSpinner.Start("scanning...")
			devices, err := discover.Scan(cmd.Context(), nil, subnet)
			if err != nil {
				spinner.Fail(err.Error())
				return err
			}
			spinner.Stop()

			if len(devices) == 0 {
				pterm.Warning.Println("no devices found")
				return nil
			}

			data := pterm.TableData{{"IP", "Product", "Firmware"}}
			for _, d := range devices {
				data = append(data, []string{d.IP, d.Product, d.Firmware})
			}
			pterm.DefaultTable.WithHasHeader().WithData(data).Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&subnet, "subnet", "", `subnet prefix to scan, e.g. "192.168.1." (default: local /24)`)
	return cmd
}
