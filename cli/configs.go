package cli

import (
	"fmt"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newConfigCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "inspect and edit device configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "categories",
		Short: "list configuration categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Disconnect()

			cats, err := s.Client().ConfigCategories(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range cats {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <category>",
		Short: "show all items in a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Disconnect()

			items, err := s.Client().ConfigCategory(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			names := make([]string, 0, len(items))
			for name := range items {
				names = append(names, name)
			}
			sort.Strings(names)

			data := pterm.TableData{{"Item", "Value", "Default"}}
			for _, name := range names {
				item := items[name]
				data = append(data, []string{
					name,
					fmt.Sprintf("%v", item.Value),
					fmt.Sprintf("%v", item.Default),
				})
			}
			pterm.DefaultTable.WithHasHeader().WithData(data).Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <category> <item>",
		Short: "show one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Disconnect()

			item, err := s.Client().ConfigValue(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%v\n", item.Value)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <category> <item> <value>",
		Short: "change one setting",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Disconnect()

			changes := map[string]map[string]any{
				args[0]: {args[1]: args[2]},
			}
			if err := s.Client().SetConfigs(cmd.Context(), changes); err != nil {
				return err
			}
			pterm.Success.Printfln("%s/%s = %s", args[0], args[1], args[2])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save",
		Short: "persist device configuration to flash",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Disconnect()
			if err := s.Client().SaveConfigToFlash(cmd.Context()); err != nil {
				return err
			}
			pterm.Success.Println("configuration saved to flash")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "load",
		Short: "reload device configuration from flash",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Disconnect()
			if err := s.Client().LoadConfigFromFlash(cmd.Context()); err != nil {
				return err
			}
			pterm.Success.Println("configuration loaded from flash")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "factory-reset",
		Short: "reset device configuration to factory defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.Disconnect()
			if err := s.Client().ResetConfigToDefault(cmd.Context()); err != nil {
				return err
			}
			pterm.Success.Println("configuration reset to defaults")
			return nil
		},
	})

	return cmd
}
