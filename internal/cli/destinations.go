package cli

import (
	"github.com/spf13/cobra"
)

var destinationsCmd = &cobra.Command{
	Use:   "destinations",
	Short: "List configured destinations",
	Long:  `Display the destinations in catalog order. The first one is selected by default.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{logWriter: cmd.ErrOrStderr()})
		if err != nil {
			return err
		}
		defer a.Close()

		cat, err := loadCatalog(a.logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		dests := cat.Destinations()
		if jsonOutput {
			return outputJSON(out, dests)
		}

		if len(dests) == 0 {
			printWarning(out, "No destinations configured")
			return nil
		}

		printSection(out, "Destinations")
		for i, d := range dests {
			label := d.Name
			if i == 0 {
				label += " (default)"
			}
			printLabelValue(out, label, formatPosition(d.Position.X, d.Position.Y, d.Position.Z))
		}
		return nil
	},
}
