package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trendpush/trendpush/internal/mobile"
)

func newIdentityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identity <contentId>...",
		Short: "Print the notification id a device uses for each content id",
		Long: `Deliveries with the same content id share a notification id, so a later
delivery replaces the earlier one in the tray.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			for _, id := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", id, mobile.IdentityOf(id))
			}
		},
	}
}
