package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/trendpush/trendpush/internal/mobile"
)

func newReceiveCmd(root *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "receive [payload.json]",
		Short: "Render a delivered push payload as the device would display it",
		Long: `Reads a push payload, either the bare delivery or an FCM {"message": ...}
envelope, and prints the local notification the mobile receiver builds from it.
Without an argument the payload is read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				file = args[0]
			}

			var (
				data []byte
				err  error
			)
			if file == "" || file == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("reading payload: %w", err)
			}

			payload, err := mobile.ParsePayload(data)
			if err != nil {
				return err
			}

			receiver := mobile.NewReceiver(mobile.ReceiverConfig{
				Platform: mobile.NewTray(),
				Logger:   root.logger(cmd.ErrOrStderr()),
			})
			n, err := receiver.OnDelivered(cmd.Context(), payload)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(n)
		},
	}

	return cmd
}
