package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"mythtv_control/internal/notify"
)

var (
	notifyTitle  string
	notifyOrigin string
)

var notifyCmd = &cobra.Command{
	Use:   "notify <message>",
	Short: "Show a notification on a frontend",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNotify,
}

func init() {
	notifyCmd.Flags().StringVar(&notifyTitle, "title", notify.DefaultTitle, "notification title")
	notifyCmd.Flags().StringVar(&notifyOrigin, "origin", notify.DefaultOrigin, "notification origin line")
	rootCmd.AddCommand(notifyCmd)
}

func runNotify(cmd *cobra.Command, args []string) error {
	f, err := openFrontend()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
	defer cancel()
	notify.NewSender(f.API(), notifyOrigin).Send(ctx, strings.Join(args, " "), notifyTitle)
	return nil
}
