package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mythtv_control/internal/frontend"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show frontend playback status",
	Long:  `Polls the frontend once and prints its state, media and volume.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	f, err := openFrontend()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
	defer cancel()
	f.Poll(ctx)

	printState(cmd, f.Snapshot())
	return nil
}

func printState(cmd *cobra.Command, s frontend.State) {
	out := cmd.OutOrStdout()
	if JSONOutput() {
		_ = writeJSON(out, s)
		return
	}

	t := NewTable(out)
	t.Row("Frontend", fmt.Sprintf("%s (%s:%d)", s.Name, s.Host, s.Port))
	t.Row("State", fmt.Sprintf("%s %s", StatusIcon(s.State.Active()), s.State))
	if s.State.Active() {
		t.Row("Title", s.MediaTitle)
		t.Row("Position", fmt.Sprintf("%s / %s", FormatDuration(s.MediaPosition), FormatDuration(s.MediaDuration)))
		if s.MediaImageURL != "" {
			t.Row("Artwork", s.MediaImageURL)
		}
	}
	if s.VolumeControllable {
		volume := fmt.Sprintf("%d%%", int(s.VolumeLevel*100+0.5))
		if s.IsVolumeMuted {
			volume += " (muted)"
		}
		t.Row("Volume", volume)
	}
	t.Flush()
}
