package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"mythtv_control/internal/backend"
)

var frontendsCmd = &cobra.Command{
	Use:   "frontends",
	Short: "List online frontends known to the backend",
	Args:  cobra.NoArgs,
	RunE:  runFrontends,
}

var tunersCmd = &cobra.Command{
	Use:   "tuners",
	Short: "List tuners and their connectivity",
	Args:  cobra.NoArgs,
	RunE:  runTuners,
}

func init() {
	rootCmd.AddCommand(frontendsCmd)
	rootCmd.AddCommand(tunersCmd)
}

func runFrontends(cmd *cobra.Command, args []string) error {
	be, err := openBackend()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
	defer cancel()

	frontends, err := be.GetFrontends(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		if frontends == nil {
			frontends = []backend.FrontendInfo{}
		}
		return writeJSON(out, frontends)
	}
	t := NewTable(out, "NAME", "ADDRESS", "PORT")
	for _, fe := range frontends {
		t.Row(fe.Name, fe.IP, strconv.Itoa(fe.Port))
	}
	t.Flush()
	return nil
}

func runTuners(cmd *cobra.Command, args []string) error {
	be, err := openBackend()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
	defer cancel()

	tuners, err := be.Tuners(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		if tuners == nil {
			tuners = []backend.Tuner{}
		}
		return writeJSON(out, tuners)
	}
	t := NewTable(out, "", "NAME", "ENCODER", "HOST")
	for _, tu := range tuners {
		t.Row(StatusIcon(tu.Connected), tu.Name, strconv.Itoa(tu.Encoder), tu.Host)
	}
	t.Flush()
	return nil
}
