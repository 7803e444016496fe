package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mythtv_control/internal/command"
)

var actionCmd = &cobra.Command{
	Use:   "action <ACTION> [value]",
	Short: "Send a command or raw action to a frontend",
	Long: `Sends a media player command (play, pause, volume_set, seek, ...) or,
for anything else, the upper-cased name as a raw Frontend/SendAction action
such as MENU or SYSEVENT01.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAction,
}

func init() {
	rootCmd.AddCommand(actionCmd)
}

func isCommand(name string) bool {
	for _, n := range command.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func runAction(cmd *cobra.Command, args []string) error {
	f, err := openFrontend()
	if err != nil {
		return err
	}

	var value float64
	hasValue := len(args) == 2
	if hasValue {
		if value, err = strconv.ParseFloat(args[1], 64); err != nil {
			return fmt.Errorf("invalid value %q: %w", args[1], err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 4*timeout)
	defer cancel()

	// commands act on the current state, so read it first
	f.Poll(ctx)

	name := strings.ToLower(args[0])
	if isCommand(name) {
		if err := command.Dispatch(ctx, f, name, value); err != nil {
			return err
		}
	} else {
		var v *int
		if hasValue {
			n := int(value)
			v = &n
		}
		if _, err := f.SendAction(ctx, strings.ToUpper(args[0]), v); err != nil {
			return err
		}
	}

	printState(cmd, f.Snapshot())
	return nil
}
