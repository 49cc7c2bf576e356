package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voxd/internal/control"
)

// The status/arm/trigger commands talk to a running daemon over its
// control socket.

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running daemon's state",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := send(control.Request{Op: control.OpStatus})
		if err != nil {
			return err
		}
		st := resp.Status
		if st == nil {
			return fmt.Errorf("daemon returned no status")
		}
		fmt.Printf("watching:         %v\n", st.Watching)
		fmt.Printf("default action:   %s\n", orNone(st.DefaultAction))
		fmt.Printf("auto-return:      %v\n", st.AutoReturnArmed)
		fmt.Printf("scheduled action: %s\n", orNone(st.ScheduledAction))
		return nil
	},
}

var (
	armAutoReturn bool
	armClear      bool
	armAction     string
)

var armCmd = &cobra.Command{
	Use:   "arm",
	Short: "Arm a one-shot override for the next session",
	Long: `Arm auto-return (--auto-return) or a named scheduled action
(--action NAME) for the next session only. Arming one clears the other.
--clear drops both.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case armClear:
			if _, err := send(control.Request{Op: control.OpArmScheduled, Arg: ""}); err != nil {
				return err
			}
			_, err := send(control.Request{Op: control.OpArmAutoReturn, Arg: "false"})
			return err
		case armAutoReturn:
			_, err := send(control.Request{Op: control.OpArmAutoReturn, Arg: "true"})
			return err
		case armAction != "":
			_, err := send(control.Request{Op: control.OpArmScheduled, Arg: armAction})
			return err
		default:
			return fmt.Errorf("one of --auto-return, --action, --clear required")
		}
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger <action>",
	Short: "Execute a configured action immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := send(control.Request{Op: control.OpExecuteAction, Arg: args[0]})
		return err
	},
}

func init() {
	armCmd.Flags().BoolVar(&armAutoReturn, "auto-return", false, "arm auto-return")
	armCmd.Flags().BoolVar(&armClear, "clear", false, "clear armed state")
	armCmd.Flags().StringVar(&armAction, "action", "", "arm a scheduled action by name")
}

func send(req control.Request) (control.Response, error) {
	cfg, err := loadConfig()
	if err != nil {
		return control.Response{}, err
	}
	return control.Send(cfg.SocketPath(), req)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
