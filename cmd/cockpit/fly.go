package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/einherij/cockpit/pkg/commander"
	"github.com/einherij/cockpit/pkg/config"
)

// newFlyCommand builds the one-shot command surface: the same operations the
// panel buttons issue, driven from a terminal instead.
func newFlyCommand(cfgPath *string) *cobra.Command {
	fly := &cobra.Command{
		Use:   "fly",
		Short: "Send a one-shot command to the drone backend",
	}

	runOp := func(op func(ctx context.Context, cmdr *commander.Commander, args []string) (*commander.Result, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			config.InitLogging(cfg.Logging)
			cmdr := commander.New(cfg.Backend.URL, &http.Client{Timeout: cfg.Backend.Timeout()})
			res, err := op(cmd.Context(), cmdr, args)
			if err != nil {
				return err
			}
			cmd.Println(res.Message)
			return nil
		}
	}

	simple := func(use, short string, op func(*commander.Commander, context.Context) (*commander.Result, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: runOp(func(ctx context.Context, cmdr *commander.Commander, _ []string) (*commander.Result, error) {
				return op(cmdr, ctx)
			}),
		}
	}

	fly.AddCommand(
		simple("connect", "Connect the backend to the drone", (*commander.Commander).Connect),
		simple("disconnect", "Disconnect the backend from the drone", (*commander.Commander).Disconnect),
		simple("takeoff", "Take off", (*commander.Commander).TakeOff),
		simple("land", "Land", (*commander.Commander).Land),
		simple("emergency", "Cut the motors immediately", (*commander.Commander).Emergency),
	)

	fly.AddCommand(&cobra.Command{
		Use:   "move <forward|back|left|right|up|down> [distance-cm]",
		Short: "Move in a direction",
		Args:  cobra.RangeArgs(1, 2),
		RunE: runOp(func(ctx context.Context, cmdr *commander.Commander, args []string) (*commander.Result, error) {
			distance := commander.DefaultMoveDistance
			if len(args) == 2 {
				var err error
				if distance, err = strconv.Atoi(args[1]); err != nil {
					return nil, err
				}
			}
			return cmdr.Move(ctx, commander.MoveDirection(args[0]), distance)
		}),
	})

	fly.AddCommand(&cobra.Command{
		Use:   "rotate <clockwise|counterclockwise> [degrees]",
		Short: "Rotate in place",
		Args:  cobra.RangeArgs(1, 2),
		RunE: runOp(func(ctx context.Context, cmdr *commander.Commander, args []string) (*commander.Result, error) {
			degrees := commander.DefaultRotateDegrees
			if len(args) == 2 {
				var err error
				if degrees, err = strconv.Atoi(args[1]); err != nil {
					return nil, err
				}
			}
			return cmdr.Rotate(ctx, commander.RotateDirection(args[0]), degrees)
		}),
	})

	fly.AddCommand(&cobra.Command{
		Use:   "flip [forward|back|left|right]",
		Short: "Flip",
		Args:  cobra.MaximumNArgs(1),
		RunE: runOp(func(ctx context.Context, cmdr *commander.Commander, args []string) (*commander.Result, error) {
			direction := commander.FlipForward
			if len(args) == 1 {
				direction = commander.FlipDirection(args[0])
			}
			return cmdr.Flip(ctx, direction)
		}),
	})

	fly.AddCommand(&cobra.Command{
		Use:   "speed <0-100>",
		Short: "Set flight speed",
		Args:  cobra.ExactArgs(1),
		RunE: runOp(func(ctx context.Context, cmdr *commander.Commander, args []string) (*commander.Result, error) {
			speed, err := strconv.Atoi(args[0])
			if err != nil {
				return nil, err
			}
			return cmdr.SetSpeed(ctx, speed)
		}),
	})

	fly.AddCommand(&cobra.Command{
		Use:   "track <on|off>",
		Short: "Toggle object tracking",
		Args:  cobra.ExactArgs(1),
		RunE: runOp(func(ctx context.Context, cmdr *commander.Commander, args []string) (*commander.Result, error) {
			switch args[0] {
			case "on":
				return cmdr.ToggleTracking(ctx, true)
			case "off":
				return cmdr.ToggleTracking(ctx, false)
			default:
				return nil, fmt.Errorf("track expects on or off, got %q", args[0])
			}
		}),
	})

	return fly
}
