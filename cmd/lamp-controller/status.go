package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sweeney/lamp-controller/internal/gpio"
	"github.com/sweeney/lamp-controller/internal/lamp"
	"github.com/sweeney/lamp-controller/internal/store"
)

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted flags and the live sensor level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			db, err := store.OpenSQLite(cfg.Store.Path, cfg.Store.Timeout)
			if err != nil {
				return err
			}
			defer db.Close()

			// The daemon may hold the line; show the flags anyway.
			var in gpio.Input
			if ri, err := gpio.NewRealInput(cfg.GPIO.Chip, cfg.GPIO.SensorPin, cfg.GPIO.SensorActiveLow); err == nil {
				defer ri.Close()
				in = ri
			}

			return printStatus(cmd.Context(), cmd.OutOrStdout(), db, in)
		},
	}
}

// printStatus writes the persisted lamp and sensor flags, the resulting mode
// and, when in is non-nil, the current sensor level.
func printStatus(ctx context.Context, w io.Writer, st store.Store, in gpio.Input) error {
	lampState, err := readFlag(ctx, st, store.KeyLampState)
	if err != nil {
		return err
	}
	sensorMode, err := readFlag(ctx, st, store.KeySensorState)
	if err != nil {
		return err
	}

	snap := lamp.Snapshot{LampState: lampState.value, SensorMode: sensorMode.value}

	fmt.Fprintf(w, "%-13s %s\n", "lamp:", lampState)
	fmt.Fprintf(w, "%-13s %s\n", "sensor mode:", sensorMode)
	fmt.Fprintf(w, "%-13s %s\n", "mode:", snap.Mode())

	sensor := color.New(color.FgYellow).Sprint("unavailable")
	if in != nil {
		if level, err := in.ReadLevel(); err == nil {
			sensor = onOff(level)
		}
	}
	fmt.Fprintf(w, "%-13s %s\n", "sensor:", sensor)

	return nil
}

type flag struct {
	value bool
	note  string
}

func (f flag) String() string {
	if f.note != "" {
		return onOff(f.value) + " (" + f.note + ")"
	}
	return onOff(f.value)
}

func readFlag(ctx context.Context, st store.Store, key store.Key) (flag, error) {
	v, err := st.GetFlag(ctx, key)
	switch {
	case err == nil:
		return flag{value: v}, nil
	case errors.Is(err, store.ErrNotFound):
		return flag{note: "unset"}, nil
	case errors.Is(err, store.ErrCorrupt):
		// The daemon restores a corrupt record as off.
		return flag{note: "corrupt"}, nil
	default:
		return flag{}, fmt.Errorf("read %s: %w", key, err)
	}
}

func onOff(b bool) string {
	if b {
		return color.New(color.FgGreen).Sprint("ON")
	}
	return color.New(color.FgRed).Sprint("OFF")
}
