package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"adas-actuation-core/recorder"
	"adas-actuation-core/utils"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		scenPath string
		iface    string
		slcan    string
		bitrate  int
		feedback bool
		dbPath   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario in real time and transmit frames on a CAN bus",
		Long: `Run a scenario in real time and transmit every frame the controller emits.

Transports:
  SocketCAN: --iface vcan0 [--feedback]
  SLCAN:     --slcan /dev/ttyUSB0 [--bitrate 500000]

With --feedback the vehicle speed is read from VEHICLE_STATE_1 frames on the
same SocketCAN interface instead of the kinematic plant.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log, err := root.logger(cmd)
			if err != nil {
				return err
			}
			defer log.Close()

			scen, err := LoadScenario(scenPath)
			if err != nil {
				return fmt.Errorf("load scenario: %w", err)
			}
			ctrl, cmap, err := root.controller(log)
			if err != nil {
				return err
			}

			var writer utils.CANWriter
			if iface != "" {
				writer, err = utils.NewSocketCANWriter(ctx, iface)
			} else {
				writer, err = utils.NewSLCANWriter(slcan, bitrate)
			}
			if err != nil {
				return err
			}
			sinks := []Sink{canSink{w: writer}}

			if dbPath != "" {
				rec, err := recorder.Open(dbPath)
				if err != nil {
					_ = writer.Close()
					return err
				}
				rs, err := newRecorderSink(ctx, rec, scen.Meta.Name, ctrl.Calibration().Name)
				if err != nil {
					_ = rec.Close()
					_ = writer.Close()
					return err
				}
				sinks = append(sinks, rs)
			}

			runner := NewRunner(RunnerConfig{Realtime: true}, ctrl, scen, log, sinks...)
			defer runner.Close()

			if feedback {
				if iface == "" {
					return fmt.Errorf("--feedback needs --iface")
				}
				reader, err := utils.NewSocketCANReader(ctx, iface)
				if err != nil {
					return err
				}
				runner.WithFeedback(reader, cmap)
			}

			stats, err := runner.Run(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "ticks=%d frames=%d dropped=%d clamped=%d\n",
				stats.Ticks, stats.Frames, stats.Dropped, stats.Clamped)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&scenPath, "scenario", "", "Scenario JSON file")
	f.StringVar(&iface, "iface", "", "SocketCAN interface name")
	f.StringVar(&slcan, "slcan", "", "Serial device of an SLCAN adapter")
	f.IntVar(&bitrate, "bitrate", 500000, "CAN bitrate for SLCAN")
	f.BoolVar(&feedback, "feedback", false, "Read vehicle speed from the bus")
	f.StringVar(&dbPath, "db", "", "Record ticks to this SQLite database")
	_ = cmd.MarkFlagRequired("scenario")
	cmd.MarkFlagsMutuallyExclusive("iface", "slcan")
	cmd.MarkFlagsOneRequired("iface", "slcan")
	return cmd
}
