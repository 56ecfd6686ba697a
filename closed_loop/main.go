package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"adas-actuation-core/control"
	"adas-actuation-core/control/calibration"
	"adas-actuation-core/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	calPath  string
	mapPath  string
	logLevel string
	logFile  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "closed_loop",
		Short: "Drive the actuation controller from scenarios or onto a CAN bus",
		Long: `closed_loop runs the actuation controller at its control rate.

  replay    simulated time against a kinematic plant, optionally recorded to SQLite
  run       real time, frames transmitted on SocketCAN or a serial SLCAN adapter
  checksum  compute a frame integrity byte
  summary   statistics for a recorded session`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.calPath, "cal", "config/calibration/torque_psd.json", "Calibration JSON (empty for built-in defaults)")
	pf.StringVar(&opts.mapPath, "map", "config/can/can_map.csv", "Path to can_map.csv")
	pf.StringVar(&opts.logLevel, "log", "info", "trace|debug|info|warn|error|critical")
	pf.StringVar(&opts.logFile, "log-file", "", "Also append log lines to this file")

	root.AddCommand(
		newReplayCmd(opts),
		newRunCmd(opts),
		newChecksumCmd(),
		newSummaryCmd(),
	)
	return root
}

func (o *rootOptions) logger(cmd *cobra.Command) (*utils.Logger, error) {
	level, err := utils.ParseLevel(o.logLevel)
	if err != nil {
		return nil, err
	}
	if o.logFile == "" {
		return utils.NewLogger(cmd.ErrOrStderr(), level), nil
	}
	return utils.NewFileLogger(o.logFile, level, true)
}

func (o *rootOptions) calibration() (calibration.VehicleCalibration, error) {
	if o.calPath == "" {
		return calibration.Defaults(), nil
	}
	return calibration.Load(o.calPath)
}

// controller loads the calibration and CAN map and builds a Controller
// encoding through the map.
func (o *rootOptions) controller(log *utils.Logger) (*control.Controller, *utils.CANMap, error) {
	cal, err := o.calibration()
	if err != nil {
		return nil, nil, err
	}
	cmap, err := utils.LoadCANMap(o.mapPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load can map: %w", err)
	}
	ctrl, err := control.NewController(cal, cmap, control.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	return ctrl, cmap, nil
}
