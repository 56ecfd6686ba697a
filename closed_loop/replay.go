package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"adas-actuation-core/recorder"
)

func newReplayCmd(root *rootOptions) *cobra.Command {
	var (
		scenPath string
		dbPath   string
		session  string
		realtime bool
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Run a scenario in simulated time against the kinematic plant",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := root.logger(cmd)
			if err != nil {
				return err
			}
			defer log.Close()

			scen, err := LoadScenario(scenPath)
			if err != nil {
				return fmt.Errorf("load scenario: %w", err)
			}
			ctrl, _, err := root.controller(log)
			if err != nil {
				return err
			}

			var sinks []Sink
			var sessionID string
			if dbPath != "" {
				rec, err := recorder.Open(dbPath)
				if err != nil {
					return err
				}
				if session == "" {
					session = scen.Meta.Name
				}
				rs, err := newRecorderSink(cmd.Context(), rec, session, ctrl.Calibration().Name)
				if err != nil {
					_ = rec.Close()
					return err
				}
				sessionID = rs.session
				sinks = append(sinks, rs)
			}

			runner := NewRunner(RunnerConfig{Realtime: realtime}, ctrl, scen, log, sinks...)
			stats, runErr := runner.Run(cmd.Context())
			if err := runner.Close(); err != nil && runErr == nil {
				runErr = err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ticks=%d frames=%d dropped=%d clamped=%d",
				stats.Ticks, stats.Frames, stats.Dropped, stats.Clamped)
			if sessionID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " session=%s", sessionID)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return runErr
		},
	}

	f := cmd.Flags()
	f.StringVar(&scenPath, "scenario", "", "Scenario JSON file")
	f.StringVar(&dbPath, "db", "", "Record ticks to this SQLite database")
	f.StringVar(&session, "session-name", "", "Recorder session name (default: scenario name)")
	f.BoolVar(&realtime, "realtime", false, "Pace ticks in wall-clock time")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}
