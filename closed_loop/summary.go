package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"adas-actuation-core/recorder"
)

func newSummaryCmd() *cobra.Command {
	var (
		dbPath  string
		session string
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print statistics for a recorded session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rec, err := recorder.Open(dbPath)
			if err != nil {
				return err
			}
			defer rec.Close()

			sessions, err := rec.Sessions(ctx)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				return fmt.Errorf("no sessions in %s", dbPath)
			}

			sel := sessions[0]
			if session != "" {
				found := false
				for _, s := range sessions {
					if s.ID == session || s.Name == session {
						sel, found = s, true
						break
					}
				}
				if !found {
					return fmt.Errorf("session %q: %w", session, recorder.ErrUnknownSession)
				}
			}

			ticks, err := rec.Ticks(ctx, sel.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session          %s (%s, %s)\n", sel.ID, sel.Name, sel.Calibration)
			_, err = recorder.Summarize(ticks).WriteTo(out)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&dbPath, "db", "", "Recorder SQLite database")
	f.StringVar(&session, "session", "", "Session id or name (default: newest)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}
