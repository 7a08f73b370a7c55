package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/willibrandon/chronosparse/pkg/replay"
)

func newReportCmd() *cobra.Command {
	var (
		tree        bool
		events      bool
		limit       int
		breakpoints []string
	)

	cmd := &cobra.Command{
		Use:   "report TRACE",
		Short: "Summarize a trace.",
		Long: `report prints the processes, capture windows and call counts of a ` +
			`trace. --tree adds the call tree of each window; --events replays ` +
			`the raw event stream, stopping at the first --break match ` +
			`(func:NAME, window:ID, level:N or an event type).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			evts, err := loadTrace(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if events {
				r := replay.NewBasicReplayer()
				if err := r.LoadEvents(evts); err != nil {
					return err
				}
				if len(breakpoints) == 0 {
					return r.ReplayForward(out)
				}

				bm := replay.NewBreakpointManager()
				for _, b := range breakpoints {
					if _, err := bm.AddBreakpoint(b); err != nil {
						return err
					}
				}
				return r.ReplayUntilBreakpoint(out, bm.CheckBreakpoint)
			}

			summary, err := replay.Summarize(evts)
			if err != nil {
				return err
			}
			if _, err := summary.WriteTo(out); err != nil {
				return err
			}

			if !tree {
				return nil
			}

			windows, err := replay.BuildWindows(evts)
			if err != nil {
				return err
			}
			if limit > 0 && len(windows) > limit {
				windows = windows[:limit]
			}
			fmt.Fprintln(out)
			return replay.WriteTree(out, windows)
		},
	}

	cmd.Flags().BoolVar(&tree, "tree", false, "Print the call tree of each window")
	cmd.Flags().BoolVar(&events, "events", false, "Replay the raw events instead of summarizing")
	cmd.Flags().StringSliceVar(&breakpoints, "break", nil, "Stop the --events replay at a breakpoint")
	cmd.Flags().IntVar(&limit, "limit", 0, "Print at most this many windows with --tree")

	return cmd
}
