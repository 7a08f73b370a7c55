package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/willibrandon/chronosparse/pkg/replay"
)

func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export TRACE",
		Short: "Convert a trace to the Chrome trace event format.",
		Long: `export writes a JSON file that chrome://tracing and Perfetto can ` +
			`open. Without --output it writes to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := loadTrace(args[0])
			if err != nil {
				return err
			}

			if output == "" {
				return replay.WriteChromeTrace(cmd.OutOrStdout(), events)
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := replay.WriteChromeTrace(f, events); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")

	return cmd
}
