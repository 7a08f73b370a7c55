package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/willibrandon/chronosparse/pkg/recorder"
)

func newMergeCmd() *cobra.Command {
	var (
		output       string
		compression  string
		keepSegments bool
	)

	cmd := &cobra.Command{
		Use:   "merge BASE",
		Short: "Merge per-process trace segments into one trace file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := recorder.ParseCompressionType(compression)
			if err != nil {
				return err
			}

			base := args[0]
			if output == "" {
				output = base + traceSuffix
			}

			n, err := recorder.MergeSegments(base, output, ct, keepSegments)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d segments into %s\n", n, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Merged trace path (default BASE"+traceSuffix+")")
	cmd.Flags().StringVar(&compression, "compression", "zstd", "Compression of the merged trace: zstd or none")
	cmd.Flags().BoolVar(&keepSegments, "keep-segments", false, "Keep segments after merging")

	return cmd
}
