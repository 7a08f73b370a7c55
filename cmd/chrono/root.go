package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "chrono",
		Short: "Sparse call tracing for Go programs.",
		Long: `chrono records only the calls made by functions marked for capture, ` +
			`up to a configured depth, and turns the resulting traces into ` +
			`reports, Chrome trace files and a small HTTP viewer.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			return godotenv.Load(envFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "",
		"Load CHRONOGO_* settings from a dotenv file")

	rootCmd.AddCommand(
		newRunCmd(),
		newMergeCmd(),
		newReportCmd(),
		newExportCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the root command and exits with a non-zero status on error.
// A traced program that failed passes its own exit code through.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		atexit.Exit(exitErr.ExitCode())
	}
	atexit.Exit(1)
}
