package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/willibrandon/chronosparse/pkg/instrumentation"
	"github.com/willibrandon/chronosparse/pkg/recorder"
)

type runFlags struct {
	output       string
	sink         string
	compression  string
	include      []string
	exclude      []string
	stdlib       bool
	runtimeTrace bool
	keepSegments bool
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [flags] -- program [args...]",
		Short: "Run a program with tracing enabled and merge its trace.",
		Long: `run starts program with the CHRONOGO_* environment that enables ` +
			`tracing. The program, and every Go program it starts, must call ` +
			`instrumentation.StartFromEnvironment. Each process writes its own ` +
			`segment; file segments are merged into <output>` + traceSuffix +
			` once the program exits.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options := flags.apply(cmd, instrumentation.LoadOptionsFromEnvironment())
			return runProgram(cmd, options, flags.keepSegments, args)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Trace output base (default from CHRONOGO_OUTPUT)")
	cmd.Flags().StringVar(&flags.sink, "sink", "", "Recorder sink: file, sqlite, memory or otel")
	cmd.Flags().StringVar(&flags.compression, "compression", "", "Segment compression: zstd or none")
	cmd.Flags().StringSliceVar(&flags.include, "include", nil, "Only record these packages (supports ...)")
	cmd.Flags().StringSliceVar(&flags.exclude, "exclude", nil, "Never record these packages")
	cmd.Flags().BoolVar(&flags.stdlib, "stdlib", false, "Record standard library frames")
	cmd.Flags().BoolVar(&flags.runtimeTrace, "runtime-trace", false, "Mirror reported calls into runtime/trace")
	cmd.Flags().BoolVar(&flags.keepSegments, "keep-segments", false, "Keep per-process segments after merging")

	return cmd
}

func (f *runFlags) apply(cmd *cobra.Command, options instrumentation.InstrumentationOptions) instrumentation.InstrumentationOptions {
	options.Enabled = true

	changed := cmd.Flags().Changed
	if changed("output") {
		options.Output = f.output
	}
	if changed("sink") {
		options.Sink = f.sink
	}
	if changed("compression") {
		options.Compression = f.compression
	}
	if changed("include") {
		options.IncludePackages = f.include
	}
	if changed("exclude") {
		options.ExcludePackages = f.exclude
	}
	if changed("stdlib") {
		options.InstrumentStdlib = f.stdlib
	}
	if changed("runtime-trace") {
		options.RuntimeTrace = f.runtimeTrace
	}

	return options
}

func runProgram(
	cmd *cobra.Command,
	options instrumentation.InstrumentationOptions,
	keepSegments bool,
	args []string,
) error {
	compression, err := recorder.ParseCompressionType(options.Compression)
	if err != nil {
		return err
	}

	child := exec.CommandContext(cmd.Context(), args[0], args[1:]...)
	child.Env = append(os.Environ(), options.Environ()...)
	child.Stdin = cmd.InOrStdin()
	child.Stdout = cmd.OutOrStdout()
	child.Stderr = cmd.ErrOrStderr()

	runErr := child.Run()

	if options.Sink != instrumentation.SinkFile {
		return runErr
	}

	out := options.Output + traceSuffix
	n, err := recorder.MergeSegments(options.Output, out, compression, keepSegments)
	if err != nil {
		if runErr != nil {
			return runErr
		}
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Merged %d segments into %s\n", n, out)
	return runErr
}
