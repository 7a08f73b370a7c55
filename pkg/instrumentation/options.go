package instrumentation

import (
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
)

// Sink names accepted by CHRONOGO_SINK
const (
	SinkFile   = "file"
	SinkSQLite = "sqlite"
	SinkMemory = "memory"
	SinkOTel   = "otel"
)

// InstrumentationOptions stores configuration for the process tracer
type InstrumentationOptions struct {
	// Enabled indicates whether StartFromEnvironment starts recording
	Enabled bool

	// Output is the base path of the trace; each process writes its own
	// segment next to it
	Output string

	// Sink selects the recorder: file, sqlite, memory or otel
	Sink string

	// Compression applies to file segments: zstd or none
	Compression string

	// IncludePackages is a list of package paths whose frames are recorded
	// Empty means all packages are recorded
	IncludePackages []string

	// ExcludePackages is a list of package paths whose frames are dropped
	// This takes precedence over IncludePackages
	ExcludePackages []string

	// InstrumentStdlib indicates whether frames of standard library
	// packages are recorded
	InstrumentStdlib bool

	// RuntimeTrace mirrors reported calls into runtime/trace user logs
	RuntimeTrace bool
}

// DefaultInstrumentationOptions returns the default instrumentation options
func DefaultInstrumentationOptions() InstrumentationOptions {
	return InstrumentationOptions{
		Enabled:          false,
		Output:           "chrono_trace",
		Sink:             SinkFile,
		Compression:      "zstd",
		IncludePackages:  []string{}, // Empty means all packages
		ExcludePackages:  []string{}, // Don't exclude any packages by default
		InstrumentStdlib: false,      // Don't record stdlib frames by default
	}
}

// Environment variables read by LoadOptionsFromEnvironment
const (
	EnvEnabled          = "CHRONOGO_ENABLED"
	EnvOutput           = "CHRONOGO_OUTPUT"
	EnvSink             = "CHRONOGO_SINK"
	EnvCompression      = "CHRONOGO_COMPRESSION"
	EnvInstrument       = "CHRONOGO_INSTRUMENT"
	EnvExclude          = "CHRONOGO_EXCLUDE"
	EnvInstrumentStdlib = "CHRONOGO_INSTRUMENT_STDLIB"
	EnvRuntimeTrace     = "CHRONOGO_RUNTIME_TRACE"
)

// LoadOptionsFromEnvironment loads instrumentation options from environment variables
func LoadOptionsFromEnvironment() InstrumentationOptions {
	options := DefaultInstrumentationOptions()

	if enabled := os.Getenv(EnvEnabled); enabled != "" {
		options.Enabled = isTrue(enabled)
	}

	if output := os.Getenv(EnvOutput); output != "" {
		options.Output = output
	}

	if sink := os.Getenv(EnvSink); sink != "" {
		options.Sink = strings.ToLower(strings.TrimSpace(sink))
	}

	if compression := os.Getenv(EnvCompression); compression != "" {
		options.Compression = compression
	}

	if instruments := os.Getenv(EnvInstrument); instruments != "" {
		options.IncludePackages = splitList(instruments)
	}

	if excludes := os.Getenv(EnvExclude); excludes != "" {
		options.ExcludePackages = splitList(excludes)
	}

	if instrumentStdlib := os.Getenv(EnvInstrumentStdlib); instrumentStdlib != "" {
		options.InstrumentStdlib = isTrue(instrumentStdlib)
	}

	if runtimeTrace := os.Getenv(EnvRuntimeTrace); runtimeTrace != "" {
		options.RuntimeTrace = isTrue(runtimeTrace)
	}

	return options
}

// Environ returns the options as KEY=value pairs for a child process.
func (o InstrumentationOptions) Environ() []string {
	env := []string{
		EnvEnabled + "=" + boolString(o.Enabled),
		EnvOutput + "=" + o.Output,
		EnvSink + "=" + o.Sink,
		EnvCompression + "=" + o.Compression,
		EnvInstrumentStdlib + "=" + boolString(o.InstrumentStdlib),
		EnvRuntimeTrace + "=" + boolString(o.RuntimeTrace),
	}
	if len(o.IncludePackages) > 0 {
		env = append(env, EnvInstrument+"="+strings.Join(o.IncludePackages, ","))
	}
	if len(o.ExcludePackages) > 0 {
		env = append(env, EnvExclude+"="+strings.Join(o.ExcludePackages, ","))
	}
	return env
}

// ShouldRecord checks if a frame with the given function name passes the
// package filters. Only import-path qualified names, as produced by
// sparse.FuncName and sparse.EnterCaller, are filtered.
func (o InstrumentationOptions) ShouldRecord(funcName string) bool {
	packagePath := extractPackagePath(funcName)
	if packagePath == "" {
		return true
	}

	if isStdlib(packagePath) && !o.InstrumentStdlib {
		return false
	}

	for _, exclude := range o.ExcludePackages {
		if matchesPackagePath(packagePath, exclude) {
			return false
		}
	}

	// If no includes specified, record everything except exclusions
	if len(o.IncludePackages) == 0 {
		return true
	}

	for _, include := range o.IncludePackages {
		if matchesPackagePath(packagePath, include) {
			return true
		}
	}

	return false
}

// buildModules lists the main module and dependency paths of the running
// binary.
var buildModules = sync.OnceValue(func() []string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	mods := make([]string, 0, len(info.Deps)+1)
	if info.Main.Path != "" {
		mods = append(mods, info.Main.Path)
	}
	for _, dep := range info.Deps {
		mods = append(mods, dep.Path)
	}
	return mods
})

// isStdlib checks if a package belongs to the standard library. Standard
// library paths have no dot in their first element, but neither does a
// module declared as "module myapp", so paths inside a module of the
// binary never count.
func isStdlib(packagePath string) bool {
	first, _, _ := strings.Cut(packagePath, "/")
	if strings.Contains(first, ".") {
		return false
	}
	for _, mod := range buildModules() {
		if packagePath == mod || strings.HasPrefix(packagePath, mod+"/") {
			return false
		}
	}
	return true
}

// matchesPackagePath checks if a package matches a pattern
func matchesPackagePath(packagePath, pattern string) bool {
	// Handle wildcard patterns
	if strings.HasSuffix(pattern, "...") {
		prefix := strings.TrimSuffix(pattern, "...")
		return strings.HasPrefix(packagePath, prefix)
	}

	matched, _ := filepath.Match(pattern, packagePath)
	return matched
}

// extractPackagePath extracts the package path from a full function name
func extractPackagePath(fullName string) string {
	lastSlash := strings.LastIndexByte(fullName, '/')
	if lastSlash < 0 {
		// Hand-written names like "Cache.Get" are not package qualified
		return ""
	}

	// Find the first dot after the last slash
	funcName := fullName[lastSlash+1:]
	dotIndex := strings.IndexByte(funcName, '.')
	if dotIndex < 0 {
		return ""
	}

	return fullName[:lastSlash+1+dotIndex]
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTrue(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes"
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
