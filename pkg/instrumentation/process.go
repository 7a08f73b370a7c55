package instrumentation

import (
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/process"
)

// processName returns the executable name of pid, falling back to argv[0].
func processName(pid int) string {
	fallback := filepath.Base(os.Args[0])

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return fallback
	}
	name, err := p.Name()
	if err != nil || name == "" {
		return fallback
	}
	return name
}
