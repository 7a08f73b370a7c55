package instrumentation

import (
	"context"
	"fmt"
	"runtime/trace"

	"github.com/willibrandon/chronosparse/pkg/recorder"
	"github.com/willibrandon/chronosparse/pkg/sparse"
)

// logRuntimeTrace mirrors a reported call into the execution trace when
// runtime/trace is collecting, so sparse windows line up with scheduler
// events in `go tool trace`.
func logRuntimeTrace(typ recorder.EventType, f sparse.Frame) {
	if !trace.IsEnabled() {
		return
	}
	trace.Log(context.Background(), "chrono."+typ.String(),
		fmt.Sprintf("%s level=%d window=%s", f.Name, f.Level, f.Window))
}
