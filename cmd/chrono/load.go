package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/willibrandon/chronosparse/pkg/recorder"
)

// traceSuffix is appended to the output base for merged traces.
const traceSuffix = ".trace"

// loadTrace reads the events at path. path may name a SQLite trace
// database, a trace file, or the output base of unmerged segments.
func loadTrace(path string) ([]recorder.Event, error) {
	if strings.HasSuffix(path, ".sqlite3") {
		return recorder.ReadSQLiteEvents(path)
	}

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return recorder.ReadEventsFile(path)
	}

	segments, err := recorder.FindSegments(path)
	if err != nil {
		return nil, err
	}
	if len(segments) > 0 {
		return recorder.MergeFiles(segments)
	}

	if _, err := os.Stat(path + traceSuffix); err == nil {
		return recorder.ReadEventsFile(path + traceSuffix)
	}

	return nil, fmt.Errorf("no trace found at %s", path)
}
