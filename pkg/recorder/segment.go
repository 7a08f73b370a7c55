package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SegmentSuffix ends every per-process segment file name.
const SegmentSuffix = ".seg"

// SegmentPath returns the segment file a process with the given pid writes
// when tracing to base.
func SegmentPath(base string, pid int) string {
	return fmt.Sprintf("%s.%d%s", base, pid, SegmentSuffix)
}

// FindSegments lists the segment files written for base, sorted by name.
func FindSegments(base string) ([]string, error) {
	pattern := escapeGlob(base) + ".*" + SegmentSuffix
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// MergeFiles reads every file and merges their events into one trace.
// Events keep their per-process order; processes are interleaved by
// timestamp.
func MergeFiles(paths []string) ([]Event, error) {
	var merged []Event
	for _, path := range paths {
		events, err := ReadEventsFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading segment %s: %w", path, err)
		}
		merged = append(merged, events...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged, nil
}

// MergeSegments merges every segment written for base into out and, unless
// keep is set, removes the segments afterwards. It returns the number of
// merged events.
func MergeSegments(base, out string, compressionType CompressionType, keep bool) (int, error) {
	segments, err := FindSegments(base)
	if err != nil {
		return 0, err
	}
	if len(segments) == 0 {
		return 0, fmt.Errorf("no trace segments found for %s", base)
	}

	events, err := MergeFiles(segments)
	if err != nil {
		return 0, err
	}

	if err := WriteEventsFile(out, events, compressionType); err != nil {
		return 0, err
	}

	if !keep {
		for _, segment := range segments {
			if err := os.Remove(segment); err != nil {
				return len(events), err
			}
		}
	}
	return len(events), nil
}

func escapeGlob(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
