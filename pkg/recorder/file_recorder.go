package recorder

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ErrRecorderClosed is returned when recording into a closed recorder.
var ErrRecorderClosed = errors.New("recorder is closed")

// FileRecorder records events to a file as JSON lines with optional
// compression.
type FileRecorder struct {
	mu              sync.Mutex
	file            *os.File
	writer          io.Writer
	bufWriter       *bufio.Writer
	path            string
	compressionType CompressionType
	eventCount      int
	closed          bool
}

// FileRecorderOptions contains options for creating a file recorder
type FileRecorderOptions struct {
	CompressionType CompressionType
}

// DefaultFileRecorderOptions returns default options for file recorder
func DefaultFileRecorderOptions() FileRecorderOptions {
	return FileRecorderOptions{
		CompressionType: DefaultCompression,
	}
}

// NewFileRecorder creates a new file recorder with default options
func NewFileRecorder(path string) (*FileRecorder, error) {
	return NewFileRecorderWithOptions(path, DefaultFileRecorderOptions())
}

// NewFileRecorderWithOptions creates a new file recorder with the given options
func NewFileRecorderWithOptions(path string, options FileRecorderOptions) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	bufWriter := bufio.NewWriter(f)

	return &FileRecorder{
		file:            f,
		writer:          NewCompressedWriter(bufWriter, options.CompressionType),
		bufWriter:       bufWriter,
		path:            path,
		compressionType: options.CompressionType,
	}, nil
}

// Path returns the file the recorder writes to.
func (fr *FileRecorder) Path() string {
	return fr.path
}

// RecordEvent writes an event to the file
func (fr *FileRecorder) RecordEvent(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	fr.mu.Lock()
	defer fr.mu.Unlock()

	if fr.closed {
		return ErrRecorderClosed
	}

	if _, err := fr.writer.Write(data); err != nil {
		return err
	}

	// Uncompressed segments stay readable line by line while the process runs
	if fr.compressionType == NoCompression {
		if err := fr.bufWriter.Flush(); err != nil {
			return err
		}
	}

	fr.eventCount++
	return nil
}

// EventCount returns how many events were written since the last Clear.
func (fr *FileRecorder) EventCount() int {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return fr.eventCount
}

// GetEvents reads all events from the file, decompressing if necessary
func (fr *FileRecorder) GetEvents() []Event {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if !fr.closed {
		// Finish the current frame so the reader sees every event; a new
		// frame is started below.
		CloseCompressedWriter(fr.writer, fr.compressionType)
		fr.bufWriter.Flush()
	}

	events, err := ReadEventsFile(fr.path)
	if err != nil {
		return nil
	}

	if !fr.closed {
		fr.writer = NewCompressedWriter(fr.bufWriter, fr.compressionType)
	}

	return events
}

// Clear clears the file and resets the recorder
func (fr *FileRecorder) Clear() {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if fr.closed {
		return
	}

	// Ignore errors in Clear() as per interface
	CloseCompressedWriter(fr.writer, fr.compressionType)
	fr.bufWriter.Flush()
	fr.file.Close()
	os.Truncate(fr.path, 0)

	f, err := os.OpenFile(fr.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fr.closed = true
		return
	}
	fr.file = f
	fr.bufWriter = bufio.NewWriter(f)
	fr.writer = NewCompressedWriter(fr.bufWriter, fr.compressionType)
	fr.eventCount = 0
}

// Close flushes and closes the file. Closing twice is a no-op.
func (fr *FileRecorder) Close() error {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if fr.closed {
		return nil
	}
	fr.closed = true

	if err := CloseCompressedWriter(fr.writer, fr.compressionType); err != nil {
		fr.file.Close()
		return err
	}

	if err := fr.bufWriter.Flush(); err != nil {
		fr.file.Close()
		return err
	}

	return fr.file.Close()
}

// ReadEventsFile reads a JSON lines event file, compressed or not.
func ReadEventsFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadEvents(f)
}

// ReadEvents decodes JSON lines events from r, detecting compression.
func ReadEvents(r io.Reader) ([]Event, error) {
	reader, _, err := NewDetectingReader(r)
	if err != nil {
		return nil, err
	}
	if zr, ok := reader.(*zstd.Decoder); ok {
		defer zr.Close()
	}

	var events []Event
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return events, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, event)
	}
	return events, scanner.Err()
}

// WriteEventsFile writes events to path, replacing any previous content.
func WriteEventsFile(path string, events []Event, compressionType CompressionType) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	bufWriter := bufio.NewWriter(f)
	w := NewCompressedWriter(bufWriter, compressionType)
	enc := json.NewEncoder(w)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			f.Close()
			return err
		}
	}

	if err := CloseCompressedWriter(w, compressionType); err != nil {
		f.Close()
		return err
	}
	if err := bufWriter.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
