package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// SQLiteRecorder buffers events and writes them into a SQLite database in
// batches.
type SQLiteRecorder struct {
	*sql.DB
	mu        sync.Mutex
	statement *sql.Stmt

	dbName    string
	pending   []Event
	batchSize int
	closed    bool
}

// NewSQLiteRecorder creates a recorder writing to <path>.sqlite3. An empty
// path picks a unique chrono_trace_<xid> name. The database must not exist
// yet.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	r := &SQLiteRecorder{
		dbName:    path,
		batchSize: 10000,
	}

	if err := r.init(); err != nil {
		return nil, err
	}

	atexit.Register(func() { r.Close() })

	return r, nil
}

// FileName returns the database file the recorder writes to.
func (r *SQLiteRecorder) FileName() string {
	return r.dbName + ".sqlite3"
}

func (r *SQLiteRecorder) init() error {
	if r.dbName == "" {
		r.dbName = "chrono_trace_" + xid.New().String()
	}

	filename := r.FileName()
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return err
	}
	r.DB = db

	fmt.Fprintf(os.Stderr, "Trace is collected in database: %s\n", filename)

	_, err = r.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id        INTEGER NOT NULL,
			ts        INTEGER NOT NULL,
			type      INTEGER NOT NULL,
			details   TEXT,
			func_name TEXT,
			level     INTEGER,
			window_id TEXT,
			pid       INTEGER
		)`)
	if err != nil {
		db.Close()
		return err
	}

	r.statement, err = r.Prepare(`
		INSERT INTO events (id, ts, type, details, func_name, level, window_id, pid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return err
	}

	return nil
}

// RecordEvent buffers e and flushes once a batch is full.
func (r *SQLiteRecorder) RecordEvent(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRecorderClosed
	}

	r.pending = append(r.pending, e)
	if len(r.pending) >= r.batchSize {
		return r.flushLocked()
	}
	return nil
}

// Flush writes all the buffered events to the database.
func (r *SQLiteRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	return r.flushLocked()
}

func (r *SQLiteRecorder) flushLocked() error {
	if len(r.pending) == 0 {
		return nil
	}

	tx, err := r.Begin()
	if err != nil {
		return err
	}

	stmt := tx.Stmt(r.statement)
	for _, e := range r.pending {
		_, err := stmt.Exec(
			e.ID,
			e.Timestamp.UnixNano(),
			int(e.Type),
			e.Details,
			e.FuncName,
			e.Level,
			e.WindowID,
			e.PID,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting event %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	r.pending = nil
	return nil
}

// GetEvents flushes and reads every event back in insertion order.
func (r *SQLiteRecorder) GetEvents() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	if err := r.flushLocked(); err != nil {
		return nil
	}

	events, _ := queryEvents(r.DB)
	return events
}

// ReadSQLiteEvents reads the events stored in a trace database written by
// SQLiteRecorder.
func ReadSQLiteEvents(filename string) ([]Event, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", "file:"+filename+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	events, err := queryEvents(db)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return events, nil
}

func queryEvents(db *sql.DB) ([]Event, error) {
	rows, err := db.Query(`
		SELECT id, ts, type, details, func_name, level, window_id, pid
		FROM events ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e     Event
			ts    int64
			typ   int
			fname sql.NullString
			win   sql.NullString
			det   sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &typ, &det, &fname, &e.Level, &win, &e.PID); err != nil {
			return events, err
		}
		e.Timestamp = time.Unix(0, ts)
		e.Type = EventType(typ)
		e.Details = det.String
		e.FuncName = fname.String
		e.WindowID = win.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// Clear drops buffered and stored events.
func (r *SQLiteRecorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.pending = nil
	r.Exec("DELETE FROM events")
}

// Close flushes pending events and closes the database.
func (r *SQLiteRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	err := r.flushLocked()
	r.closed = true
	r.statement.Close()
	if cerr := r.DB.Close(); err == nil {
		err = cerr
	}
	return err
}
