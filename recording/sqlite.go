package recording

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachesim/timing/hierarchy"
)

const (
	accessTable = "accesses"
	runTable    = "runs"
)

// SQLiteRecorder writes accesses into a SQLite database in batches.
type SQLiteRecorder struct {
	mu sync.Mutex
	db *sql.DB

	ownsDB    bool
	runID     string
	seq       uint64
	buffer    []Access
	batchSize int
	err       error
}

// NewSQLiteRecorder creates <path>.sqlite3 and records into it. An empty
// path picks a unique name. The buffer is flushed when the program exits
// through atexit.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	if path == "" {
		path = "cachesim_record_" + xid.New().String()
	}

	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}

	r, err := NewSQLiteRecorderWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	r.ownsDB = true

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	atexit.Register(func() { _ = r.Flush() })

	return r, nil
}

// NewSQLiteRecorderWithDB records into an already open database. The caller
// keeps ownership of db.
func NewSQLiteRecorderWithDB(db *sql.DB) (*SQLiteRecorder, error) {
	r := &SQLiteRecorder{
		db:        db,
		runID:     xid.New().String(),
		batchSize: 100000,
	}

	if err := r.createTables(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *SQLiteRecorder) createTables() error {
	columns := strings.Join(columnNames(), ", \n\t")
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + accessTable +
			` (` + "\n\t" + columns + "\n" + `);`,
		`CREATE TABLE IF NOT EXISTS ` + runTable +
			` (ID TEXT PRIMARY KEY, Config TEXT);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// RunID returns the identifier stamped on every access of this recorder.
func (r *SQLiteRecorder) RunID() string {
	return r.runID
}

// SetBatchSize sets how many accesses are buffered before they are written.
func (r *SQLiteRecorder) SetBatchSize(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n < 1 {
		n = 1
	}
	r.batchSize = n
}

// RecordConfig stores the hierarchy configuration of this run.
func (r *SQLiteRecorder) RecordConfig(config *hierarchy.Config) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT OR REPLACE INTO `+runTable+` VALUES (?, ?)`,
		r.runID, string(data))
	if err != nil {
		return fmt.Errorf("failed to record config: %w", err)
	}

	return nil
}

// ObserveAccess buffers the access and writes the buffer once it is full.
// A write failure is kept and returned by the next Flush or Close.
func (r *SQLiteRecorder) ObserveAccess(result hierarchy.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, newAccess(r.runID, r.seq, result))
	r.seq++

	if len(r.buffer) >= r.batchSize {
		if err := r.flushLocked(); err != nil && r.err == nil {
			r.err = err
		}
	}
}

// Flush writes every buffered access in one transaction.
func (r *SQLiteRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.flushLocked()
	if r.err != nil {
		err = errors.Join(r.err, err)
		r.err = nil
	}
	return err
}

func (r *SQLiteRecorder) flushLocked() error {
	if len(r.buffer) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(insertStatement())
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range r.buffer {
		if _, err := stmt.Exec(a.values()...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert access %d: %w", a.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit accesses: %w", err)
	}

	r.buffer = nil
	return nil
}

func insertStatement() string {
	marks := make([]string, len(columnNames()))
	for i := range marks {
		marks[i] = "?"
	}

	return "INSERT INTO " + accessTable +
		" VALUES (" + strings.Join(marks, ", ") + ")"
}

// Close flushes the buffer and closes the database if the recorder opened
// it.
func (r *SQLiteRecorder) Close() error {
	err := r.Flush()

	if r.ownsDB {
		if cerr := r.db.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}

	return err
}
