package recording

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachesim/timing/hierarchy"
)

// CSVRecorder writes accesses as comma-separated rows with a header line.
type CSVRecorder struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer

	runID      string
	seq        uint64
	buffer     []Access
	bufferSize int
}

// NewCSVRecorder creates <path>.csv and records into it. An empty path picks
// a unique name.
func NewCSVRecorder(path string) (*CSVRecorder, error) {
	if path == "" {
		path = "cachesim_record_" + xid.New().String()
	}

	filename := path + ".csv"
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("file %s already exists", filename)
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	r, err := NewCSVRecorderWithWriter(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file

	atexit.Register(func() { _ = r.Flush() })

	return r, nil
}

// NewCSVRecorderWithWriter records into w. The header is written right away.
func NewCSVRecorderWithWriter(w io.Writer) (*CSVRecorder, error) {
	r := &CSVRecorder{
		w:          csv.NewWriter(w),
		runID:      xid.New().String(),
		bufferSize: 1000,
	}

	if err := r.w.Write(columnNames()); err != nil {
		return nil, err
	}
	r.w.Flush()

	return r, r.w.Error()
}

// RunID returns the identifier stamped on every row.
func (r *CSVRecorder) RunID() string {
	return r.runID
}

// ObserveAccess buffers the access.
func (r *CSVRecorder) ObserveAccess(result hierarchy.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, newAccess(r.runID, r.seq, result))
	r.seq++

	if len(r.buffer) >= r.bufferSize {
		r.flushLocked()
	}
}

// Flush writes the buffered rows.
func (r *CSVRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flushLocked()
	return r.w.Error()
}

func (r *CSVRecorder) flushLocked() {
	for _, a := range r.buffer {
		_ = r.w.Write([]string{
			a.RunID,
			strconv.FormatUint(a.Seq, 10),
			strconv.FormatUint(uint64(a.Address), 10),
			strconv.FormatBool(a.Write),
			strconv.FormatBool(a.L1Hit),
			strconv.FormatBool(a.L2Hit),
			strconv.FormatBool(a.Evicted),
			strconv.FormatBool(a.WroteBack),
			strconv.FormatUint(a.Cycles, 10),
			strconv.FormatUint(a.Time, 10),
		})
	}
	r.w.Flush()
	r.buffer = nil
}

// Close flushes and closes the file if the recorder created it.
func (r *CSVRecorder) Close() error {
	err := r.Flush()
	if r.closer != nil {
		err = errors.Join(err, r.closer.Close())
	}
	return err
}
