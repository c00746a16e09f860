package cache

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrorRecord is one failed operation kept for post-run inspection.
type ErrorRecord struct {
	At       time.Time `json:"at"`
	Process  string    `json:"process,omitempty"`
	Document string    `json:"document,omitempty"`
	Kind     string    `json:"kind"`
	Detail   string    `json:"detail"`
}

// ErrorLog is a bounded in-memory ring of error records. When full, the
// oldest record is dropped. Safe for concurrent use.
type ErrorLog struct {
	mu      sync.Mutex
	buf     []ErrorRecord
	start   int
	size    int
	dropped int64
}

// NewErrorLog builds a log holding at most capacity records (minimum 1).
func NewErrorLog(capacity int) *ErrorLog {
	if capacity < 1 {
		capacity = 1
	}
	return &ErrorLog{buf: make([]ErrorRecord, capacity)}
}

// Append records an error, evicting the oldest record when full.
func (l *ErrorLog) Append(rec ErrorRecord) {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.size < len(l.buf) {
		l.buf[(l.start+l.size)%len(l.buf)] = rec
		l.size++
		return
	}
	l.buf[l.start] = rec
	l.start = (l.start + 1) % len(l.buf)
	l.dropped++
}

// Records returns the retained records, oldest first.
func (l *ErrorLog) Records() []ErrorRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ErrorRecord, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.buf[(l.start+i)%len(l.buf)]
	}
	return out
}

// Dropped returns how many records were evicted to stay within capacity.
func (l *ErrorLog) Dropped() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// WriteFile dumps the retained records as JSON.
func (l *ErrorLog) WriteFile(path string) error {
	raw, err := json.MarshalIndent(l.Records(), "", "  ")
	if err != nil {
		return eris.Wrap(err, "cache: encode error log")
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return eris.Wrapf(err, "cache: write %s", path)
	}
	return nil
}
