// Package diag records undeliverable events and receiver faults.
//
// A Recorder is an ordinary listener. Registered on a bus it receives every
// DeadEvent and FailureEvent and writes each one as a single JSON line.
package diag

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/typebus/internal/event"
)

// Record kinds.
const (
	KindDead    = "dead"
	KindFailure = "failure"
)

// Recorder writes diagnostic records to an io.Writer.
type Recorder struct {
	mu     sync.Mutex
	w      io.Writer
	logger *slog.Logger
	now    func() time.Time

	dead     atomic.Uint64
	failures atomic.Uint64
	dropped  atomic.Uint64
}

// NewRecorder creates a recorder writing to w. A nil logger discards logs.
func NewRecorder(w io.Writer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{
		w:      w,
		logger: logger.With("component", "diag"),
		now:    time.Now,
	}
}

// OnDeadEvent records an event nobody received.
func (r *Recorder) OnDeadEvent(e *event.DeadEvent) {
	r.dead.Add(1)
	r.logger.Debug("dead event", "bus", e.Bus.Identifier(), "event_type", typeName(e.Event))
	r.write(KindDead, e.Bus, e.Event, nil)
}

// OnFailure records a receiver fault.
func (r *Recorder) OnFailure(e *event.FailureEvent) {
	r.failures.Add(1)
	r.logger.Warn("receiver failed",
		"bus", e.Bus.Identifier(),
		"listener", typeName(e.Listener),
		"method", e.Method,
		"error", e.Cause)
	r.write(KindFailure, e.Bus, e.Event, e)
}

// Counts returns the number of dead events and failures seen, and the
// number of records that could not be written.
func (r *Recorder) Counts() (dead, failures, dropped uint64) {
	return r.dead.Load(), r.failures.Load(), r.dropped.Load()
}

func (r *Recorder) write(kind string, bus *event.Bus, ev any, failure *event.FailureEvent) {
	line, err := r.encode(kind, bus, ev, failure)
	if err == nil {
		r.mu.Lock()
		_, err = io.WriteString(r.w, line+"\n")
		r.mu.Unlock()
	}
	if err != nil {
		r.dropped.Add(1)
		r.logger.Error("writing diagnostic record", "kind", kind, "error", err)
	}
}

type field struct {
	path  string
	value any
}

func (r *Recorder) encode(kind string, bus *event.Bus, ev any, failure *event.FailureEvent) (string, error) {
	fields := []field{
		{"id", uuid.NewString()},
		{"time", r.now().UTC().Format(time.RFC3339Nano)},
		{"kind", kind},
		{"bus", bus.Identifier()},
		{"event_type", typeName(ev)},
	}
	if failure != nil {
		var panicErr *event.PanicError
		fields = append(fields,
			field{"listener", typeName(failure.Listener)},
			field{"method", failure.Method},
			field{"cause", fmt.Sprint(failure.Cause)},
			field{"panic", errors.As(failure.Cause, &panicErr)},
		)
	}

	line := "{}"
	for _, f := range fields {
		var err error
		if line, err = sjson.Set(line, f.path, f.value); err != nil {
			return "", fmt.Errorf("encoding %s: %w", f.path, err)
		}
	}
	return line, nil
}

// Record is a decoded diagnostic line.
type Record struct {
	ID        string
	Time      time.Time
	Kind      string
	Bus       string
	EventType string
	Listener  string
	Method    string
	Cause     string
	Panic     bool
}

// ErrMalformedRecord is returned by ParseRecord for input that is not a
// diagnostic record.
var ErrMalformedRecord = errors.New("malformed diagnostic record")

// ParseRecord decodes one line written by a Recorder.
func ParseRecord(line []byte) (Record, error) {
	if !gjson.ValidBytes(line) {
		return Record{}, ErrMalformedRecord
	}
	res := gjson.GetManyBytes(line, "id", "time", "kind", "bus", "event_type", "listener", "method", "cause", "panic")
	if !res[0].Exists() || !res[2].Exists() {
		return Record{}, fmt.Errorf("%w: missing id or kind", ErrMalformedRecord)
	}
	rec := Record{
		ID:        res[0].String(),
		Kind:      res[2].String(),
		Bus:       res[3].String(),
		EventType: res[4].String(),
		Listener:  res[5].String(),
		Method:    res[6].String(),
		Cause:     res[7].String(),
		Panic:     res[8].Bool(),
	}
	if res[1].Exists() {
		ts, err := time.Parse(time.RFC3339Nano, res[1].String())
		if err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		rec.Time = ts
	}
	return rec, nil
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
