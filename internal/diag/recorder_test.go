package diag

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/typebus/internal/event"
)

type orderPlaced struct{ ID int }

type failing struct{}

func (f *failing) OnOrder(o *orderPlaced) error { return errors.New("out of stock") }

type panicking struct{}

func (p *panicking) OnOrder(o *orderPlaced) { panic("boom") }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func newBus(t *testing.T, listeners ...any) *event.Bus {
	t.Helper()
	bus := event.New(event.WithIdentifier("orders"))
	for _, l := range listeners {
		if err := bus.Register(l); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	return bus
}

func TestRecorder_DeadEvent(t *testing.T) {
	out := &syncBuffer{}
	rec := NewRecorder(out, nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec.now = func() time.Time { return fixed }
	bus := newBus(t, rec)

	if err := bus.Publish(context.Background(), &orderPlaced{ID: 1}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	lines := out.lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 record, got %d", len(lines))
	}
	tests := []struct {
		path     string
		expected string
	}{
		{"kind", KindDead},
		{"bus", "orders"},
		{"event_type", "*diag.orderPlaced"},
		{"time", "2026-01-02T03:04:05Z"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := gjson.Get(lines[0], tt.path).String(); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
	if gjson.Get(lines[0], "listener").Exists() {
		t.Error("expected no listener field on a dead record")
	}
	if dead, failures, _ := rec.Counts(); dead != 1 || failures != 0 {
		t.Errorf("expected 1 dead and 0 failures, got %d and %d", dead, failures)
	}
}

func TestRecorder_Failures(t *testing.T) {
	tests := []struct {
		name     string
		listener any
		cause    string
		panicked bool
	}{
		{"returned error", &failing{}, "out of stock", false},
		{"panic", &panicking{}, "boom", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &syncBuffer{}
			rec := NewRecorder(out, nil)
			bus := newBus(t, rec, tt.listener)

			_ = bus.Publish(context.Background(), &orderPlaced{ID: 7})

			lines := out.lines()
			if len(lines) != 1 {
				t.Fatalf("expected 1 record, got %d", len(lines))
			}
			record, err := ParseRecord([]byte(lines[0]))
			if err != nil {
				t.Fatalf("ParseRecord failed: %v", err)
			}
			if record.Kind != KindFailure || record.Method != "OnOrder" {
				t.Errorf("unexpected record %+v", record)
			}
			if !strings.Contains(record.Cause, tt.cause) {
				t.Errorf("expected cause to mention %q, got %q", tt.cause, record.Cause)
			}
			if record.Panic != tt.panicked {
				t.Errorf("expected panic=%v, got %v", tt.panicked, record.Panic)
			}
			if record.ID == "" {
				t.Error("expected a record id")
			}
		})
	}
}

func TestRecorder_WriteErrorIsCounted(t *testing.T) {
	rec := NewRecorder(errWriter{}, nil)
	bus := newBus(t, rec)

	_ = bus.Publish(context.Background(), "nobody listens")

	if _, _, dropped := rec.Counts(); dropped != 1 {
		t.Errorf("expected 1 dropped record, got %d", dropped)
	}
}

func TestParseRecord_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"not json", "kind=dead"},
		{"missing kind", `{"id":"x"}`},
		{"bad time", `{"id":"x","kind":"dead","time":"yesterday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRecord([]byte(tt.line)); !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("expected ErrMalformedRecord, got %v", err)
			}
		})
	}
}
