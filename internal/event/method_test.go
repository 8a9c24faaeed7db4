package event

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type methodFixture struct{}

func (m *methodFixture) OnPlain(s string) {}
func (m *methodFixture) OnWithError(n int) error { return nil }
func (m *methodFixture) OnWithContext(ctx context.Context, b bool) {}
func (m *methodFixture) OnTyped(e *TypedEvent[string]) error { return nil }
func (m *methodFixture) OnParallel(ctx context.Context, f float64) {}
func (m *methodFixture) Once(s string) {}
func (m *methodFixture) Other(s string) {}
func (m *methodFixture) ConcurrentReceivers() []string { return []string{"OnParallel"} }

type noReceivers struct{}

func (n *noReceivers) Handle(s string) {}

type zeroParams struct{}

func (z *zeroParams) OnNothing() {}

type twoParams struct{}

func (tp *twoParams) OnPair(a, b int) {}

type variadic struct{}

func (v *variadic) OnMany(xs ...int) {}

type badResult struct{}

func (b *badResult) OnValue(n int) int { return n }

type twoResults struct{}

func (t *twoResults) OnValue(n int) (int, error) { return n, nil }

type unknownConcurrent struct{}

func (u *unknownConcurrent) OnValue(n int) {}
func (u *unknownConcurrent) ConcurrentReceivers() []string { return []string{"OnMissing"} }

type badPayload struct{}

func (badPayload) PayloadType() reflect.Type { return nil }

type badPayloadListener struct{}

func (l *badPayloadListener) OnBad(e badPayload) {}

func TestLoadMethods(t *testing.T) {
	methods, err := LoadMethods(reflect.TypeFor[*methodFixture](), DefaultReceiverPrefix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"OnParallel", "OnPlain", "OnTyped", "OnWithContext", "OnWithError"}
	if len(methods) != len(expected) {
		t.Fatalf("expected %d methods, got %d", len(expected), len(methods))
	}
	for i, name := range expected {
		if methods[i].Name != name {
			t.Errorf("expected method %d to be %s, got %s", i, name, methods[i].Name)
		}
	}

	byName := make(map[string]Method)
	for _, m := range methods {
		byName[m.Name] = m
	}

	if !byName["OnParallel"].Concurrent {
		t.Error("expected OnParallel to be concurrent")
	}
	if byName["OnPlain"].Concurrent {
		t.Error("expected OnPlain to be serialized")
	}
	if !byName["OnWithError"].ReturnsError || byName["OnPlain"].ReturnsError {
		t.Error("expected only OnWithError to return an error")
	}
	if !byName["OnWithContext"].WithContext {
		t.Error("expected OnWithContext to take a context")
	}
	if byName["OnWithContext"].EventType != reflect.TypeFor[bool]() {
		t.Errorf("expected bool event type, got %v", byName["OnWithContext"].EventType)
	}

	typed := byName["OnTyped"].Key
	if typed.Type != reflect.TypeFor[*TypedEvent[string]]() || typed.Payload != reflect.TypeFor[string]() {
		t.Errorf("expected typed key, got %v", typed)
	}
	if byName["OnPlain"].Key.Payload != nil {
		t.Errorf("expected plain key, got %v", byName["OnPlain"].Key)
	}
}

func TestLoadMethods_CustomPrefix(t *testing.T) {
	methods, err := LoadMethods(reflect.TypeFor[*noReceivers](), "Handle")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(methods) != 1 || methods[0].Name != "Handle" {
		t.Errorf("expected Handle receiver, got %v", methods)
	}
}

func TestLoadMethods_NoReceivers(t *testing.T) {
	methods, err := LoadMethods(reflect.TypeFor[*noReceivers](), DefaultReceiverPrefix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(methods) != 0 {
		t.Errorf("expected no methods, got %d", len(methods))
	}
}

func TestLoadMethods_Errors(t *testing.T) {
	tests := []struct {
		name   string
		typ    reflect.Type
		target error
		method string
	}{
		{"nil type", nil, ErrNilListener, ""},
		{"not a pointer", reflect.TypeFor[methodFixture](), ErrInvalidListener, ""},
		{"zero parameters", reflect.TypeFor[*zeroParams](), ErrInvalidReceiver, "OnNothing"},
		{"two event parameters", reflect.TypeFor[*twoParams](), ErrInvalidReceiver, "OnPair"},
		{"variadic", reflect.TypeFor[*variadic](), ErrInvalidReceiver, "OnMany"},
		{"non-error result", reflect.TypeFor[*badResult](), ErrInvalidReceiver, "OnValue"},
		{"two results", reflect.TypeFor[*twoResults](), ErrInvalidReceiver, "OnValue"},
		{"unknown concurrent name", reflect.TypeFor[*unknownConcurrent](), ErrInvalidReceiver, "OnMissing"},
		{"nil payload type", reflect.TypeFor[*badPayloadListener](), ErrInvalidReceiver, "OnBad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMethods(tt.typ, DefaultReceiverPrefix)
			if !errors.Is(err, tt.target) {
				t.Fatalf("expected %v, got %v", tt.target, err)
			}

			var cfgErr *ConfigError
			if tt.method == "" {
				return
			}
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %T", err)
			}
			if cfgErr.Method != tt.method {
				t.Errorf("expected method %s, got %s", tt.method, cfgErr.Method)
			}
		})
	}
}

func TestIsReceiverName(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"On", true},
		{"OnSaved", true},
		{"OnÉvénement", true},
		{"Once", false},
		{"Online", false},
		{"O", false},
		{"Handle", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isReceiverName(tt.name, "On"); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
