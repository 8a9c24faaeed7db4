package loader

import (
	"strings"
	"testing"
)

func getByPath(config map[string]any, path string) (any, bool) {
	section, key, _ := strings.Cut(path, ".")
	m, ok := config[section].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

func TestEnvLoader_Load(t *testing.T) {
	t.Setenv("TYPEBUS_LOG_LEVEL", "debug")
	t.Setenv("TYPEBUS_WORKERS", "1")
	t.Setenv("TYPEBUS_BUS_QUEUE_SIZE", "256")
	t.Setenv("TYPEBUS_BUS_RECEIVER_PREFIX", "Handle")

	config, err := NewEnvLoader("").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		path     string
		expected any
	}{
		{"logging.level", "debug"},
		{"bus.workers", int64(1)},
		{"bus.queueSize", int64(256)},
		{"bus.receiverPrefix", "Handle"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			val, ok := getByPath(config, tt.path)
			if !ok || val != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, val, val)
			}
		})
	}
}

func TestEnvLoader_CustomMapping(t *testing.T) {
	t.Setenv("APP_NAME", "orders")

	l := NewEnvLoaderWithMapping("APP_", nil)
	l.AddMapping("APP_NAME", "bus.identifier")
	config, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if val, _ := getByPath(config, "bus.identifier"); val != "orders" {
		t.Errorf("expected orders, got %v", val)
	}
}

func TestEnvLoader_envToPath(t *testing.T) {
	l := NewEnvLoader("TYPEBUS_")

	tests := []struct {
		env      string
		expected string
	}{
		{"TYPEBUS_BUS_QUEUE_SIZE", "bus.queueSize"},
		{"TYPEBUS_BUS_STOP_TIMEOUT", "bus.stopTimeout"},
		{"TYPEBUS_LOGGING_LEVEL", "logging.level"},
		{"TYPEBUS_SIMPLE", ""},
		{"TYPEBUS__X", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := l.envToPath(tt.env); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		input    string
		expected any
	}{
		{"true", true},
		{"Yes", true},
		{"on", true},
		{"false", false},
		{"OFF", false},
		{"1", int64(1)},
		{"0", int64(0)},
		{"-10", int64(-10)},
		{"2s", "2s"},
		{"3.5", "3.5"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseValue(tt.input); got != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, got, got)
			}
		})
	}
}
