package loader

import (
	"errors"
	"strings"
	"testing"
)

func TestTOMLLoader_Load(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/typebus.toml", `
[bus]
identifier = "orders"
workers = 8

[logging]
level = "debug"
`)

	config, err := NewTOMLLoaderWithFS(memfs, "/typebus.toml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	bus, ok := config["bus"].(map[string]any)
	if !ok {
		t.Fatal("expected bus to be a map")
	}
	if bus["identifier"] != "orders" {
		t.Errorf("expected identifier orders, got %v", bus["identifier"])
	}
	if bus["workers"] != int64(8) {
		t.Errorf("expected workers 8, got %v (%T)", bus["workers"], bus["workers"])
	}
}

func TestTOMLLoader_LoadNonExistent(t *testing.T) {
	config, err := NewTOMLLoaderWithFS(NewMemFS(), "/missing.toml").Load()
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if config != nil {
		t.Error("expected nil config for missing file")
	}
}

func TestTOMLLoader_LoadInvalid(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/invalid.toml", "[bus\nworkers = 4\n")

	_, err := NewTOMLLoaderWithFS(memfs, "/invalid.toml").Load()
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if parseErr.Path != "/invalid.toml" {
		t.Errorf("expected path /invalid.toml, got %q", parseErr.Path)
	}
	if parseErr.Line == 0 {
		t.Error("expected a line number")
	}
}

func TestTOMLLoader_LoadFromReader(t *testing.T) {
	config, err := (&TOMLLoader{}).LoadFromReader(strings.NewReader(`prefix = "Handle"`))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if config["prefix"] != "Handle" {
		t.Errorf("expected prefix Handle, got %v", config["prefix"])
	}
}

func TestTOMLLoader_LoadWithIncludes(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/etc/typebus.toml", `
"@include" = "base.toml"

[bus]
workers = 2
`)
	memfs.AddFile("/etc/base.toml", `
[bus]
workers = 16
queueSize = 64

[logging]
format = "json"
`)

	config, err := NewTOMLLoaderWithFS(memfs, "/etc/typebus.toml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	bus := config["bus"].(map[string]any)
	if bus["workers"] != int64(2) {
		t.Errorf("expected including file to win, got workers %v", bus["workers"])
	}
	if bus["queueSize"] != int64(64) {
		t.Errorf("expected queueSize from include, got %v", bus["queueSize"])
	}
	if _, ok := config["@include"]; ok {
		t.Error("expected @include to be removed")
	}
	if config["logging"].(map[string]any)["format"] != "json" {
		t.Error("expected logging section from include")
	}
}

func TestTOMLLoader_LoadWithIncludes_DepthExceeded(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/a.toml", `"@include" = ["b.toml"]`)
	memfs.AddFile("/b.toml", `"@include" = ["c.toml"]`)
	memfs.AddFile("/c.toml", `value = 1`)

	l := NewTOMLLoaderWithFS(memfs, "/a.toml")
	if _, err := l.LoadWithIncludes("/a.toml", 2); err == nil || !strings.Contains(err.Error(), "depth exceeded") {
		t.Errorf("expected depth exceeded error, got %v", err)
	}

	config, err := l.LoadWithIncludes("/a.toml", 3)
	if err != nil {
		t.Fatalf("expected success with depth 3, got %v", err)
	}
	if config["value"] != int64(1) {
		t.Errorf("expected value 1, got %v", config["value"])
	}
}

func TestTOMLLoader_BadInclude(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/a.toml", `"@include" = 5`)

	if _, err := NewTOMLLoaderWithFS(memfs, "/a.toml").Load(); err == nil {
		t.Error("expected error for non-string include")
	}
}
