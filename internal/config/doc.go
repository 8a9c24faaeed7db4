// Package config loads and validates typebus configuration.
//
// Configuration is layered, lowest priority first:
//
//   - built-in defaults (Default)
//   - a TOML or YAML file, chosen by extension
//   - TYPEBUS_* environment variables
//
// Layers are merged as generic maps by the loader package and decoded into
// Config with unknown keys rejected. The result is validated before it is
// returned, so a *Config obtained from Load is always usable.
//
// Watcher reloads the file when it changes on disk and hands every valid
// new Config to a callback.
package config
