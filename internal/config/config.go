package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Dispatcher names.
const (
	DispatcherQueued    = "queued"
	DispatcherImmediate = "immediate"
)

// Executor names.
const (
	ExecutorDirect = "direct"
	ExecutorPool   = "pool"
)

// Config is the complete typebus configuration.
type Config struct {
	Bus         Bus         `yaml:"bus" toml:"bus"`
	Logging     Logging     `yaml:"logging" toml:"logging"`
	Diagnostics Diagnostics `yaml:"diagnostics" toml:"diagnostics"`
}

// Bus configures how a bus routes and delivers events.
type Bus struct {
	Identifier     string        `yaml:"identifier" toml:"identifier" validate:"required"`
	Dispatcher     string        `yaml:"dispatcher" toml:"dispatcher" validate:"oneof=queued immediate"`
	Executor       string        `yaml:"executor" toml:"executor" validate:"oneof=direct pool"`
	Workers        int           `yaml:"workers" toml:"workers" validate:"min=1,max=1024"`
	QueueSize      int           `yaml:"queueSize" toml:"queueSize" validate:"min=1"`
	ReceiverPrefix string        `yaml:"receiverPrefix" toml:"receiverPrefix" validate:"required,exported"`
	StopTimeout    time.Duration `yaml:"stopTimeout" toml:"stopTimeout" validate:"min=0"`
}

// Logging configures the process logger.
type Logging struct {
	Level  string `yaml:"level" toml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" toml:"format" validate:"oneof=auto text json"`
}

// Diagnostics configures the dead event and failure recorder.
type Diagnostics struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
	// Path receives one JSON record per line. Empty means standard error.
	Path string `yaml:"path" toml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Bus: Bus{
			Identifier:     "default",
			Dispatcher:     DispatcherQueued,
			Executor:       ExecutorDirect,
			Workers:        4,
			QueueSize:      1024,
			ReceiverPrefix: "On",
			StopTimeout:    5 * time.Second,
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
		Diagnostics: Diagnostics{
			Enabled: true,
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("exported", func(fl validator.FieldLevel) bool {
		r, _ := utf8.DecodeRuneInString(fl.Field().String())
		return unicode.IsUpper(r)
	})
	return v
}

// Validate checks every field and reports all violations together.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	result := &ValidationErrors{}
	for _, e := range fieldErrs {
		field := fieldPath(e)
		result.Errors = append(result.Errors, ValidationError{
			Field:   field,
			Message: formatValidationMessage(field, e),
		})
	}
	return result
}

// fieldPath strips the root struct name from the namespace: "bus.workers".
func fieldPath(e validator.FieldError) string {
	_, path, ok := strings.Cut(e.Namespace(), ".")
	if !ok {
		return e.Field()
	}
	return path
}

func formatValidationMessage(field string, e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "exported":
		return fmt.Sprintf("%s must start with an upper-case letter", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}
