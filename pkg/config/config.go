// Package config loads the optional TOML settings file of ralph-mig.
// Keys use the names of the Config fields; command line flags override
// whatever the file sets.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"runtime"

	"github.com/naoina/toml"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// Colour modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config holds every setting the command line also accepts.
type Config struct {
	// Output is the directory artifacts are written to.
	Output string

	// Part selection. When none is set every part is generated.
	User   bool
	Server bool
	Header bool
	Safe   bool

	Defines   []string
	Undefines []string

	// MaxMessageSize rejects larger fixed layouts; 0 disables the check.
	MaxMessageSize uint32

	Async           bool
	ServerInterface bool
	RuntimeImport   string
	Package         string

	// Jobs bounds the files compiled at once.
	Jobs  int
	Color string
}

// Default returns the settings used when neither a file nor a flag sets
// a value.
func Default() Config {
	return Config{
		Output: ".",
		Jobs:   runtime.NumCPU(),
		Color:  ColorAuto,
	}
}

// Load reads file into cfg. Fields absent from the file keep their
// current value.
func Load(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	if err != nil {
		return err
	}
	return cfg.Validate()
}

// Validate rejects values no flag could have produced.
func (c *Config) Validate() error {
	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid Color %q (want %s, %s or %s)", c.Color, ColorAuto, ColorAlways, ColorNever)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("invalid Jobs %d", c.Jobs)
	}
	return nil
}

// AnyPart reports whether the part selection was narrowed.
func (c *Config) AnyPart() bool {
	return c.User || c.Server || c.Header || c.Safe
}

// Dump writes cfg in the format Load reads.
func Dump(w io.Writer, cfg *Config) error {
	out, err := tomlSettings.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
