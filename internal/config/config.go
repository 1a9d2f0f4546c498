// Package config loads the optional defaults file of the each CLI.
//
// The file supplies default values for command-line flags. It is looked up
// in this order, and the first match wins:
//  1. the --config flag
//  2. the EACH_CONFIG environment variable
//  3. <user config dir>/each/config.{yaml,yml,toml,json,jsonc}
//
// The format is chosen by file extension. YAML is parsed with
// gopkg.in/yaml.v3, TOML with github.com/BurntSushi/toml, and JSON with
// comments is normalized by github.com/tidwall/jsonc before encoding/json
// decodes it. Unknown keys are rejected in every format.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/each/internal/model"
)

// EnvVar names the environment variable that points at a defaults file.
const EnvVar = "EACH_CONFIG"

// appDir is the directory under os.UserConfigDir holding the defaults file.
const appDir = "each"

// searchNames lists the file names looked up in the user config directory,
// in priority order.
var searchNames = []string{
	"config.yaml",
	"config.yml",
	"config.toml",
	"config.json",
	"config.jsonc",
}

// Defaults holds the values read from a defaults file.
// A nil pointer (or nil slice/map) means the key was absent, so the
// built-in flag default applies.
type Defaults struct {
	Placeholder *string           `yaml:"placeholder" toml:"placeholder" json:"placeholder"`
	Delimiters  []string          `yaml:"delimiters" toml:"delimiters" json:"delimiters"`
	Null        *bool             `yaml:"null" toml:"null" json:"null"`
	Strip       *bool             `yaml:"strip" toml:"strip" json:"strip"`
	KeepEmpty   *bool             `yaml:"keep_empty" toml:"keep_empty" json:"keep_empty"`
	Encoding    *string           `yaml:"encoding" toml:"encoding" json:"encoding"`
	Errors      *string           `yaml:"errors" toml:"errors" json:"errors"`
	MaxProcs    *int              `yaml:"max_procs" toml:"max_procs" json:"max_procs"`
	NoStdin     *bool             `yaml:"no_stdin" toml:"no_stdin" json:"no_stdin"`
	Trace       *bool             `yaml:"trace" toml:"trace" json:"trace"`
	Quote       *bool             `yaml:"quote" toml:"quote" json:"quote"`
	Shell       *string           `yaml:"shell" toml:"shell" json:"shell"`
	Container   *string           `yaml:"container" toml:"container" json:"container"`
	Env         map[string]string `yaml:"env" toml:"env" json:"env"`
}

// Load finds and parses the defaults file.
//
// explicitPath is the value of --config; an empty string means "not given".
// It returns the parsed defaults and the path they came from. When no file
// is configured or found, it returns empty Defaults and an empty path.
//
// An explicit path (flag or EACH_CONFIG) that does not exist is an error.
// All errors are *model.CLIError with ExitUsage.
func Load(explicitPath string) (*Defaults, string, error) {
	path, err := Discover(explicitPath)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return &Defaults{}, "", nil
	}

	d, err := LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	return d, path, nil
}

// Discover returns the path of the defaults file to use, or "" if none.
func Discover(explicitPath string) (string, error) {
	if explicitPath == "" {
		explicitPath = os.Getenv(EnvVar)
	}
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", model.WrapCLIError(model.ExitUsage,
				fmt.Sprintf("cannot read config file %s", explicitPath), err)
		}
		return explicitPath, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		// No home directory (e.g. a minimal container): nothing to discover.
		return "", nil
	}
	return findIn(filepath.Join(dir, appDir)), nil
}

// findIn returns the first searchNames entry present in dir, or "".
func findIn(dir string) string {
	for _, name := range searchNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// LoadFile parses the defaults file at path. The format follows the
// extension; files without a recognized extension are read as YAML.
func LoadFile(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitUsage,
			fmt.Sprintf("cannot read config file %s", path), err)
	}

	d, err := parse(data, formatOf(path))
	if err != nil {
		return nil, model.WrapCLIError(model.ExitUsage,
			fmt.Sprintf("invalid config file %s", path), err)
	}
	return d, nil
}

type format int

const (
	formatYAML format = iota
	formatTOML
	formatJSON
)

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return formatTOML
	case ".json", ".jsonc":
		return formatJSON
	default:
		return formatYAML
	}
}

func parse(data []byte, f format) (*Defaults, error) {
	var d Defaults

	switch f {
	case formatTOML:
		md, err := toml.Decode(string(data), &d)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
		}

	case formatJSON:
		// jsonc.ToJSON strips comments and trailing commas.
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}

	return &d, nil
}

// EnvOverlay returns the file's env map as an overlay sorted by key.
func (d *Defaults) EnvOverlay() model.EnvOverlay {
	if len(d.Env) == 0 {
		return nil
	}
	return model.EnvFromMap(d.Env)
}
