// Package model defines the domain types for the each CLI.
//
// These types are the validated configuration bundle handed from the CLI
// front-end to the execution orchestrator, plus the exit code taxonomy
// shared by every layer.
package model

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// DefaultPlaceholder is the substring replaced by each token when no
// --placeholder flag is given.
const DefaultPlaceholder = "{}"

// DefaultEncoding is the text encoding used to decode standard input.
const DefaultEncoding = "utf-8"

// DecodePolicy controls how malformed input bytes are handled while
// decoding standard input into text.
type DecodePolicy string

const (
	// PolicyStrict rejects malformed input. No tokens are produced.
	PolicyStrict DecodePolicy = "strict"

	// PolicyReplace substitutes U+FFFD for every malformed byte.
	PolicyReplace DecodePolicy = "replace"

	// PolicyIgnore drops malformed bytes silently.
	PolicyIgnore DecodePolicy = "ignore"

	// PolicyPassthrough keeps malformed bytes verbatim in the token text,
	// so they reach the child command unchanged.
	PolicyPassthrough DecodePolicy = "passthrough"
)

// String returns the string representation of DecodePolicy.
func (p DecodePolicy) String() string {
	return string(p)
}

// IsValid checks whether the DecodePolicy value is one of the
// predefined policies.
func (p DecodePolicy) IsValid() bool {
	switch p {
	case PolicyStrict, PolicyReplace, PolicyIgnore, PolicyPassthrough:
		return true
	default:
		return false
	}
}

// ParseDecodePolicy converts a string to a DecodePolicy.
// The names "surrogateescape" and "surrogatepass" are accepted as aliases of
// "passthrough" so that existing scripts keep working.
func ParseDecodePolicy(s string) (DecodePolicy, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "surrogateescape", "surrogatepass":
		return PolicyPassthrough, nil
	}
	policy := DecodePolicy(name)
	if !policy.IsValid() {
		return "", fmt.Errorf("invalid decode policy: %q (valid: strict, replace, ignore, passthrough)", s)
	}
	return policy, nil
}

// Options is the fully validated configuration bundle for one run.
// It is built once by the CLI front-end and treated as read-only afterwards.
type Options struct {
	// Template is the command template. It contains Placeholder at least once.
	Template string

	// Placeholder is the literal substring replaced by each token.
	Placeholder string

	// Delimiters are literal split strings. Ignored when UseNull is set.
	// When empty, input is split on line boundaries.
	Delimiters []string

	// UseNull splits input on NUL bytes.
	UseNull bool

	// Strip trims leading and trailing whitespace from each token.
	Strip bool

	// KeepEmpty keeps empty tokens instead of dropping them.
	KeepEmpty bool

	// Encoding is the text encoding of standard input.
	Encoding string

	// Errors is the decode error policy.
	Errors DecodePolicy

	// MaxProcs is the degree of parallelism (>= 1).
	MaxProcs int

	// ForwardStdin connects the parent's stdin to each child.
	// Must be false when MaxProcs > 1.
	ForwardStdin bool

	// DryRun prints built commands instead of running them.
	DryRun bool

	// Trace echoes each command to stderr before it runs.
	Trace bool

	// Quote shell-quotes tokens before substitution.
	Quote bool

	// Env is the environment overlay. Empty means children inherit the
	// ambient environment unchanged.
	Env EnvOverlay

	// Shell is an optional interpreter override (e.g. /bin/bash).
	Shell string

	// Container, when set, names a running container in which each command
	// is executed instead of on the host.
	Container string
}

// ValidateTemplate checks that the placeholder is non-empty and occurs in
// the template. It is the first precondition checked, ahead of the
// environment overlay.
func (o *Options) ValidateTemplate() error {
	if o.Placeholder == "" {
		return NewCLIError(ExitNoPlaceholder, "placeholder must not be empty")
	}
	if !strings.Contains(o.Template, o.Placeholder) {
		return NewCLIError(ExitNoPlaceholder,
			fmt.Sprintf("command must contain placeholder %q", o.Placeholder))
	}
	return nil
}

// Validate checks the preconditions that must hold before any input is read.
// The returned error is always a *CLIError carrying a distinct exit code.
func (o *Options) Validate() error {
	if err := o.ValidateTemplate(); err != nil {
		return err
	}
	if o.MaxProcs < 1 {
		return NewCLIError(ExitUsage,
			fmt.Sprintf("-P/--max-procs must be at least 1, got %d", o.MaxProcs))
	}
	if o.MaxProcs > 1 && o.ForwardStdin {
		return NewCLIError(ExitNeedsNoStdin,
			"-P/--max-procs > 1 requires --no-stdin to avoid stdin contention")
	}
	if !o.UseNull {
		for _, d := range o.Delimiters {
			if d == "" {
				return NewCLIError(ExitUsage, "delimiter must not be empty")
			}
		}
	}
	if !o.Errors.IsValid() {
		return NewCLIError(ExitUsage, fmt.Sprintf("invalid decode policy %q", o.Errors))
	}
	return nil
}

// EnvOverlay is an ordered list of environment assignments applied over the
// ambient process environment. Later entries win over earlier ones.
type EnvOverlay []EnvVar

// EnvVar is a single KEY=VALUE assignment.
type EnvVar struct {
	Key   string
	Value string
}

// String renders the assignment in KEY=VALUE form.
func (v EnvVar) String() string {
	return v.Key + "=" + v.Value
}

// ParseEnvItems validates and parses KEY=VALUE items.
// An item without "=" or with an empty key (leading "=") is rejected.
func ParseEnvItems(items []string) (EnvOverlay, error) {
	overlay := make(EnvOverlay, 0, len(items))
	for _, item := range items {
		key, value, ok := strings.Cut(item, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid env item (expected KEY=VALUE): %q", item)
		}
		overlay = append(overlay, EnvVar{Key: key, Value: value})
	}
	return overlay, nil
}

// EnvFromMap converts a map into an overlay sorted by key, so that
// configuration files produce a deterministic order.
func EnvFromMap(m map[string]string) EnvOverlay {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	overlay := make(EnvOverlay, 0, len(keys))
	for _, k := range keys {
		overlay = append(overlay, EnvVar{Key: k, Value: m[k]})
	}
	return overlay
}

// Assignments returns the overlay as KEY=VALUE strings with duplicate keys
// collapsed to their last value, in first-seen order.
func (o EnvOverlay) Assignments() []string {
	return o.Apply(nil)
}

// Apply merges the overlay over base (a list of KEY=VALUE strings, as
// returned by os.Environ) and returns a new slice. base is not modified.
// Keys already present in base keep their position; new keys are appended.
func (o EnvOverlay) Apply(base []string) []string {
	merged := make([]string, 0, len(base)+len(o))
	index := make(map[string]int, len(base)+len(o))

	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if i, seen := index[envKey(key)]; seen {
			merged[i] = kv
			continue
		}
		index[envKey(key)] = len(merged)
		merged = append(merged, kv)
	}

	for _, v := range o {
		if i, seen := index[envKey(v.Key)]; seen {
			merged[i] = v.String()
			continue
		}
		index[envKey(v.Key)] = len(merged)
		merged = append(merged, v.String())
	}
	return merged
}

// envKey normalizes a variable name for comparison.
// Windows environment names are case-insensitive.
func envKey(key string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(key)
	}
	return key
}

// ExitCode defines the process exit codes of the CLI.
// Precondition failures use the sysexits-style 64+ range so that callers can
// tell "bad invocation" apart from "a child command failed".
type ExitCode int

const (
	// ExitSuccess indicates every command succeeded (or there was no work).
	ExitSuccess ExitCode = 0

	// ExitUsage indicates a malformed invocation: bad flag or flag value,
	// unreadable defaults file, unknown encoding.
	ExitUsage ExitCode = 64

	// ExitNoPlaceholder indicates the command template does not contain
	// the placeholder.
	ExitNoPlaceholder ExitCode = 65

	// ExitBadEnv indicates a malformed --env item.
	ExitBadEnv ExitCode = 66

	// ExitNeedsNoStdin indicates parallel mode was requested while stdin
	// forwarding is still enabled.
	ExitNeedsNoStdin ExitCode = 67

	// ExitDecodeFailed indicates standard input could not be decoded under
	// the strict policy.
	ExitDecodeFailed ExitCode = 68

	// ExitContainerUnavailable indicates the container backend could not
	// reach the Docker daemon.
	ExitContainerUnavailable ExitCode = 69

	// ExitChildFailed is the sentinel reported when a child failed but its
	// own exit status cannot be represented as a non-zero process exit code.
	ExitChildFailed ExitCode = 70

	// ExitIOError indicates this process could not write its own output,
	// such as the dry-run listing.
	ExitIOError ExitCode = 74
)

// FailureCode maps a child's non-zero exit status to the code this process
// reports. Codes that the host cannot represent as a non-zero exit status
// (negative values, or values that wrap to zero modulo 256 on Unix) are
// replaced by ExitChildFailed so that a failure is never reported as success.
func FailureCode(status int) int {
	if status <= 0 {
		return int(ExitChildFailed)
	}
	if runtime.GOOS != "windows" && status > 255 {
		return int(ExitChildFailed)
	}
	return status
}

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error

	// Silent suppresses the ERROR: line. Child failures are silent because
	// the child's own stderr is the diagnostic.
	Silent bool
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// ChildFailure creates a silent CLIError carrying a child's exit code.
func ChildFailure(code int) *CLIError {
	return &CLIError{Code: ExitCode(code), Silent: true}
}
