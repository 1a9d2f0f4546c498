// Package model defines the domain types and value objects for the
// each CLI.
//
// This package contains pure data structures with no external dependencies.
// All entities (Options, EnvOverlay, exit outcomes) are transient and live
// for a single invocation only. There is no persistent state.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
