// Package runner executes built commands through a system shell.
//
// A Runner returns the child's exit status as plain data. It never returns
// an error: launch failures (interpreter missing, permission denied) are
// reported as a non-zero status using the usual shell conventions, so the
// executor only aggregates integers.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"

	"github.com/shinji-kodama/each/internal/model"
)

const (
	// StatusNotExecutable is reported when the interpreter exists but cannot
	// be executed (shell convention).
	StatusNotExecutable = 126

	// StatusNotFound is reported when the interpreter does not exist
	// (shell convention).
	StatusNotFound = 127

	// signalStatusBase is added to the signal number of a child killed by a
	// signal, as POSIX shells do.
	signalStatusBase = 128
)

// Runner executes one command string and returns its exit status.
// Implementations must be safe for concurrent use.
type Runner interface {
	Run(ctx context.Context, command string) int
}

// Shell runs commands through a command interpreter on the host.
//
// A Shell is configured once and then shared read-only by all workers.
type Shell struct {
	// Path is the interpreter (e.g. /bin/bash). Empty selects /bin/sh on
	// Unix and %COMSPEC% on Windows.
	Path string

	// ForwardStdin connects Stdin to the child. When false the child reads
	// from the null device.
	ForwardStdin bool

	// Stdin is the reader forwarded to children. Defaults to os.Stdin.
	Stdin io.Reader

	// Stdout and Stderr receive the child's output. They default to the
	// process's own streams. When they are *os.File the child writes to the
	// descriptor directly, so output is not buffered.
	Stdout io.Writer
	Stderr io.Writer

	// Env is the complete child environment as KEY=VALUE strings.
	// nil means the child inherits this process's environment.
	Env []string

	// Trace writes "+ <command>" to Stderr before each execution.
	Trace bool
}

// Run executes command and returns the child's exit status.
func (s *Shell) Run(ctx context.Context, command string) int {
	stderr := s.stderr()
	if s.Trace {
		WriteTrace(stderr, command)
	}

	shell := s.Path
	if shell == "" {
		shell = defaultShell()
	}

	// #nosec G204 -- running the user's command is the purpose of this tool.
	cmd := shellCommand(ctx, shell, command)
	if s.ForwardStdin {
		cmd.Stdin = s.Stdin
		if cmd.Stdin == nil {
			cmd.Stdin = os.Stdin
		}
	}
	cmd.Stdout = s.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = stderr
	cmd.Env = s.Env

	err := cmd.Run()
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitStatus(exitErr)
	}

	// The interpreter never started.
	fmt.Fprintf(stderr, "ERROR: cannot run shell %q: %v\n", shell, err)
	return launchStatus(err)
}

func (s *Shell) stderr() io.Writer {
	if s.Stderr == nil {
		return os.Stderr
	}
	return s.Stderr
}

// WriteTrace echoes a command in xargs -t style.
func WriteTrace(w io.Writer, command string) {
	fmt.Fprintf(w, "+ %s\n", command)
}

// exitStatus extracts the child's status. A child killed by signal N
// reports 128+N.
func exitStatus(exitErr *exec.ExitError) int {
	if sig, ok := signalNumber(exitErr); ok {
		return signalStatusBase + sig
	}
	if code := exitErr.ExitCode(); code != 0 {
		return code
	}
	return int(model.ExitChildFailed)
}

// launchStatus maps a start failure onto a shell-style status.
func launchStatus(err error) int {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return StatusNotFound
	case errors.Is(err, fs.ErrPermission):
		return StatusNotExecutable
	default:
		return int(model.ExitChildFailed)
	}
}
