package runner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requirePOSIX skips tests that need /bin/sh semantics.
func requirePOSIX(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell required")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

// newTestShell returns a Shell writing into fresh buffers.
func newTestShell() (*Shell, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &Shell{Stdout: &stdout, Stderr: &stderr}, &stdout, &stderr
}

// TestShellRun_ExitCodes verifies the child's status is returned unchanged.
func TestShellRun_ExitCodes(t *testing.T) {
	requirePOSIX(t)

	tests := []struct {
		command string
		want    int
	}{
		{"true", 0},
		{"false", 1},
		{"exit 2", 2},
		{"exit 255", 255},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sh, _, _ := newTestShell()
			assert.Equal(t, tt.want, sh.Run(context.Background(), tt.command))
		})
	}
}

// TestShellRun_Signal verifies a child killed by a signal reports 128+N.
func TestShellRun_Signal(t *testing.T) {
	requirePOSIX(t)

	sh, _, _ := newTestShell()
	assert.Equal(t, 128+9, sh.Run(context.Background(), "kill -9 $$"))
}

// TestShellRun_Streams verifies stdout and stderr are wired separately.
func TestShellRun_Streams(t *testing.T) {
	requirePOSIX(t)

	sh, stdout, stderr := newTestShell()
	code := sh.Run(context.Background(), "echo out; echo err >&2")

	require.Equal(t, 0, code)
	assert.Equal(t, "out\n", stdout.String())
	assert.Equal(t, "err\n", stderr.String())
}

// TestShellRun_Trace verifies the command is echoed before it runs, even
// when it fails.
func TestShellRun_Trace(t *testing.T) {
	requirePOSIX(t)

	sh, _, stderr := newTestShell()
	sh.Trace = true

	code := sh.Run(context.Background(), "exit 3")

	assert.Equal(t, 3, code)
	assert.Equal(t, "+ exit 3\n", stderr.String())
}

// TestShellRun_Stdin verifies stdin is forwarded only when requested.
func TestShellRun_Stdin(t *testing.T) {
	requirePOSIX(t)

	t.Run("forwarded", func(t *testing.T) {
		sh, stdout, _ := newTestShell()
		sh.ForwardStdin = true
		sh.Stdin = strings.NewReader("hello\n")

		require.Equal(t, 0, sh.Run(context.Background(), "cat"))
		assert.Equal(t, "hello\n", stdout.String())
	})

	t.Run("not forwarded", func(t *testing.T) {
		sh, stdout, _ := newTestShell()
		sh.Stdin = strings.NewReader("hello\n")

		require.Equal(t, 0, sh.Run(context.Background(), "cat"))
		assert.Empty(t, stdout.String())
	})
}

// TestShellRun_Env verifies an explicit environment replaces the inherited one.
func TestShellRun_Env(t *testing.T) {
	requirePOSIX(t)

	sh, stdout, _ := newTestShell()
	sh.Env = []string{"EACH_TEST_VAR=overlay", "PATH=" + os.Getenv("PATH")}

	require.Equal(t, 0, sh.Run(context.Background(), `printf %s "$EACH_TEST_VAR"`))
	assert.Equal(t, "overlay", stdout.String())
}

// TestShellRun_ExplicitShell verifies the interpreter override is used.
func TestShellRun_ExplicitShell(t *testing.T) {
	requirePOSIX(t)

	sh, stdout, _ := newTestShell()
	sh.Path = "/bin/sh"

	require.Equal(t, 0, sh.Run(context.Background(), "echo ok"))
	assert.Equal(t, "ok\n", stdout.String())
}

// TestShellRun_MissingShell verifies a missing interpreter is a child
// failure with status 127, not a panic or error.
func TestShellRun_MissingShell(t *testing.T) {
	requirePOSIX(t)

	sh, _, stderr := newTestShell()
	sh.Path = filepath.Join(t.TempDir(), "no-such-shell")

	assert.Equal(t, StatusNotFound, sh.Run(context.Background(), "true"))
	assert.Contains(t, stderr.String(), "ERROR: cannot run shell")
}

// TestShellRun_NotExecutableShell verifies a non-executable interpreter
// reports status 126.
func TestShellRun_NotExecutableShell(t *testing.T) {
	requirePOSIX(t)

	path := filepath.Join(t.TempDir(), "not-exec")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o644))

	sh, _, _ := newTestShell()
	sh.Path = path

	assert.Equal(t, StatusNotExecutable, sh.Run(context.Background(), "true"))
}
