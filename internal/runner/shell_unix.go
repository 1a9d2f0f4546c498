//go:build !windows

package runner

import (
	"context"
	"os/exec"
	"syscall"
)

func defaultShell() string {
	return "/bin/sh"
}

func shellCommand(ctx context.Context, shell, command string) *exec.Cmd {
	return exec.CommandContext(ctx, shell, "-c", command)
}

func signalNumber(exitErr *exec.ExitError) (int, bool) {
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return 0, false
	}
	return int(ws.Signal()), true
}
