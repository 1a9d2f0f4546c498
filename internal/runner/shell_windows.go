//go:build windows

package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

func defaultShell() string {
	if comspec := os.Getenv("COMSPEC"); comspec != "" {
		return comspec
	}
	return "cmd.exe"
}

// shellCommand passes the command line to cmd.exe untouched. cmd does not
// follow the CommandLineToArgvW quoting that exec.Command would apply.
func shellCommand(ctx context.Context, shell, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, shell)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine: fmt.Sprintf(`%s /c "%s"`, syscall.EscapeArg(shell), command),
	}
	return cmd
}

func signalNumber(*exec.ExitError) (int, bool) {
	return 0, false
}
