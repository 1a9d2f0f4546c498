package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/shinji-kodama/each/internal/runner"
)

// StatusDaemonError is reported when the daemon fails to run the exec
// instance at all, matching the docker CLI's own exit code for that case.
const StatusDaemonError = 125

// inspectRetries bounds how long Run waits for the daemon to record the exit
// code after the output stream has closed.
const (
	inspectRetries  = 20
	inspectInterval = 50 * time.Millisecond
)

// execAPI is the subset of the Docker SDK used to run a command in a
// container. *client.Client satisfies it.
type execAPI interface {
	ContainerExecCreate(ctx context.Context, container string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
}

var _ runner.Runner = (*ContainerRunner)(nil)

// ContainerRunner executes commands inside a running container through the
// Engine exec API, the equivalent of `docker exec <container> sh -c <cmd>`.
//
// Stdin is never attached. Only the overlay assignments are passed as the
// exec environment; the host environment does not leak into the container.
type ContainerRunner struct {
	api execAPI

	// Container is the container name or ID.
	Container string

	// Shell is the interpreter inside the container. Defaults to /bin/sh.
	Shell string

	// Env holds KEY=VALUE assignments added to the container's environment.
	Env []string

	// Stdout and Stderr receive the demultiplexed output streams.
	Stdout io.Writer
	Stderr io.Writer

	// Trace writes "+ <command>" to Stderr before each execution.
	Trace bool
}

// NewContainerRunner returns a runner bound to the client and container.
func NewContainerRunner(c *Client, containerName string) *ContainerRunner {
	return &ContainerRunner{api: c.Inner(), Container: containerName}
}

// Run executes command in the container and returns its exit code.
func (r *ContainerRunner) Run(ctx context.Context, command string) int {
	stderr := r.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if r.Trace {
		runner.WriteTrace(stderr, command)
	}

	status, err := r.exec(ctx, command, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return StatusDaemonError
	}
	return status
}

func (r *ContainerRunner) exec(ctx context.Context, command string, stderr io.Writer) (int, error) {
	stdout := r.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	created, err := r.api.ContainerExecCreate(ctx, r.Container, container.ExecOptions{
		Cmd:          r.argv(command),
		Env:          r.Env,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return 0, fmt.Errorf("creating exec in container %q: %w", r.Container, err)
	}

	attach, err := r.api.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return 0, fmt.Errorf("attaching to exec %s: %w", created.ID, err)
	}
	defer attach.Close()

	// Without a TTY the daemon multiplexes both streams on one connection.
	if _, err := stdcopy.StdCopy(stdout, stderr, attach.Reader); err != nil {
		return 0, fmt.Errorf("reading exec output: %w", err)
	}

	for i := 0; ; i++ {
		info, err := r.api.ContainerExecInspect(ctx, created.ID)
		if err != nil {
			return 0, fmt.Errorf("inspecting exec %s: %w", created.ID, err)
		}
		if !info.Running {
			return info.ExitCode, nil
		}
		if i == inspectRetries {
			return 0, fmt.Errorf("exec %s still running after its output closed", created.ID)
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(inspectInterval):
		}
	}
}

func (r *ContainerRunner) argv(command string) []string {
	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	return []string{shell, "-c", command}
}
