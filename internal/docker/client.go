package docker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/docker/docker/client"

	"github.com/shinji-kodama/each/internal/model"
)

// defaultPingTimeout bounds the daemon health check. Docker Desktop on macOS
// can take a few seconds to answer.
const defaultPingTimeout = 5 * time.Second

// Client wraps the Docker Engine SDK client with socket auto-detection and
// the checks the container backend needs before any token runs.
//
// Usage:
//
//	c, err := docker.NewClient()
//	if err != nil { /* handle */ }
//	defer c.Close()
//	if err := c.Ping(ctx); err != nil { /* daemon unreachable */ }
type Client struct {
	inner *client.Client
}

// NewClient creates a Docker client for the host chosen by resolveHost.
// Errors are *model.CLIError with ExitContainerUnavailable.
func NewClient() (*Client, error) {
	host, err := resolveHost(hostCandidates())
	if err != nil {
		return nil, model.WrapCLIError(model.ExitContainerUnavailable, "Docker socket not found", err)
	}

	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitContainerUnavailable,
			fmt.Sprintf("failed to create Docker client for host %q", host),
			err,
		)
	}
	return &Client{inner: c}, nil
}

// hostCandidates lists the platform's daemon endpoints, most preferred first:
//   - Linux: /var/run/docker.sock, then $XDG_RUNTIME_DIR/docker.sock (rootless)
//   - macOS: /var/run/docker.sock, then ~/.docker/run/docker.sock
//   - Windows: the docker_engine named pipe
func hostCandidates() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"npipe:////./pipe/docker_engine"}
	case "darwin":
		hosts := []string{"unix:///var/run/docker.sock"}
		if home, err := os.UserHomeDir(); err == nil {
			hosts = append(hosts, "unix://"+filepath.Join(home, ".docker", "run", "docker.sock"))
		}
		return hosts
	default:
		hosts := []string{"unix:///var/run/docker.sock"}
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			hosts = append(hosts, "unix://"+filepath.Join(dir, "docker.sock"))
		}
		return hosts
	}
}

// resolveHost returns DOCKER_HOST when set, otherwise the first candidate
// whose endpoint exists. Only existence is checked; Ping verifies the daemon.
func resolveHost(candidates []string) (string, error) {
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		return host, nil
	}
	for _, host := range candidates {
		path, isSocket := strings.CutPrefix(host, "unix://")
		if !isSocket {
			// Named pipes cannot be stat'ed; leave them to Ping.
			return host, nil
		}
		if _, err := os.Stat(path); err == nil {
			return host, nil
		}
	}
	return "", fmt.Errorf("no Docker endpoint found at any of %v (is Docker running?)", candidates)
}

// Ping verifies that the daemon is reachable within defaultPingTimeout.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return model.WrapCLIError(
			model.ExitContainerUnavailable,
			"Docker daemon is not responding (is Docker running?)",
			err,
		)
	}
	return nil
}

// EnsureRunning verifies that the named container exists and is running.
// exec instances can only be created in running containers, so this is
// checked once before any token is processed.
func (c *Client) EnsureRunning(ctx context.Context, name string) error {
	info, err := c.inner.ContainerInspect(ctx, name)
	if err != nil {
		return model.WrapCLIError(
			model.ExitContainerUnavailable,
			fmt.Sprintf("cannot inspect container %q", name),
			err,
		)
	}
	if info.ContainerJSONBase == nil || info.State == nil || !info.State.Running {
		return model.NewCLIError(
			model.ExitContainerUnavailable,
			fmt.Sprintf("container %q is not running", name),
		)
	}
	return nil
}

// Close releases the client's resources. Safe to call more than once.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

// Inner returns the underlying SDK client for operations not wrapped here.
func (c *Client) Inner() *client.Client {
	return c.inner
}
