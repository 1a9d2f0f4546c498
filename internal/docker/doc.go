// Package docker provides the container execution backend of the each CLI.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows) and daemon health checks
//   - Verifying that the target container is running before any token
//     is processed
//   - Running each built command inside that container through the Engine
//     exec API (ContainerRunner), with stdout/stderr demultiplexed back to
//     this process's streams
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
