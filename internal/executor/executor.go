// Package executor drives the build-and-run pipeline over a token sequence
// and reduces the children's exit statuses to one process outcome.
//
// Two modes are supported:
//   - Sequential (MaxProcs <= 1): tokens run strictly in order and the first
//     failure stops the run. Remaining tokens are never built.
//   - Bounded-parallel (MaxProcs = N > 1): every token runs on a pool of at
//     most N workers (errgroup with SetLimit). The first non-zero status
//     observed in completion order wins; later failures are ignored. Which
//     of several concurrent failures is observed first is not deterministic.
//
// In-flight children are never cancelled when another one fails.
package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/shinji-kodama/each/internal/command"
	"github.com/shinji-kodama/each/internal/model"
	"github.com/shinji-kodama/each/internal/runner"
)

// Executor runs one command per token.
//
// All fields are read-only once Run starts, so they are shared by the
// workers without synchronization.
type Executor struct {
	// Runner executes built commands. Unused in dry-run mode.
	Runner runner.Runner

	// Builder turns a token into a command string.
	Builder command.Builder

	// MaxProcs is the degree of parallelism. Values below 2 run sequentially.
	MaxProcs int

	// DryRun prints each built command to Stdout instead of running it.
	DryRun bool

	// Stdout receives dry-run output. Defaults to os.Stdout.
	Stdout io.Writer

	// Stderr receives the error line when dry-run output cannot be written.
	// Defaults to os.Stderr.
	Stderr io.Writer

	// Logf, when set, receives diagnostic messages (e.g. cli.VerboseLog).
	Logf func(format string, args ...interface{})
}

// Run processes tokens and returns the process exit code: 0 when every
// command succeeded (or there was nothing to do), otherwise the first
// failure's status as mapped by model.FailureCode.
func (e *Executor) Run(ctx context.Context, tokens []string) int {
	if len(tokens) == 0 {
		e.logf("No tokens read; nothing to do")
		return int(model.ExitSuccess)
	}

	switch {
	case e.DryRun:
		return e.runDry(tokens)
	case e.MaxProcs <= 1:
		e.logf("Running %d commands sequentially", len(tokens))
		return e.runSequential(ctx, tokens)
	default:
		e.logf("Running %d commands with up to %d in parallel", len(tokens), e.MaxProcs)
		return e.runParallel(ctx, tokens)
	}
}

// runDry writes one built command per line in token order. A write failure
// (closed pipe, full disk) stops the listing and yields ExitIOError.
func (e *Executor) runDry(tokens []string) int {
	out := e.Stdout
	if out == nil {
		out = os.Stdout
	}
	w := bufio.NewWriter(out)
	for _, tok := range tokens {
		if _, err := w.WriteString(e.Builder.Build(tok) + "\n"); err != nil {
			break
		}
	}
	if err := w.Flush(); err != nil {
		stderr := e.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		fmt.Fprintf(stderr, "ERROR: writing dry-run output: %v\n", err)
		return int(model.ExitIOError)
	}
	return int(model.ExitSuccess)
}

// runSequential stops at the first non-zero status.
func (e *Executor) runSequential(ctx context.Context, tokens []string) int {
	for i, tok := range tokens {
		status := e.Runner.Run(ctx, e.Builder.Build(tok))
		if status != 0 {
			e.logf("Command for token %d (%q) exited with status %d; skipping %d remaining",
				i+1, tok, status, len(tokens)-i-1)
			return model.FailureCode(status)
		}
	}
	return int(model.ExitSuccess)
}

// runParallel runs every token and keeps the first failure to complete.
func (e *Executor) runParallel(ctx context.Context, tokens []string) int {
	var first atomic.Int64

	var g errgroup.Group
	g.SetLimit(e.MaxProcs)

	for _, tok := range tokens {
		tok := tok
		cmd := e.Builder.Build(tok)
		g.Go(func() error {
			status := e.Runner.Run(ctx, cmd)
			if status != 0 {
				e.logf("Command for token %q exited with status %d", tok, status)
				first.CompareAndSwap(0, int64(model.FailureCode(status)))
			}
			// Failures are data here; the group never sees an error.
			return nil
		})
	}
	_ = g.Wait()

	return int(first.Load())
}

func (e *Executor) logf(format string, args ...interface{}) {
	if e.Logf != nil {
		e.Logf(format, args...)
	}
}
