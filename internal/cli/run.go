package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/shinji-kodama/each/internal/command"
	"github.com/shinji-kodama/each/internal/config"
	"github.com/shinji-kodama/each/internal/docker"
	"github.com/shinji-kodama/each/internal/executor"
	"github.com/shinji-kodama/each/internal/model"
	"github.com/shinji-kodama/each/internal/runner"
	"github.com/shinji-kodama/each/internal/tokenize"
)

// runEach is the main logic of the root command.
//
// Every precondition (flags, defaults file, placeholder, parallelism,
// environment items, encoding) is checked before standard input is read,
// so a bad invocation never consumes its input.
func runEach(cmd *cobra.Command, template string, f *flags) error {
	ctx := cmd.Context()

	// Step 1: Merge the defaults file under the explicit flags.
	defaults, path, err := config.Load(f.config)
	if err != nil {
		return err
	}
	if path != "" {
		VerboseLog("Loaded defaults from %s", path)
		applyDefaults(cmd.Flags(), f, defaults)
	}

	// Step 2: Validate everything before touching stdin.
	opts, err := buildOptions(template, f, defaults)
	if err != nil {
		return err
	}
	VerboseLog("Input: %s", describe(opts))

	// Step 3: Read and tokenize the whole of standard input.
	tokens, err := readTokens(cmd.InOrStdin(), opts)
	if err != nil {
		return err
	}
	VerboseLog("Read %d token(s)", len(tokens))

	// Step 4: Run one command per token.
	exec := &executor.Executor{
		Builder:  command.Builder{Template: opts.Template, Placeholder: opts.Placeholder, Quote: opts.Quote},
		MaxProcs: opts.MaxProcs,
		DryRun:   opts.DryRun,
		Stdout:   cmd.OutOrStdout(),
		Stderr:   cmd.ErrOrStderr(),
		Logf:     VerboseLog,
	}
	if !opts.DryRun && len(tokens) > 0 {
		r, closeRunner, err := newRunner(ctx, cmd, opts)
		if err != nil {
			return err
		}
		defer closeRunner()
		exec.Runner = r
	}

	if code := exec.Run(ctx, tokens); code != int(model.ExitSuccess) {
		return model.ChildFailure(code)
	}
	return nil
}

// applyDefaults copies values from the defaults file into f for every flag
// the user did not set explicitly. The env map is merged in buildOptions.
func applyDefaults(fs *pflag.FlagSet, f *flags, d *config.Defaults) {
	unset := func(name string) bool { return !fs.Changed(name) }

	if d.Placeholder != nil && unset("placeholder") {
		f.placeholder = *d.Placeholder
	}
	if d.Delimiters != nil && unset("delimiter") {
		f.delimiters = d.Delimiters
	}
	if d.Null != nil && unset("null") {
		f.null = *d.Null
	}
	if d.Strip != nil && unset("strip") {
		f.strip = *d.Strip
	}
	if d.KeepEmpty != nil && unset("keep-empty") {
		f.keepEmpty = *d.KeepEmpty
	}
	if d.Encoding != nil && unset("encoding") {
		f.encoding = *d.Encoding
	}
	if d.Errors != nil && unset("errors") {
		f.errors = *d.Errors
	}
	if d.MaxProcs != nil && unset("max-procs") {
		f.maxProcs = *d.MaxProcs
	}
	if d.NoStdin != nil && unset("no-stdin") {
		f.noStdin = *d.NoStdin
	}
	if d.Trace != nil && unset("trace") {
		f.trace = *d.Trace
	}
	if d.Quote != nil && unset("no-quote") {
		f.noQuote = !*d.Quote
	}
	if d.Shell != nil && unset("shell") {
		f.shell = *d.Shell
	}
	if d.Container != nil && unset("container") {
		f.container = *d.Container
	}
}

// buildOptions validates the merged settings into a model.Options.
// Errors are *model.CLIError carrying the matching exit code.
func buildOptions(template string, f *flags, d *config.Defaults) (*model.Options, error) {
	policy, err := model.ParseDecodePolicy(f.errors)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitUsage, "invalid --errors value", err)
	}

	opts := &model.Options{
		Template:     template,
		Placeholder:  f.placeholder,
		Delimiters:   f.delimiters,
		UseNull:      f.null,
		Strip:        f.strip,
		KeepEmpty:    f.keepEmpty,
		Encoding:     f.encoding,
		Errors:       policy,
		MaxProcs:     f.maxProcs,
		ForwardStdin: !f.noStdin,
		DryRun:       f.dryRun,
		Trace:        f.trace,
		Quote:        !f.noQuote,
		Shell:        f.shell,
		Container:    f.container,
	}
	// Placeholder (65) first, then env items (66), then the rest.
	if err := opts.ValidateTemplate(); err != nil {
		return nil, err
	}

	items, err := model.ParseEnvItems(f.env)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitBadEnv, "invalid --env value", err)
	}
	// File entries first, so that --env items override them.
	opts.Env = append(d.EnvOverlay(), items...)

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if _, _, err := tokenize.LookupEncoding(opts.Encoding); err != nil {
		return nil, model.WrapCLIError(model.ExitUsage, "invalid --encoding value", err)
	}
	return opts, nil
}

// readTokens reads all of r, decodes it, and splits it into tokens.
func readTokens(r io.Reader, opts *model.Options) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitUsage, "cannot read standard input", err)
	}

	text, err := tokenize.Decode(data, opts.Encoding, opts.Errors)
	if err != nil {
		var decodeErr *tokenize.DecodeError
		if errors.As(err, &decodeErr) {
			return nil, model.WrapCLIError(model.ExitDecodeFailed, "cannot decode standard input", err)
		}
		return nil, model.WrapCLIError(model.ExitUsage, "cannot decode standard input", err)
	}

	return tokenize.Tokenize(text, tokenize.Options{
		Delimiters: opts.Delimiters,
		UseNull:    opts.UseNull,
		KeepEmpty:  opts.KeepEmpty,
		Strip:      opts.Strip,
	}), nil
}

// newRunner returns the host shell runner, or the container runner when
// --container is set. The returned func releases the runner's resources.
func newRunner(ctx context.Context, cmd *cobra.Command, opts *model.Options) (runner.Runner, func(), error) {
	if opts.Container == "" {
		VerboseLog("Running on host (max procs: %d)", opts.MaxProcs)
		var env []string
		if len(opts.Env) > 0 {
			env = opts.Env.Apply(os.Environ())
		}
		return &runner.Shell{
			Path:         opts.Shell,
			ForwardStdin: opts.ForwardStdin,
			Stdout:       cmd.OutOrStdout(),
			Stderr:       cmd.ErrOrStderr(),
			Env:          env,
			Trace:        opts.Trace,
		}, func() {}, nil
	}

	c, err := docker.NewClient()
	if err != nil {
		return nil, nil, err
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	if err := c.EnsureRunning(ctx, opts.Container); err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	VerboseLog("Connected to Docker daemon; running in container %q (max procs: %d)", opts.Container, opts.MaxProcs)
	if opts.ForwardStdin {
		VerboseLog("stdin is not forwarded into containers")
	}

	cr := docker.NewContainerRunner(c, opts.Container)
	cr.Shell = opts.Shell
	cr.Env = opts.Env.Assignments()
	cr.Stdout = cmd.OutOrStdout()
	cr.Stderr = cmd.ErrOrStderr()
	cr.Trace = opts.Trace

	return cr, func() { _ = c.Close() }, nil
}

// describe renders the options for verbose output.
func describe(opts *model.Options) string {
	mode := "lines"
	switch {
	case opts.UseNull:
		mode = "NUL"
	case len(opts.Delimiters) > 0:
		mode = fmt.Sprintf("delimiters %q", opts.Delimiters)
	}
	return fmt.Sprintf("split on %s, encoding %s (%s)", mode, opts.Encoding, opts.Errors)
}
