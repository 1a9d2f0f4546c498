// Package cli implements the cobra-based command line of each.
//
// each is a single-command CLI: the root command reads standard input,
// splits it into tokens, and runs the command template once per token.
// This file defines the root command, its flags, and the exit code mapping.
// The pipeline itself lives in run.go.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/each/internal/model"
)

// verbose enables [verbose] diagnostics on stderr.
var verbose bool

// Version, Commit, and Date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// flags holds the raw command-line values before they are merged with the
// defaults file and validated into a model.Options.
type flags struct {
	placeholder string
	delimiters  []string
	null        bool
	strip       bool
	keepEmpty   bool
	encoding    string
	errors      string
	maxProcs    int
	noStdin     bool
	dryRun      bool
	trace       bool
	noQuote     bool
	env         []string
	shell       string
	container   string
	config      string
}

// NewRootCommand creates and configures the root cobra command.
func NewRootCommand() *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:   "each [flags] <command-template>",
		Short: "Run a command once per token read from standard input",
		Long: `each reads standard input, splits it into tokens, and runs the command
template once per token with the placeholder replaced by the token.

Tokens are shell-quoted before substitution unless --no-quote is given.
With -P N, up to N commands run at once; stdin forwarding must then be
disabled with --no-stdin.

Defaults for most flags can be set in a config file (YAML, TOML or JSONC),
found via --config, $EACH_CONFIG, or <user config dir>/each/config.*.

Examples:
  ls | each 'wc -l {}'
  find . -name '*.go' -print0 | each -0 -P 4 --no-stdin 'gofmt -l {}'
  printf 'a,b,c' | each -d , --dry-run 'echo {}'
  cat hosts | each --container tools 'ping -c1 {}'`,

		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return model.WrapCLIError(model.ExitUsage, "expected exactly one command template", err)
			}
			return nil
		},

		RunE: func(cmd *cobra.Command, args []string) error {
			return runEach(cmd, args[0], f)
		},

		// Errors and usage are reported by Execute, with our own exit codes.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	fl := rootCmd.Flags()
	fl.StringVarP(&f.placeholder, "placeholder", "p", model.DefaultPlaceholder, "Placeholder replaced by each token")
	fl.StringArrayVarP(&f.delimiters, "delimiter", "d", nil, "Literal token delimiter (repeatable; default: line breaks)")
	fl.BoolVarP(&f.null, "null", "0", false, "Split input on NUL bytes")
	fl.BoolVar(&f.strip, "strip", false, "Trim surrounding whitespace from each token")
	fl.BoolVar(&f.keepEmpty, "keep-empty", false, "Keep empty tokens")
	fl.StringVarP(&f.encoding, "encoding", "E", model.DefaultEncoding, "Encoding of standard input")
	fl.StringVar(&f.errors, "errors", string(model.PolicyStrict), "Decode error policy: strict, replace, ignore, passthrough")
	fl.IntVarP(&f.maxProcs, "max-procs", "P", 1, "Run up to N commands at once")
	fl.BoolVar(&f.noStdin, "no-stdin", false, "Do not connect standard input to the commands")
	fl.BoolVar(&f.dryRun, "dry-run", false, "Print the commands instead of running them")
	fl.BoolVarP(&f.trace, "trace", "t", false, "Print each command to stderr before running it")
	fl.BoolVar(&f.noQuote, "no-quote", false, "Substitute tokens verbatim, without shell quoting")
	fl.StringArrayVar(&f.env, "env", nil, "Set KEY=VALUE in the commands' environment (repeatable)")
	fl.StringVar(&f.shell, "shell", "", "Shell used to run commands (default: /bin/sh, or %COMSPEC% on Windows)")
	fl.StringVar(&f.container, "container", "", "Run commands inside this running Docker container")
	fl.StringVar(&f.config, "config", "", "Path to a defaults file")
	fl.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return model.WrapCLIError(model.ExitUsage, "invalid arguments", err)
	})

	return rootCmd
}

// Execute runs the root command and exits with the mapped exit code.
// This is the main entry point called from main.go.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCode(err, rootCmd.ErrOrStderr()))
	}
}

// ExitCode translates an error returned by the root command into a process
// exit code, printing an ERROR: line to stderr unless the error is silent.
// CLIError types carry their own exit codes; other errors are usage errors.
func ExitCode(err error, stderr io.Writer) int {
	if err == nil {
		return int(model.ExitSuccess)
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		if !cliErr.Silent {
			printError(stderr, cliErr.Error())
		}
		return int(cliErr.Code)
	}

	printError(stderr, err.Error())
	return int(model.ExitUsage)
}

// printError writes "ERROR: <message>" to w. The prefix is styled only when
// w is a terminal that supports colour.
func printError(w io.Writer, message string) {
	prefix := lipgloss.NewRenderer(w).NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("9")).
		Render("ERROR:")
	fmt.Fprintf(w, "%s %s\n", prefix, message)
}

// VerboseLog prints a message to stderr only when verbose mode is enabled.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}
