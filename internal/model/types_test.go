package model

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validOptions returns an Options value that passes Validate, so each test
// case only has to break the one field it is interested in.
func validOptions() Options {
	return Options{
		Template:     "echo {}",
		Placeholder:  DefaultPlaceholder,
		Encoding:     DefaultEncoding,
		Errors:       PolicyStrict,
		MaxProcs:     1,
		ForwardStdin: true,
		Quote:        true,
	}
}

// TestParseDecodePolicy verifies string-to-policy conversion,
// including aliases and case normalization.
func TestParseDecodePolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected DecodePolicy
		hasError bool
	}{
		{"strict", PolicyStrict, false},
		{"replace", PolicyReplace, false},
		{"ignore", PolicyIgnore, false},
		{"passthrough", PolicyPassthrough, false},
		{"surrogateescape", PolicyPassthrough, false},
		{"surrogatepass", PolicyPassthrough, false},
		{"REPLACE", PolicyReplace, false},
		{"backslashreplace", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseDecodePolicy(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// TestOptions_Validate checks every precondition and the exit code it maps to.
func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
		code   ExitCode
	}{
		{
			name:   "valid defaults",
			mutate: func(o *Options) {},
			code:   ExitSuccess,
		},
		{
			name:   "placeholder missing from template",
			mutate: func(o *Options) { o.Template = "echo hello" },
			code:   ExitNoPlaceholder,
		},
		{
			name:   "custom placeholder present",
			mutate: func(o *Options) { o.Template = "wc -l {FILE}"; o.Placeholder = "{FILE}" },
			code:   ExitSuccess,
		},
		{
			name:   "empty placeholder",
			mutate: func(o *Options) { o.Placeholder = "" },
			code:   ExitNoPlaceholder,
		},
		{
			name:   "parallel with stdin forwarding",
			mutate: func(o *Options) { o.MaxProcs = 4 },
			code:   ExitNeedsNoStdin,
		},
		{
			name:   "parallel without stdin forwarding",
			mutate: func(o *Options) { o.MaxProcs = 4; o.ForwardStdin = false },
			code:   ExitSuccess,
		},
		{
			name:   "zero max procs",
			mutate: func(o *Options) { o.MaxProcs = 0 },
			code:   ExitUsage,
		},
		{
			name:   "empty delimiter",
			mutate: func(o *Options) { o.Delimiters = []string{";", ""} },
			code:   ExitUsage,
		},
		{
			name:   "empty delimiter ignored in null mode",
			mutate: func(o *Options) { o.Delimiters = []string{""}; o.UseNull = true },
			code:   ExitSuccess,
		},
		{
			name:   "unknown decode policy",
			mutate: func(o *Options) { o.Errors = "bogus" },
			code:   ExitUsage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validOptions()
			tt.mutate(&opts)

			err := opts.Validate()
			if tt.code == ExitSuccess {
				assert.NoError(t, err)
				return
			}

			var cliErr *CLIError
			require.True(t, errors.As(err, &cliErr), "error should be a *CLIError")
			assert.Equal(t, tt.code, cliErr.Code)
		})
	}
}

// TestOptions_ValidateTemplate verifies only the placeholder rules are
// checked, so other invalid fields do not mask a missing placeholder.
func TestOptions_ValidateTemplate(t *testing.T) {
	opts := validOptions()
	opts.MaxProcs = 0
	opts.Delimiters = []string{""}
	assert.NoError(t, opts.ValidateTemplate())

	opts.Template = "echo hi"
	var cliErr *CLIError
	require.True(t, errors.As(opts.ValidateTemplate(), &cliErr))
	assert.Equal(t, ExitNoPlaceholder, cliErr.Code)

	opts.Placeholder = ""
	require.True(t, errors.As(opts.ValidateTemplate(), &cliErr))
	assert.Equal(t, ExitNoPlaceholder, cliErr.Code)
}

// TestParseEnvItems checks KEY=VALUE validation rules.
func TestParseEnvItems(t *testing.T) {
	tests := []struct {
		name     string
		items    []string
		expected EnvOverlay
		hasError bool
	}{
		{"empty", nil, EnvOverlay{}, false},
		{"single", []string{"A=1"}, EnvOverlay{{"A", "1"}}, false},
		{"empty value", []string{"A="}, EnvOverlay{{"A", ""}}, false},
		{"value with equals", []string{"A=b=c"}, EnvOverlay{{"A", "b=c"}}, false},
		{"missing equals", []string{"A"}, nil, true},
		{"leading equals", []string{"=A"}, nil, true},
		{"one bad item among good", []string{"A=1", "B"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseEnvItems(tt.items)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestEnvOverlay_Apply verifies that overlay entries override base entries
// in place and that new keys are appended in order.
func TestEnvOverlay_Apply(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("case-sensitive key comparison is Unix-only")
	}

	base := []string{"HOME=/root", "PATH=/bin", "LANG=C"}
	overlay := EnvOverlay{{"PATH", "/usr/bin"}, {"NEW", "x"}, {"NEW", "y"}}

	merged := overlay.Apply(base)

	assert.Equal(t, []string{"HOME=/root", "PATH=/usr/bin", "LANG=C", "NEW=y"}, merged)
	// base must not be modified.
	assert.Equal(t, "PATH=/bin", base[1])
}

// TestEnvOverlay_Assignments verifies duplicate keys collapse to the last value.
func TestEnvOverlay_Assignments(t *testing.T) {
	overlay := EnvOverlay{{"A", "1"}, {"B", "2"}, {"A", "3"}}
	assert.Equal(t, []string{"A=3", "B=2"}, overlay.Assignments())
	assert.Empty(t, EnvOverlay(nil).Assignments())
}

// TestEnvFromMap verifies the overlay is sorted by key.
func TestEnvFromMap(t *testing.T) {
	overlay := EnvFromMap(map[string]string{"B": "2", "A": "1", "C": "3"})
	assert.Equal(t, EnvOverlay{{"A", "1"}, {"B", "2"}, {"C", "3"}}, overlay)
}

// TestFailureCode verifies that representable codes pass through and that
// ambiguous codes become the sentinel.
func TestFailureCode(t *testing.T) {
	assert.Equal(t, 1, FailureCode(1))
	assert.Equal(t, 2, FailureCode(2))
	assert.Equal(t, 255, FailureCode(255))
	assert.Equal(t, int(ExitChildFailed), FailureCode(0))
	assert.Equal(t, int(ExitChildFailed), FailureCode(-1))
	if runtime.GOOS != "windows" {
		assert.Equal(t, int(ExitChildFailed), FailureCode(256))
	}
}

// TestCLIError verifies message formatting and unwrapping.
func TestCLIError(t *testing.T) {
	inner := errors.New("boom")

	t.Run("wrapped", func(t *testing.T) {
		err := WrapCLIError(ExitUsage, "bad config", inner)
		assert.Equal(t, "bad config: boom", err.Error())
		assert.ErrorIs(t, err, inner)
		assert.Equal(t, ExitUsage, err.Code)
	})

	t.Run("plain", func(t *testing.T) {
		err := NewCLIError(ExitBadEnv, "bad env")
		assert.Equal(t, "bad env", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("child failure is silent", func(t *testing.T) {
		err := ChildFailure(3)
		assert.True(t, err.Silent)
		assert.Equal(t, ExitCode(3), err.Code)
		assert.Equal(t, "exit status 3", err.Error())
	})
}
