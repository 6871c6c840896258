package session

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutcome_ExitCode(t *testing.T) {
	require.Equal(t, 0, Outcome{Kind: Clean}.ExitCode())
	require.Equal(t, 64, Outcome{Kind: UsageFailure}.ExitCode())
	require.Equal(t, 8, Outcome{Kind: ConstructionFailure}.ExitCode())
	require.Equal(t, 8, Outcome{Kind: RuntimeFailure}.ExitCode())
}

func TestOutcome_Report(t *testing.T) {
	tt := []struct {
		name    string
		outcome Outcome
		code    int
		expect  []string
		empty   bool
		noUsage bool
	}{
		{
			name:    "clean",
			outcome: Outcome{Kind: Clean},
			code:    0,
			empty:   true,
		},
		{
			name:    "missing operands",
			outcome: Outcome{Kind: UsageFailure, Err: &UsageError{ShowUsage: true}},
			code:    64,
			expect:  []string{"Usage: prog [flags] <readfd> <writefd> <exportpath>", "prog 0 1 /export", "-log.level"},
		},
		{
			name:    "bad descriptor",
			outcome: Outcome{Kind: UsageFailure, Err: &UsageError{Msg: `invalid read file descriptor "abc"`, Err: errors.New("invalid syntax")}},
			code:    64,
			expect:  []string{`invalid read file descriptor "abc": invalid syntax`},
			noUsage: true,
		},
		{
			name:    "construction",
			outcome: Outcome{Kind: ConstructionFailure, Err: errors.New("no root")},
			code:    8,
			expect:  []string{"Fatal error starting server: no root"},
			noUsage: true,
		},
		{
			name:    "runtime",
			outcome: Outcome{Kind: RuntimeFailure, Err: fmt.Errorf("writing response: %w", errors.New("broken pipe"))},
			code:    8,
			expect:  []string{"Fatal error handling request from client: writing response: broken pipe"},
			noUsage: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.Equal(t, tc.code, tc.outcome.Report(&buf, "prog"))

			if tc.empty {
				require.Zero(t, buf.Len())
			}
			for _, e := range tc.expect {
				require.Contains(t, buf.String(), e)
			}
			if tc.noUsage {
				require.False(t, strings.Contains(buf.String(), "Usage:"))
			}
		})
	}
}
