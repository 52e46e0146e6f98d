package verifier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const failedOutput = `ESBMC version 7.4.0 64-bit x86_64 linux
Parsing main.c
Converting
Generating GOTO Program
GOTO program creation time: 0.210s
Symex completed in: 0.004s (14 assignments)
Slicing time: 0.000s (removed 7 assignments)
Generated 2 VCC(s), 2 remaining after simplification (7 assignments)
Encoding remaining VCC(s) using bit-vector/floating-point arithmetic
Solving with solver Boolector 3.2.2
Runtime decision procedure: 0.012s
Building error trace

[Counterexample]


State 1 file main.c line 8 column 5 function buggy_bubble_sort thread 0
----------------------------------------------------
Violated property:
  file main.c line 8 column 5 function buggy_bubble_sort
  dereference failure: array bounds violated
  i < 4

VERIFICATION FAILED
`

const successOutput = `ESBMC version 7.4.0 64-bit x86_64 linux
Parsing main.c
Symex completed in: 0.003s (10 assignments)
Generated 1 VCC(s), 0 remaining after simplification (0 assignments)

VERIFICATION SUCCESSFUL
`

func TestParseESBMCSuccess(t *testing.T) {
	out := ParseESBMC(0, successOutput)
	require.True(t, out.Successful)
	require.Empty(t, out.ErrorType)
	require.Nil(t, out.Location)
	require.Equal(t, 0, out.ErrorLine())
}

func TestParseESBMCViolatedProperty(t *testing.T) {
	out := ParseESBMC(1, failedOutput)
	require.False(t, out.Successful)
	require.Equal(t, "dereference failure: array bounds violated", out.ErrorType)
	require.NotNil(t, out.Location)
	require.Equal(t, "main.c", out.Location.File)
	require.Equal(t, 8, out.Location.Line)
	require.Equal(t, 5, out.Location.Column)
	require.Equal(t, "buggy_bubble_sort", out.Location.Function)
	require.Equal(t, 8, out.ErrorLine())
}

func TestParseESBMCTimeout(t *testing.T) {
	raw := "ESBMC version 7.4.0\nSymex in progress\nERROR: Timed out\n"
	out := ParseESBMC(1, raw)
	require.False(t, out.Successful)
	require.Equal(t, ErrorTypeTimeout, out.ErrorType)
	require.Nil(t, out.Location)
}

func TestParseESBMCClangFallback(t *testing.T) {
	raw := "ESBMC version 7.4.0\nParsing main.c\n" +
		"main.c:12:5: error: expected ';' after expression\n" +
		"ERROR: PARSING ERROR\n"
	out := ParseESBMC(1, raw)
	require.False(t, out.Successful)
	require.Equal(t, "compilation error", out.ErrorType)
	require.NotNil(t, out.Location)
	require.Equal(t, "main.c", out.Location.File)
	require.Equal(t, 12, out.Location.Line)
	require.Equal(t, 5, out.Location.Column)
}

func TestParseESBMCUnparseable(t *testing.T) {
	out := ParseESBMC(6, "some inscrutable crash text")
	require.False(t, out.Successful, "unreadable output must be conservatively treated as failed")
	require.Empty(t, out.ErrorType)
	require.Nil(t, out.Location)
	require.Equal(t, "some inscrutable crash text", out.RawOutput)
}

func TestCounterexample(t *testing.T) {
	out := ParseESBMC(1, failedOutput)
	ce := out.Counterexample()
	require.Contains(t, ce, "[Counterexample]")
	require.Contains(t, ce, "VERIFICATION FAILED")
	require.NotContains(t, ce, "Parsing main.c")
}

func TestCounterexampleEmptyOnTimeout(t *testing.T) {
	// Even when a partial counterexample made it into the output before the
	// timeout hit, nothing must be mined out of it.
	raw := "[Counterexample]\npartial trace\nERROR: Timed out\n"
	out := ParseESBMC(1, raw)
	require.Equal(t, ErrorTypeTimeout, out.ErrorType)
	require.Empty(t, out.Counterexample())
	require.Empty(t, out.ViolatedProperty())
}

func TestViolatedProperty(t *testing.T) {
	out := ParseESBMC(1, failedOutput)
	vp := out.ViolatedProperty()
	require.Contains(t, vp, "Violated property:")
	require.Contains(t, vp, "file main.c line 8")
	require.Contains(t, vp, "dereference failure")
	require.NotContains(t, vp, "VERIFICATION FAILED")
}

func TestViolatedPropertyAbsent(t *testing.T) {
	out := ParseESBMC(1, "nothing useful here")
	require.Empty(t, out.ViolatedProperty())
	require.Empty(t, out.Counterexample())
}

func TestViolatedPropertyIndentedMarker(t *testing.T) {
	raw := "preamble\n" +
		"  Violated property:\n" +
		"    file main.c line 5 column 2 function main\n" +
		"    assertion failure\n" +
		"VERIFICATION FAILED\n"
	out := ParseESBMC(1, raw)
	require.Equal(t, "assertion failure", out.ErrorType)

	vp := out.ViolatedProperty()
	require.Contains(t, vp, "Violated property:")
	require.Contains(t, vp, "assertion failure")
}

func TestParseESBMCLocationWithoutColumn(t *testing.T) {
	raw := "Violated property:\n" +
		"  file sort.c line 21 function insert\n" +
		"  arithmetic overflow on add\n" +
		"VERIFICATION FAILED\n"
	out := ParseESBMC(1, raw)
	require.Equal(t, "arithmetic overflow on add", out.ErrorType)
	require.NotNil(t, out.Location)
	require.Equal(t, 21, out.Location.Line)
	require.Equal(t, 0, out.Location.Column)
	require.Equal(t, "insert", out.Location.Function)
}
