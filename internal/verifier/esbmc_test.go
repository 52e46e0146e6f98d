package verifier

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeESBMC writes a shell script that mimics the real binary's behavior
// closely enough for the classification logic under test.
func fakeESBMC(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "esbmc")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestESBMCCheckSuccess(t *testing.T) {
	e := &ESBMC{Path: fakeESBMC(t, `echo "VERIFICATION SUCCESSFUL"; exit 0`)}

	out, err := e.Check(context.Background(), "int main() { return 0; }", nil, 5*time.Second)
	require.NoError(t, err)
	require.True(t, out.Successful)
	require.Contains(t, out.RawOutput, "VERIFICATION SUCCESSFUL")
}

func TestESBMCCheckViolation(t *testing.T) {
	script := `cat <<'EOF'
[Counterexample]

Violated property:
  file main.c line 4 column 3 function main
  dereference failure: NULL pointer

VERIFICATION FAILED
EOF
exit 1`
	e := &ESBMC{Path: fakeESBMC(t, script)}

	out, err := e.Check(context.Background(), "int main() { return *(int *)0; }", nil, 5*time.Second)
	require.NoError(t, err)
	require.False(t, out.Successful)
	require.Equal(t, "dereference failure: NULL pointer", out.ErrorType)
	require.Equal(t, 4, out.ErrorLine())
}

func TestESBMCCheckPassesParamsAndFlags(t *testing.T) {
	e := &ESBMC{
		Path:          fakeESBMC(t, `echo "$@"; exit 0`),
		EntryFunction: "main",
	}

	out, err := e.Check(context.Background(), "src", []string{"--k-induction"}, 30*time.Second)
	require.NoError(t, err)
	require.Contains(t, out.RawOutput, "--k-induction")
	require.Contains(t, out.RawOutput, "--timeout 30s")
	require.Contains(t, out.RawOutput, "--function main")
}

func TestESBMCCheckScratchFileCarriesSource(t *testing.T) {
	// The script prints the last pre-flag argument, which is the scratch file.
	script := `for a in "$@"; do case "$a" in --*) break;; *) f="$a";; esac; done
cat "$f"
exit 0`
	e := &ESBMC{Path: fakeESBMC(t, script), ScratchDir: t.TempDir(), FileExt: ".c"}

	out, err := e.Check(context.Background(), "int unique_marker;", nil, 0)
	require.NoError(t, err)
	require.Contains(t, out.RawOutput, "int unique_marker;")

	// The scratch file is removed afterwards.
	entries, err := os.ReadDir(e.ScratchDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestESBMCCheckMissingBinary(t *testing.T) {
	e := &ESBMC{Path: filepath.Join(t.TempDir(), "no-such-esbmc")}

	_, err := e.Check(context.Background(), "src", nil, time.Second)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestESBMCCheckCancellation(t *testing.T) {
	e := &ESBMC{Path: fakeESBMC(t, `sleep 10; exit 0`)}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := e.Check(ctx, "src", nil, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	esbmc := &ESBMC{Path: "esbmc"}
	oracle := &Oracle{Command: "true"}
	reg.Register(esbmc, true)
	reg.Register(oracle, false)

	v, err := reg.Resolve("")
	require.NoError(t, err)
	require.Equal(t, "esbmc", v.Name())

	v, err = reg.Resolve("oracle")
	require.NoError(t, err)
	require.Equal(t, "oracle", v.Name())

	_, err = reg.Resolve("cbmc")
	require.Error(t, err)
}
