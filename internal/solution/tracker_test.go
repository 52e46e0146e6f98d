package solution

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerRoundTrip(t *testing.T) {
	original := "int main() { return 0; }\n"
	tr := NewTracker(map[string]string{"main.c": original})

	tr.ApplyPatch("main.c", "int main() { return 1; }\n", 1)
	require.Equal(t, "int main() { return 1; }\n", tr.Current()["main.c"])

	tr.RevertTo(0)
	require.Equal(t, original, tr.Current()["main.c"], "revert must restore the original byte for byte")
	require.Equal(t, original, tr.Original()["main.c"])
}

func TestTrackerHistoryIsAppendOnly(t *testing.T) {
	tr := NewTracker(map[string]string{"a.c": "v0"})
	tr.ApplyPatch("a.c", "v1", 1)
	tr.RevertTo(0)
	tr.ApplyPatch("a.c", "v2", 2)
	tr.RevertTo(0)

	hist := tr.History()
	require.Len(t, hist, 2)
	require.Equal(t, "v1", hist[0].Updated)
	require.Equal(t, "v0", hist[0].Previous)
	require.Equal(t, "v2", hist[1].Updated)
	require.Equal(t, "v0", hist[1].Previous, "rejected patch must not leak into the next attempt")
	require.False(t, hist[0].Accepted)
	require.False(t, hist[1].Accepted)
}

func TestTrackerRevertToSkipsUnrecordedAttempts(t *testing.T) {
	tr := NewTracker(map[string]string{"a.c": "v0"})
	tr.ApplyPatch("a.c", "v2", 2)

	// Attempt 1 never recorded a state; reverting to it lands on attempt 0.
	tr.RevertTo(1)
	require.Equal(t, "v0", tr.Current()["a.c"])

	tr.RevertTo(2)
	require.Equal(t, "v2", tr.Current()["a.c"])
}

func TestTrackerAccept(t *testing.T) {
	tr := NewTracker(map[string]string{"a.c": "v0"})
	tr.ApplyPatch("a.c", "v1", 1)
	tr.ApplyPatch("a.c", "v2", 2)
	tr.Accept(2)

	hist := tr.History()
	require.False(t, hist[0].Accepted)
	require.True(t, hist[1].Accepted)
}

func TestTrackerCopiesAreIsolated(t *testing.T) {
	tr := NewTracker(map[string]string{"a.c": "v0"})
	cur := tr.Current()
	cur["a.c"] = "mutated"
	require.Equal(t, "v0", tr.Current()["a.c"])
}

func TestUnifiedDiff(t *testing.T) {
	diff, err := UnifiedDiff("a.c", "line one\nline two\n", "a.c", "line one\nline 2\n")
	require.NoError(t, err)
	require.Contains(t, diff, "-line two")
	require.Contains(t, diff, "+line 2")
	require.True(t, strings.HasPrefix(diff, "--- a.c"))
	require.Contains(t, diff, "+++ a.c")
	require.Contains(t, diff, "@@ -1,2 +1,2 @@")
}

func TestUnifiedDiffIdentical(t *testing.T) {
	diff, err := UnifiedDiff("a.c", "same\n", "a.c", "same\n")
	require.NoError(t, err)
	require.Empty(t, diff)
}
