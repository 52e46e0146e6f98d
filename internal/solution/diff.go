package solution

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// UnifiedDiff returns a unified diff between two source buffers with the
// given header labels. An empty string means the buffers are identical.
func UnifiedDiff(labelA, contentA, labelB, contentB string) (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(contentA),
		B:        difflib.SplitLines(contentB),
		FromFile: labelA,
		ToFile:   labelB,
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("diff %s %s: %w", labelA, labelB, err)
	}
	return diff, nil
}
