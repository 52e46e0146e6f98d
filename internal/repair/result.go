package repair

import "github.com/esbmc/esbmc-ai/internal/solution"

// Outcome is the terminal state of a repair run.
type Outcome string

const (
	// OutcomeSafe means the original source verified on the first check; no
	// repair was attempted.
	OutcomeSafe Outcome = "safe"
	// OutcomeRepaired means a candidate patch passed verification.
	OutcomeRepaired Outcome = "repaired"
	// OutcomeExhausted means the attempt budget ran out with no fix.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeError means the loop aborted before a genuine verdict: verifier
	// missing, context overflow, auth failure, or cancellation.
	OutcomeError Outcome = "error"
)

// Result is what the loop reports outward. AttemptsMade and Outcome are
// always populated, even on error, so a caller can tell "gave up after N
// genuine attempts" from "never got a valid attempt off the ground".
type Result struct {
	Outcome      Outcome
	AttemptsMade int
	FinalSource  map[string]string
	History      []solution.Patch
	Err          error
}
