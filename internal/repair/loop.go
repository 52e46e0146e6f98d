// Package repair drives the fix-code loop: verify, ask the model for a
// patched buffer, re-verify, and repeat until the verifier is satisfied or
// the attempt budget runs out.
package repair

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/esbmc/esbmc-ai/internal/chat"
	"github.com/esbmc/esbmc-ai/internal/solution"
	"github.com/esbmc/esbmc-ai/internal/verifier"
)

// ReformatNote is appended to the system prefix after a reply yields no
// usable source, asking the model to fix its formatting.
const ReformatNote = "Your previous reply did not contain source code in a " +
	"fenced code block. Reply with the complete corrected source code inside " +
	"a single fenced code block and nothing else."

// Config holds the loop parameters.
type Config struct {
	// MaxAttempts bounds model sends per run.
	MaxAttempts int
	// OutputFormat selects what part of the verifier output reaches the
	// model: "full", "ce" (counterexample) or "vp" (violated property).
	OutputFormat string
	// SystemPrompt seeds the message stack.
	SystemPrompt string
	// InitialPrompt is the user turn of the first attempt; RetryPrompt is
	// used for every attempt after it. Both use $name template variables.
	InitialPrompt string
	RetryPrompt   string
	// VerifierParams and VerifierTimeout are passed through to every check.
	VerifierParams  []string
	VerifierTimeout time.Duration
}

// Metrics is the narrow observability surface the loop records to.
type Metrics interface {
	RecordRepairRun(outcome string, duration time.Duration, attempts int)
	RecordVerifierRun(status string, duration time.Duration)
}

// Loop is the fix-code state machine. One Loop, one Session, and one Tracker
// per source file; instances are not safe for concurrent use and isolation
// between parallel repairs is by instance separation.
type Loop struct {
	verifier verifier.Verifier
	session  *chat.Session
	tracker  *solution.Tracker
	cfg      Config
	logger   *zap.Logger
	metrics  Metrics

	// lastGood is the attempt number of the last state that passed
	// verification. It stays 0 until a repair succeeds, which terminates
	// the run, so every rollback lands on the original source.
	lastGood int
}

// New constructs a repair loop.
func New(v verifier.Verifier, s *chat.Session, t *solution.Tracker, cfg Config, logger *zap.Logger, m Metrics) *Loop {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		verifier: v,
		session:  s,
		tracker:  t,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}
}

// Run executes the state machine for one source file and always returns a
// Result, even when the loop aborts. The cancellation signal is checked at
// the top of every state transition; a verifier call already in flight runs
// to its own timeout first.
func (l *Loop) Run(ctx context.Context, path string) Result {
	start := time.Now()
	attempts := 0

	finish := func(outcome Outcome, err error) Result {
		if l.metrics != nil {
			l.metrics.RecordRepairRun(string(outcome), time.Since(start), attempts)
		}
		return Result{
			Outcome:      outcome,
			AttemptsMade: attempts,
			FinalSource:  l.tracker.Current(),
			History:      l.tracker.History(),
			Err:          err,
		}
	}

	if err := ctx.Err(); err != nil {
		return finish(OutcomeError, err)
	}

	src, ok := l.tracker.Current()[path]
	if !ok {
		return finish(OutcomeError, fmt.Errorf("no source registered for %q", path))
	}

	l.logTransition("initial_check", attempts, nil)
	out, err := l.check(ctx, src)
	if err != nil {
		return finish(OutcomeError, err)
	}
	if out.Successful {
		l.logTransition("done_safe", attempts, &out)
		return finish(OutcomeSafe, nil)
	}

	stack := chat.NewMessageStack()
	if l.cfg.SystemPrompt != "" {
		stack.PushSystem(l.cfg.SystemPrompt)
	}

	for attempts < l.cfg.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return finish(OutcomeError, err)
		}
		l.logTransition("needs_repair", attempts, &out)

		prompt := l.cfg.InitialPrompt
		if attempts > 0 {
			prompt = l.cfg.RetryPrompt
		}
		userMsg := chat.ExpandTemplate(prompt, l.templateVars(src, out))

		l.logTransition("generating", attempts+1, &out)
		reply, err := l.session.Send(ctx, stack, userMsg)
		if err != nil {
			return finish(OutcomeError, err)
		}
		attempts++

		candidate, usable := ExtractSource(reply)
		if !usable {
			// Failed attempt with no verifier call consumed: ask for
			// corrected formatting and go around again.
			stack.PushSystem(ReformatNote)
			l.logTransition("no_extractable_source", attempts, &out)
			continue
		}

		if err := ctx.Err(); err != nil {
			return finish(OutcomeError, err)
		}
		l.logTransition("verifying", attempts, &out)
		l.tracker.ApplyPatch(path, candidate, attempts)

		verified, err := l.check(ctx, candidate)
		if err != nil {
			l.tracker.RevertTo(l.lastGood)
			return finish(OutcomeError, err)
		}
		if verified.Successful {
			l.tracker.Accept(attempts)
			l.logTransition("done_repaired", attempts, &verified)
			return finish(OutcomeRepaired, nil)
		}

		l.tracker.RevertTo(l.lastGood)
		out = verified
		src = l.tracker.Current()[path]
	}

	l.logTransition("exhausted", attempts, &out)
	return finish(OutcomeExhausted, nil)
}

func (l *Loop) check(ctx context.Context, src string) (verifier.Output, error) {
	start := time.Now()
	out, err := l.verifier.Check(ctx, src, l.cfg.VerifierParams, l.cfg.VerifierTimeout)

	status := "error"
	switch {
	case err == nil && out.Successful:
		status = "pass"
	case err == nil && out.ErrorType == verifier.ErrorTypeTimeout:
		status = "timeout"
	case err == nil:
		status = "fail"
	}
	if l.metrics != nil {
		l.metrics.RecordVerifierRun(status, time.Since(start))
	}
	return out, err
}

// templateVars binds the canonical variables for prompt rendering.
func (l *Loop) templateVars(src string, out verifier.Output) map[string]string {
	errType := out.ErrorType
	if errType == "" {
		errType = "unknown error"
	}
	return map[string]string{
		chat.VarSourceCode:     src,
		chat.VarVerifierOutput: l.formatOutput(out),
		chat.VarErrorLine:      strconv.Itoa(out.ErrorLine()),
		chat.VarErrorType:      errType,
	}
}

// formatOutput renders the verifier output per the configured format. Timeout
// results carry no counterexample to extract, so the raw text is passed
// through regardless of format.
func (l *Loop) formatOutput(out verifier.Output) string {
	if out.ErrorType == verifier.ErrorTypeTimeout {
		return "The verifier timed out before reaching a verdict.\n" + out.RawOutput
	}
	switch l.cfg.OutputFormat {
	case "ce":
		if ce := out.Counterexample(); ce != "" {
			return ce
		}
	case "vp":
		if vp := out.ViolatedProperty(); vp != "" {
			return vp
		}
	}
	return out.RawOutput
}

func (l *Loop) logTransition(state string, attempt int, out *verifier.Output) {
	fields := []zap.Field{
		zap.String("state", state),
		zap.Int("attempt", attempt),
	}
	if out != nil {
		fields = append(fields,
			zap.Bool("verifier_success", out.Successful),
			zap.String("error_type", out.ErrorType))
	}
	l.logger.Info("repair transition", fields...)
}
