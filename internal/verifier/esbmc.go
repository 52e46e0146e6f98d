package verifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// processSlack is added on top of the verification timeout so the tool can
// notice its own --timeout and exit gracefully before we kill the process.
const processSlack = 10 * time.Second

// ESBMC invokes the ESBMC bounded model checker on a scratch copy of the
// source buffer.
type ESBMC struct {
	// Path is the verifier binary. Checked per call; a missing binary is a
	// configuration error surfaced as ErrNotFound.
	Path string
	// ScratchDir receives per-call scratch files; empty means the OS temp dir.
	ScratchDir string
	// EntryFunction is passed as --function when set.
	EntryFunction string
	// FileExt is the scratch file suffix, ".c" when empty.
	FileExt string

	Logger *zap.Logger
}

// Name returns the backend identifier.
func (e *ESBMC) Name() string {
	return "esbmc"
}

// Check writes source to a scratch file, runs ESBMC against it with the given
// parameters and timeout, and parses the captured output. The scratch file is
// removed on every exit path. A run that exceeds the timeout yields a
// non-successful Output with ErrorType "timeout" rather than an error.
func (e *ESBMC) Check(ctx context.Context, source string, params []string, timeout time.Duration) (Output, error) {
	ext := e.FileExt
	if ext == "" {
		ext = ".c"
	}

	scratch, err := writeScratchFile(e.ScratchDir, "esbmc-ai-*"+ext, source)
	if err != nil {
		return Output{}, fmt.Errorf("write scratch file: %w", err)
	}
	defer os.Remove(scratch)

	args := append([]string{}, params...)
	args = append(args, scratch)
	if timeout > 0 {
		args = append(args, "--timeout", fmt.Sprintf("%ds", int(timeout.Seconds())))
	}
	if e.EntryFunction != "" {
		args = append(args, "--function", e.EntryFunction)
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout+processSlack)
		defer cancel()
	}

	var exitCode int
	var raw string

	run := func() error {
		var combined bytes.Buffer
		cmd := exec.CommandContext(runCtx, e.Path, args...)
		cmd.Stdout = &combined
		cmd.Stderr = &combined

		runErr := cmd.Run()
		raw = combined.String()

		switch {
		case runErr == nil:
			exitCode = 0
			return nil
		case errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, fs.ErrNotExist):
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, e.Path))
		case ctx.Err() != nil:
			// Caller cancellation, not a verification timeout.
			return backoff.Permanent(ctx.Err())
		case runCtx.Err() != nil:
			return backoff.Permanent(errTimedOut)
		default:
			var exitErr *exec.ExitError
			if errors.As(runErr, &exitErr) {
				exitCode = exitErr.ExitCode()
				return nil
			}
			// Anything else is a transient launch failure worth retrying.
			return fmt.Errorf("run %s: %w", e.Path, runErr)
		}
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 2)
	if err := backoff.Retry(run, backoff.WithContext(policy, ctx)); err != nil {
		if errors.Is(err, errTimedOut) {
			e.logf("verifier timed out", zap.Duration("timeout", timeout))
			return Output{Successful: false, RawOutput: raw, ErrorType: ErrorTypeTimeout}, nil
		}
		return Output{}, err
	}

	out := ParseESBMC(exitCode, raw)
	e.logf("verifier run finished",
		zap.Int("exit_code", exitCode),
		zap.Bool("successful", out.Successful),
		zap.String("error_type", out.ErrorType))
	return out, nil
}

var errTimedOut = errors.New("verifier run timed out")

func (e *ESBMC) logf(msg string, fields ...zap.Field) {
	if e.Logger == nil {
		return
	}
	e.Logger.Debug(msg, fields...)
}

// writeScratchFile persists a source buffer for the external tool to consume
// and returns its path. The caller owns removal.
func writeScratchFile(dir, pattern, content string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	path := f.Name()
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
