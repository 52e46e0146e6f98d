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
)

// Oracle treats an arbitrary command as a verdict oracle: the scratch file is
// appended as the last argument and exit code 0 means the source is accepted.
// No structure is imposed on the output, so ErrorType stays empty and the
// repair loop falls back to feeding the raw text to the model.
type Oracle struct {
	// Command is the oracle binary.
	Command string
	// Args are passed before the scratch file path.
	Args []string
	// ScratchDir receives per-call scratch files; empty means the OS temp dir.
	ScratchDir string
	// FileExt is the scratch file suffix, ".c" when empty.
	FileExt string
}

// Name returns the backend identifier.
func (o *Oracle) Name() string {
	return "oracle"
}

// Check runs the oracle command on a scratch copy of the source. params are
// appended after the configured args and before the file path.
func (o *Oracle) Check(ctx context.Context, source string, params []string, timeout time.Duration) (Output, error) {
	if o.Command == "" {
		return Output{}, errors.New("oracle command not configured")
	}

	ext := o.FileExt
	if ext == "" {
		ext = ".c"
	}
	scratch, err := writeScratchFile(o.ScratchDir, "oracle-*"+ext, source)
	if err != nil {
		return Output{}, fmt.Errorf("write scratch file: %w", err)
	}
	defer os.Remove(scratch)

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := append(append([]string{}, o.Args...), params...)
	args = append(args, scratch)

	var combined bytes.Buffer
	cmd := exec.CommandContext(runCtx, o.Command, args...)
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	runErr := cmd.Run()
	raw := combined.String()

	switch {
	case runErr == nil:
		return Output{Successful: true, RawOutput: raw}, nil
	case errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, fs.ErrNotExist):
		return Output{}, fmt.Errorf("%w: %s", ErrNotFound, o.Command)
	case ctx.Err() != nil:
		return Output{}, ctx.Err()
	case runCtx.Err() != nil:
		return Output{Successful: false, RawOutput: raw, ErrorType: ErrorTypeTimeout}, nil
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return Output{Successful: false, RawOutput: raw}, nil
		}
		return Output{}, fmt.Errorf("run %s: %w", o.Command, runErr)
	}
}
