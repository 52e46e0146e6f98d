package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrAuth marks authentication/authorization rejections. These are
// configuration problems and are never retried.
var ErrAuth = errors.New("model provider rejected credentials")

// ErrTransient marks rate-limit and network-class failures that may succeed
// on a retry.
var ErrTransient = errors.New("transient model provider error")

// Transientf wraps a formatted error as transient.
func Transientf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrTransient)...)
}

// Authf wraps a formatted error as an authentication failure.
func Authf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrAuth)...)
}

// IsTransient reports whether err is worth retrying. Network errors count as
// transient even when a provider forgot to classify them.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// ClassifyStatus wraps err according to an HTTP status code from a chat API.
// 401/403 become auth errors, 408/429 and 5xx become transient, everything
// else passes through unchanged.
func ClassifyStatus(status int, err error) error {
	switch {
	case err == nil:
		return nil
	case status == 401 || status == 403:
		return fmt.Errorf("%w: %v", ErrAuth, err)
	case status == 408 || status == 429 || status >= 500:
		return fmt.Errorf("%w: %v", ErrTransient, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTransient, err)
	default:
		return err
	}
}
