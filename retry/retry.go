// Package retry wraps provider calls in a fixed-delay retry loop.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 2 * time.Second
)

// Policy is a fixed attempt count with a fixed pause between attempts.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Default returns the policy used when nothing is configured.
func Default() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultDelay}
}

// ProviderError is a failure reported by a remote mailbox or sheet provider.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Provider marks err as a provider failure. A nil err stays nil.
func Provider(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Op: op, Err: err}
}

// IsProvider reports whether err came from a remote provider.
func IsProvider(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return true
	}
	var ge *googleapi.Error
	return errors.As(err, &ge)
}

// Do runs fn until it succeeds, returns a non-provider error, or the
// policy's attempts are used up. Only provider errors are retried.
func Do(ctx context.Context, p Policy, log *zap.Logger, op string, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsProvider(err) {
			return err
		}
		log.Warn("provider call failed",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
		if attempt < attempts {
			if serr := sleep(ctx, p.Delay); serr != nil {
				return errors.Wrap(serr, op)
			}
		}
	}
	return errors.Wrapf(err, "%s failed after %d attempts", op, attempts)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
