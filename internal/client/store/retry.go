package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/sethvargo/go-retry"
)

// permanent errors are returned to the caller on the first occurrence.
var permanent = []error{
	common.ErrValidation,
	common.ErrNotFound,
	common.ErrSchemaVersionChanged,
	common.ErrStorageUnavailable,
	common.ErrStaleWrite,
	context.Canceled,
	context.DeadlineExceeded,
}

func isPermanent(err error) bool {
	for _, p := range permanent {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}

// withRetry runs op up to maxAttempts times, sleeping baseDelay*2^n after
// the n-th failed attempt. Exhausted transient failures are wrapped in
// common.ErrTransientStore.
func withRetry(ctx context.Context, maxAttempts int, baseDelay time.Duration, op func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Millisecond
	}

	attempts := 0
	b := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewExponential(baseDelay))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++
		err := op(ctx)
		if err == nil || isPermanent(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err == nil || isPermanent(err) {
		return err
	}
	return fmt.Errorf("%w: gave up after %d attempts: %w", common.ErrTransientStore, attempts, err)
}
