package fetch

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// linearBackOff waits attempt × base before the next attempt: base, 2×base, ...
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.base
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

var _ backoff.BackOff = (*linearBackOff)(nil)

// policy returns the retry policy for a mode. Document fetches get a single
// attempt; captures get up to maxAttempts.
func policy(mode Mode, maxAttempts int, base time.Duration) backoff.BackOff {
	if mode == ModeDocument || maxAttempts <= 1 {
		return &backoff.StopBackOff{}
	}
	return backoff.WithMaxRetries(&linearBackOff{base: base}, uint64(maxAttempts-1))
}
