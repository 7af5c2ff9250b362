// Package util provides small timing helpers shared by the client packages.
package util

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// --------------------------------------------------------------------------------
// Constants

const (
	// DefaultMinWait is the smallest wait applied when the base is invalid.
	DefaultMinWait = time.Millisecond
	// DefaultMaxWait caps the backoff when no maximum is given.
	DefaultMaxWait = 30 * time.Second
	// DefaultJitterFactor is the fraction of the wait randomized as jitter.
	DefaultJitterFactor = 0.5
)

// --------------------------------------------------------------------------------
// Utility Functions

// Wait sleeps for an exponentially growing interval before a retry attempt.
//
// The interval is min(maxWait, base * 2^(attempt-1)) plus up to
// jitterFactor of itself as random jitter. A zero attempt counts as the
// first. It returns ctx.Err() if the context is cancelled while waiting.
func Wait(ctx context.Context, attempt uint, base, maxWait time.Duration, jitterFactor float64) error {
	if base <= 0 {
		base = DefaultMinWait
	}

	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	if jitterFactor < 0 || jitterFactor > 1 {
		jitterFactor = DefaultJitterFactor
	}

	wait := backoff(max(attempt, 1), base, maxWait)

	if jitterFactor > 0 {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(float64(wait)*jitterFactor)+1))
		if err != nil {
			return fmt.Errorf("failed to generate jitter: %w", err)
		}

		wait += time.Duration(j.Int64())
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// Poll invokes cond every interval until it returns true, the deadline
// passes, or the context is cancelled. It reports whether cond succeeded.
//
// The first check happens immediately, so a condition that already holds
// never waits.
func Poll(ctx context.Context, deadline, interval time.Duration, cond func() bool) bool {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	timeout := time.NewTimer(deadline)
	defer timeout.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if cond() {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-timeout.C:
			return false
		case <-ticker.C:
		}
	}
}

// --------------------------------------------------------------------------------
// Helper Functions

// backoff doubles the base per attempt, saturating at maxWait.
func backoff(attempt uint, base, maxWait time.Duration) time.Duration {
	wait := base
	for i := uint(1); i < attempt; i++ {
		if wait >= maxWait/2 {
			return maxWait
		}

		wait *= 2
	}

	return min(wait, maxWait)
}
