package util

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryTimer is interface retry
type RetryTimer interface {
	Run(ctx context.Context, callback RetryTimerCallback) error
}

// RetryTimerCallback is callback function type for RetryTimer
type RetryTimerCallback func(seq int) (exit bool, err error)

// RetryTimerFactory is constructor type of RetryTimer
type RetryTimerFactory func(limit int) RetryTimer

// ErrRetryLimitExceeded indicates error message for exceeding limit of RetryTimer
var ErrRetryLimitExceeded = fmt.Errorf("Limit of RetryTimer exceeded")

type expRetryTimer struct {
	limit      int
	maxWait    time.Duration
	retryCount int
}

// NewExpRetryTimer is constructor of expRetryTimer (Exponential backoff timer).
// Wait time starts around 0.5 second and is capped at 2 seconds.
func NewExpRetryTimer(limit int) RetryTimer {
	return &expRetryTimer{limit: limit, maxWait: 2 * time.Second}
}

func (x *expRetryTimer) Run(ctx context.Context, callback RetryTimerCallback) error {
	for i := 0; i < x.limit; i++ {
		exit, err := callback(i)
		if err != nil {
			return err
		}
		if exit {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(x.calcWaitTime()):
		}
	}

	return ErrRetryLimitExceeded
}

func (x *expRetryTimer) calcWaitTime() time.Duration {
	wait := math.Pow(2.0, float64(x.retryCount))/64 + 0.5
	mSec := time.Millisecond * time.Duration(wait*1000)
	if mSec > x.maxWait {
		mSec = x.maxWait
	}
	x.retryCount++
	return mSec
}
