// Copyright 2020, Square, Inc.

// Package retry provides bounded retry of remote calls.
package retry

import (
	"context"
	"time"
)

type TryFunc func() error
type LogFunc func(error)

// RetryableFunc reports whether an error returned by a TryFunc should be retried.
type RetryableFunc func(error) bool

// Do calls tryFunc until it succeeds, returns an error that retryable rejects, or
// ctx is done. Retryable errors are passed to logFunc (if not nil) before sleeping.
// When ctx is done, the last error from tryFunc is returned, or ctx.Err() if
// tryFunc never ran. The first try always runs, even if ctx is already done.
func Do(ctx context.Context, sleep time.Duration, retryable RetryableFunc, tryFunc TryFunc, logFunc LogFunc) error {
	err := tryFunc()
	if err == nil {
		return nil
	}
	if retryable == nil || !retryable(err) {
		return err
	}
	if logFunc != nil {
		logFunc(err)
	}
	select {
	case <-ctx.Done():
		return err
	case <-time.After(sleep):
	}
	return Do(ctx, sleep, retryable, tryFunc, logFunc)
}
