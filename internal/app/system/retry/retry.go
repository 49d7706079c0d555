// Package retry wraps calls to external services that fail transiently
// (429 and 5xx-gateway responses) in capped exponential backoff.
//
// Plan generation deliberately does not use it: a failed plan is reported
// to the caller instead.
package retry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Policy bounds how long and how often an operation is retried.
type Policy struct {
	MaxTries   uint
	Initial    time.Duration
	Max        time.Duration
	MaxElapsed time.Duration
}

// Default is used for identity lookups.
func Default() Policy {
	return Policy{
		MaxTries:   4,
		Initial:    200 * time.Millisecond,
		Max:        2 * time.Second,
		MaxElapsed: 10 * time.Second,
	}
}

// StatusError is an unexpected HTTP response from an external service.
type StatusError struct {
	Service string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Service, e.Code)
}

// Transient reports whether an HTTP status is worth retrying.
func Transient(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Permanent marks err so Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// CheckStatus turns a non-2xx status into an error, permanent unless the
// status is transient.
func CheckStatus(service string, code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	err := &StatusError{Service: service, Code: code}
	if Transient(code) {
		return err
	}
	return Permanent(err)
}

// Do runs op until it succeeds, returns a Permanent error, or p gives up.
// The last error is returned.
func Do[T any](ctx context.Context, p Policy, name string, logger *zap.Logger, op func(context.Context) (T, error)) (T, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	b.MaxInterval = p.Max

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Debug("retrying external call",
				zap.String("call", name),
				zap.Duration("after", next),
				zap.Error(err))
		}),
	}
	if p.MaxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(p.MaxTries))
	}
	if p.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(p.MaxElapsed))
	}

	return backoff.Retry(ctx, func() (T, error) { return op(ctx) }, opts...)
}
