package service

import (
	"fmt"
	"log/slog"
	"time"

	"library/internal/errors"
	"library/internal/model"
	"library/internal/repository"
)

type options struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a service.
type Option func(*options)

// WithLogger sets the logger used for audit messages.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the time source for borrow and return timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// lookupError turns a repository miss into a typed not-found error and wraps
// anything else unchanged.
func lookupError(err error, code, entity string, id model.ID) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errors.NotFound(code, "%s %s not found", entity, id)
	}
	return fmt.Errorf("get %s %s: %w", entity, id, err)
}
