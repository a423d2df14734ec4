package service

import (
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "parksync/internal/errors"
	"parksync/internal/repository"
)

// Clock returns the current time. Services default to time.Now in UTC.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

func orClock(c Clock) Clock {
	if c == nil {
		return utcNow
	}
	return c
}

func orLogger(l logrus.FieldLogger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return discard
}

// storageErr converts a repository failure into a typed error. Errors that are
// already typed pass through untouched.
func storageErr(op string, err error, what string) error {
	var typed *apperrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &typed):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(op, "%s not found", what)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.Conflict(op, "%s already exists", what)
	default:
		return apperrors.Internal(op, err)
	}
}
