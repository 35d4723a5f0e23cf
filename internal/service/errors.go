package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrSelfChat        = errors.New("cannot chat with yourself")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnavailable     = errors.New("not configured")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// mapNotFound turns a missing row into ErrNotFound and passes other errors through.
func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
