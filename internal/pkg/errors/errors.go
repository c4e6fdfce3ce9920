package errors

import "errors"

var (
	ErrInvalid     = errors.New("invalid")
	ErrNotFound    = errors.New("not found")
	ErrTooMany     = errors.New("too many requests")
	ErrInternal    = errors.New("internal")
	ErrGeneration  = errors.New("generation failed")
	ErrUnavailable = errors.New("upstream unavailable")
)

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsTooMany(err error) bool {
	return errors.Is(err, ErrTooMany)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
