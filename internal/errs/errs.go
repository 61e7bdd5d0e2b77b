package errs

import "errors"

// Sentinel failure kinds shared by all services. Handlers map these to
// HTTP status codes, services wrap them with context via fmt.Errorf("%w").
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnavailable     = errors.New("unavailable")
	ErrUnknown         = errors.New("unknown error")
)

func IsNotFound(err error) bool        { return errors.Is(err, ErrNotFound) }
func IsInvalidState(err error) bool    { return errors.Is(err, ErrInvalidState) }
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }
func IsUnavailable(err error) bool     { return errors.Is(err, ErrUnavailable) }
