package aggregate

import "errors"

var (
	ErrUnknownGranularity = errors.New("unknown granularity")
	ErrUnknownWeekday     = errors.New("unknown weekday")
)
