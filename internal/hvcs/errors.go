package hvcs

import "errors"

// Common errors
var (
	ErrNotFound         = errors.New("vty-server adapter not found")
	ErrInvalidNode      = errors.New("invalid device node")
	ErrMissingAttribute = errors.New("sysfs attribute does not exist")
	ErrVerifyFailed     = errors.New("disconnect verification failed")
)
