package errors

import "errors"

// Re-exported so callers importing this package under the name "errors" keep the stdlib helpers.
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)
