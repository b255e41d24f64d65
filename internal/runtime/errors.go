package runtime

import "errors"

// Fatal startup errors from Version — the binary is missing, its version
// string didn't parse, or its major version is below the minimum supported.
var (
	ErrMissing     = errors.New("docker: not found")
	ErrUnparseable = errors.New("docker: missing or unparseable version")
	ErrTooOld      = errors.New("docker: version too old")
)

// MinMajorVersion is the lowest supported Docker major version.
const MinMajorVersion = 24
