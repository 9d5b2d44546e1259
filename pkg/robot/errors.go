package robot

import "errors"

// ErrConfiguration is returned when the calibration profile is corrupt or
// violates its invariants.
var ErrConfiguration = errors.New("invalid configuration")
