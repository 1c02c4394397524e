package results

import "errors"

// ErrSizeMismatch is returned when a file does not hold exactly the number
// of bytes of the array it is read into.
var ErrSizeMismatch = errors.New("size mismatch")
