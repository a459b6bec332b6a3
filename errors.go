package squash

import "github.com/wippyai/squash/errors"

// Sentinels for errors.Is. They match any *errors.Error of the same kind,
// whatever the phase.
var (
	ErrOverflow    error = &errors.Error{Kind: errors.KindOverflow}
	ErrAllocation  error = &errors.Error{Kind: errors.KindAllocation}
	ErrInvalidUTF8 error = &errors.Error{Kind: errors.KindInvalidUTF8}
)

// UTF8Offset returns the offset of the first invalid byte reported by err.
func UTF8Offset(err error) (int, bool) {
	return errors.UTF8Offset(err)
}
