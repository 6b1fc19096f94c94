package mp4

import (
	"errors"
	"fmt"

	"mediavault/internal/domain"
)

// ErrNeedMoreData is returned when parsing stops because the moov box has
// not been fully written to the file yet (e.g. a file still being scanned
// or copied). The caller should retry later rather than treat this as a
// permanent failure.
var ErrNeedMoreData = errors.New("mp4: need more data")

// invalid wraps reason as a domain.KindParse error, matching spec's
// ParseError::Invalid(reason).
func invalid(format string, args ...any) error {
	return domain.ParseErr(fmt.Errorf(format, args...))
}
