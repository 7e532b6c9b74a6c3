package engine

import (
	"github.com/corvaxen/grecurl/result"
)

// shouldRetry decides, at the host level, whether a failed Job should
// be returned to its Host's queue for another attempt rather than
// finished with an error. Network and I/O errors, 429, and 5xx are
// retryable; any other 4xx is not.
func shouldRetry(kind result.ErrorKind, statusCode int) bool {
	if statusCode == 429 {
		return true
	}
	if statusCode >= 500 {
		return true
	}
	if statusCode >= 400 {
		return false
	}
	return kind.Recoverable()
}
