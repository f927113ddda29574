package translator

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyText     = errors.New("text is empty")
	ErrEncoding      = errors.New("encoding error")
	ErrNetwork       = errors.New("network error")
	ErrEmptyResponse = errors.New("empty response")
	ErrDecoding      = errors.New("decoding error")
	ErrRemote        = errors.New("remote service error")
)

// fail records err on result and returns it wrapped in kind, keeping the
// underlying cause reachable through errors.Is / errors.As.
func fail(result *ServiceResult, kind error, err error) (*ServiceResult, error) {
	var wrapped error
	if err == nil {
		wrapped = kind
	} else {
		wrapped = fmt.Errorf("%w: %w", kind, err)
	}
	result.Error = wrapped.Error()
	return result, wrapped
}
