package api

import (
	"errors"
	"fmt"
)

// ErrNetwork is returned for transport failures and non-2xx responses
var ErrNetwork = errors.New("network response was not ok")

// CodeError is an envelope whose code is not 0
type CodeError struct {
	Endpoint string
	Code     int
	Msg      string
}

func (e *CodeError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: code %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s: code %d: %s", e.Endpoint, e.Code, e.Msg)
}

// IsCodeError reports whether err carries an envelope error code
func IsCodeError(err error) bool {
	var codeErr *CodeError
	return errors.As(err, &codeErr)
}
