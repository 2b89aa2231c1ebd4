package widget

import (
	"errors"
	"fmt"
)

// ErrUnknownWidget is returned when a widget ID does not belong to a live widget.
var ErrUnknownWidget = errors.New("unknown widget")

// NetworkError is the failure a Provider reports when a reply could not be produced.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
