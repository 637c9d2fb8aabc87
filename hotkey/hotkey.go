// Package hotkey is the display client used where no X server is available.
// It registers bare keys through the operating system's global hotkey API.
// Delivery is asynchronous, so events cannot be replayed and only key atoms
// can be grabbed.
package hotkey

import "errors"

// ErrUnsupported is returned for inputs the platform API cannot register.
var ErrUnsupported = errors.New("not supported by the platform hotkey API")
