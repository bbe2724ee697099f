//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealLines is not available on non-Linux platforms.
type RealLines struct{}

// NewRealLines returns an error on non-Linux platforms.
func NewRealLines(chipName string) (*RealLines, error) {
	return nil, errUnsupported
}

// Input is not implemented on non-Linux platforms.
func (r *RealLines) Input(pin int, pull Pull, onEdge EdgeHandler) error { return errUnsupported }

// Output is not implemented on non-Linux platforms.
func (r *RealLines) Output(pin int, high bool) error { return errUnsupported }

// Level is not implemented on non-Linux platforms.
func (r *RealLines) Level(pin int) (bool, error) { return false, errUnsupported }

// Set is not implemented on non-Linux platforms.
func (r *RealLines) Set(pin int, high bool) error { return errUnsupported }

// Toggle is not implemented on non-Linux platforms.
func (r *RealLines) Toggle(pin int) error { return errUnsupported }

// Keep is not implemented on non-Linux platforms.
func (r *RealLines) Keep(pin int) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (r *RealLines) Close() error { return nil }
