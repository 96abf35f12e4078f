//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// NewRealOutput returns an error on non-Linux platforms.
func NewRealOutput(string, int, bool) (*RealOutput, error) {
	return nil, errUnsupported
}

// SetLevel is not implemented on non-Linux platforms.
func (o *RealOutput) SetLevel(bool) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (o *RealOutput) Close() error {
	return nil
}

// RealInput is not available on non-Linux platforms.
type RealInput struct{}

// NewRealInput returns an error on non-Linux platforms.
func NewRealInput(string, int, bool) (*RealInput, error) {
	return nil, errUnsupported
}

// ReadLevel is not implemented on non-Linux platforms.
func (i *RealInput) ReadLevel() (bool, error) {
	return false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (i *RealInput) Close() error {
	return nil
}
