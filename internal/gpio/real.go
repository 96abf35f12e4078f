//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealOutput drives a relay through the Linux GPIO character device.
type RealOutput struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	pin  int
}

// NewRealOutput requests pin on chip as an output, initially inactive.
// activeLow inverts the physical level for relay boards that trigger on low.
func NewRealOutput(chipName string, pin int, activeLow bool) (*RealOutput, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0), gpiocdev.WithConsumer("lamp-controller")}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := chip.RequestLine(pin, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request relay pin %d: %w", pin, err)
	}

	return &RealOutput{chip: chip, line: line, pin: pin}, nil
}

// SetLevel drives the relay line.
func (o *RealOutput) SetLevel(level bool) error {
	v := 0
	if level {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set relay pin %d: %w", o.pin, err)
	}
	return nil
}

// Close releases the line.
// Reconfigures it to input with pull-down (Pi boot default) before closing so
// the relay is not left driven while nothing owns the line.
func (o *RealOutput) Close() error {
	var errs []error

	if o.line != nil {
		if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure relay pin: %w", err))
		}
		if err := o.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay pin: %w", err))
		}
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealInput reads the occupancy sensor through the Linux GPIO character device.
type RealInput struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	pin  int
}

// NewRealInput requests pin on chip as an input with pull-down.
// activeLow makes a physically low line read as true.
func NewRealInput(chipName string, pin int, activeLow bool) (*RealInput, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown, gpiocdev.WithConsumer("lamp-controller")}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := chip.RequestLine(pin, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request sensor pin %d: %w", pin, err)
	}

	return &RealInput{chip: chip, line: line, pin: pin}, nil
}

// ReadLevel returns the logical sensor level.
func (i *RealInput) ReadLevel() (bool, error) {
	v, err := i.line.Value()
	if err != nil {
		return false, fmt.Errorf("read sensor pin %d: %w", i.pin, err)
	}
	return v != 0, nil
}

// Close releases the line.
func (i *RealInput) Close() error {
	var errs []error

	if i.line != nil {
		if err := i.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sensor pin: %w", err))
		}
	}
	if i.chip != nil {
		if err := i.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
