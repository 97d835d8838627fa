package utils

import (
	"strconv"

	"github.com/pkg/errors"
)

// Float64Flag is a floating point command line flag that go.viam.com/utils.ParseFlags can fill.
// It remembers whether it was given, so an explicit zero is told apart from an absent flag.
type Float64Flag struct {
	value float64
	set   bool
}

// NewFloat64Flag returns a flag that was given with value v.
func NewFloat64Flag(v float64) Float64Flag {
	return Float64Flag{value: v, set: true}
}

// String returns the flag value formatted for usage output.
func (f *Float64Flag) String() string {
	if f == nil || !f.set {
		return ""
	}
	return strconv.FormatFloat(f.value, 'g', -1, 64)
}

// Set parses the command line value.
func (f *Float64Flag) Set(val string) error {
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid float %q", val)
	}
	f.value = parsed
	f.set = true
	return nil
}

// Get returns the flag value as a float64.
func (f *Float64Flag) Get() interface{} {
	return f.value
}

// Float64 returns the value, 0 when the flag was not given.
func (f Float64Flag) Float64() float64 {
	return f.value
}

// IsSet is true once the flag was given, even as 0.
func (f Float64Flag) IsSet() bool {
	return f.set
}
