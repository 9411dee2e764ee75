// ABOUTME: Human-readable duration values for the settings file ("30 minutes", "7 days").
// ABOUTME: Parses an integer count with an optional second/minute/hour/day unit.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const durationExpected = `a string of the format "N seconds", "N minutes", "N hours" or "N days" where N is an integer`

var durationPattern = regexp.MustCompile(`^(\d+)\s*(seconds?|minutes?|hours?|days?|)$`)

// Duration is a time.Duration that reads as "N <unit>" in YAML.
type Duration time.Duration

// InvalidDurationError reports a value that does not match the expected format.
type InvalidDurationError struct {
	Got string
}

func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("invalid duration %q: expected %s", e.Got, durationExpected)
}

// ParseDuration parses "N", "N second(s)", "N minute(s)", "N hour(s)" or
// "N day(s)". A bare number is seconds.
func ParseDuration(s string) (Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, &InvalidDurationError{Got: s}
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, &InvalidDurationError{Got: s}
	}

	var unit time.Duration
	switch m[2] {
	case "", "second", "seconds":
		unit = time.Second
	case "minute", "minutes":
		unit = time.Minute
	case "hour", "hours":
		unit = time.Hour
	case "day", "days":
		unit = 24 * time.Hour
	}
	return Duration(time.Duration(n) * unit), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML accepts both the string form and a bare integer of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar, expected %s", value.Line, durationExpected)
	}
	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = parsed
	return nil
}
