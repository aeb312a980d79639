package config

import (
	"errors"
	"regexp"
	"strconv"
)

// ErrRangeSpec is returned for a range whose minimum exceeds its maximum
var ErrRangeSpec = errors.New("invalid range specified")

var (
	intRangeRe   = regexp.MustCompile(`^\s*(\-?\d*):(\-?\d*)\s*$`)
	floatRangeRe = regexp.MustCompile(`^\s*([-+]?[0-9]*\.?[0-9]*(?:[eE][-+]?[0-9]+)?):([-+]?[0-9]*\.?[0-9]*(?:[eE][-+]?[0-9]+)?)\s*$`)
)

// ParseIntRange parses a string like "-12:6" into 2 values, -12 and 6.
// Parameters min and max are the "default" min/max values: when a value is
// not specified (e.g. "-12:"), the default is assigned. Values are limited
// to [min, max]. An empty string selects both defaults.
func ParseIntRange(r string, min int, max int) (int, int, error) {
	if r == "" {
		return min, max, nil
	}
	m := intRangeRe.FindStringSubmatch(r)
	if m == nil {
		return min, max, ErrRangeSpec
	}
	minOut := min
	maxOut := max
	var err error
	if m[1] != "" && m[1] != "-" {
		if minOut, err = strconv.Atoi(m[1]); err != nil {
			return min, max, ErrRangeSpec
		}
		if minOut < min {
			minOut = min
		}
	}
	if m[2] != "" && m[2] != "-" {
		if maxOut, err = strconv.Atoi(m[2]); err != nil {
			return min, max, ErrRangeSpec
		}
		if maxOut > max {
			maxOut = max
		}
	}
	if minOut > maxOut {
		return maxOut, maxOut, ErrRangeSpec
	}
	return minOut, maxOut, nil
}

// ParseFloat64Range parses a string like "-12.01e1:+6" into 2 values,
// -120.1 and 6.0. Defaults and limits work as for ParseIntRange.
func ParseFloat64Range(r string, min float64, max float64) (float64, float64, error) {
	if r == "" {
		return min, max, nil
	}
	m := floatRangeRe.FindStringSubmatch(r)
	if m == nil {
		return min, max, ErrRangeSpec
	}
	minOut := min
	maxOut := max
	var err error
	if m[1] != "" {
		if minOut, err = strconv.ParseFloat(m[1], 64); err != nil {
			return min, max, ErrRangeSpec
		}
		if minOut < min {
			minOut = min
		}
	}
	if m[2] != "" {
		if maxOut, err = strconv.ParseFloat(m[2], 64); err != nil {
			return min, max, ErrRangeSpec
		}
		if maxOut > max {
			maxOut = max
		}
	}
	if minOut > maxOut {
		return maxOut, maxOut, ErrRangeSpec
	}
	return minOut, maxOut, nil
}
