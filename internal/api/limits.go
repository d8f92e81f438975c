package api

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/thatsimonsguy/tank-controller/internal/model"
)

// ErrMalformedLimits is returned when a limits body does not start with
// {"max":<int>,"min":<int>.
var ErrMalformedLimits = errors.New("malformed limits body")

var (
	limitsPrefix = []byte(`{"max":`)
	limitsMiddle = []byte(`,"min":`)
)

// ParseLimits reads the fixed-shape limits body. The keys must appear in
// this order with no space around the punctuation; whitespace is allowed
// before each number and anything after the min value is ignored.
func ParseLimits(body []byte) (model.Limits, error) {
	rest, ok := bytes.CutPrefix(body, limitsPrefix)
	if !ok {
		return model.Limits{}, ErrMalformedLimits
	}
	maxVal, rest, err := scanInt(rest)
	if err != nil {
		return model.Limits{}, err
	}
	rest, ok = bytes.CutPrefix(rest, limitsMiddle)
	if !ok {
		return model.Limits{}, ErrMalformedLimits
	}
	minVal, _, err := scanInt(rest)
	if err != nil {
		return model.Limits{}, err
	}
	return model.Limits{MinPercent: minVal, MaxPercent: maxVal}, nil
}

// scanInt parses an optionally signed decimal after optional whitespace.
func scanInt(b []byte) (int, []byte, error) {
	i := 0
	for i < len(b) && isSpace(b[i]) {
		i++
	}
	start := i
	if i < len(b) && (b[i] == '-' || b[i] == '+') {
		i++
	}
	digits := i
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	if i == digits {
		return 0, b, ErrMalformedLimits
	}
	v, err := strconv.Atoi(string(b[start:i]))
	if err != nil {
		return 0, b, ErrMalformedLimits
	}
	return v, b[i:], nil
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
