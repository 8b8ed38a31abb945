package main

import (
	"fmt"
	"strconv"
)

// parseInt parses a positional/flag argument as an int, wrapping the error
// with the field name so callers can surface it as INVALID_ARG.
func parseInt(s, field string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", field, s)
	}
	return n, nil
}
