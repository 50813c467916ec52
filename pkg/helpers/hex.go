// Package helpers provides common utility functions used across the codebase.
package helpers

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrHexLength is returned when decoded hex has the wrong number of bytes.
var ErrHexLength = errors.New("invalid length")

// HexToBytes converts a hex string (with or without 0x prefix) to bytes.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

// DecodeFixedHex decodes a hex string that must hold exactly n bytes.
func DecodeFixedHex(s string, n int) ([]byte, error) {
	b, err := HexToBytes(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != n {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrHexLength, len(b), n)
	}
	return b, nil
}
