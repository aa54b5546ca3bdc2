// Package util holds small helpers shared across the service.
package util

import "strings"

// MaskSecret obscures a credential for logging, showing only the first
// and last few characters.
func MaskSecret(secret string) string {
	if len(secret) > 8 {
		return secret[:4] + "..." + secret[len(secret)-4:]
	} else if len(secret) > 4 {
		return secret[:2] + "..." + secret[len(secret)-2:]
	} else if len(secret) > 2 {
		return secret[:1] + "..." + secret[len(secret)-1:]
	}
	return secret
}

// MaskAddress shortens a chain address for logging while keeping it
// recognizable.
func MaskAddress(address string) string {
	trimmed := strings.TrimSpace(address)
	if len(trimmed) <= 12 {
		return trimmed
	}
	return trimmed[:8] + "..." + trimmed[len(trimmed)-4:]
}
