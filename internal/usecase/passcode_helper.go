package usecase

import (
	"crypto/rand"
	"io"
	"strings"

	"coupon-marketplace/internal/domain"
)

// A character set that avoids ambiguous characters like O/0, I/1.
// 32 symbols, so a random byte maps onto it without modulo bias.
const passCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const passCodeLength = 8

// generatePassCode creates a secure, random, human-enterable pass code.
func generatePassCode() (string, error) {
	buffer := make([]byte, passCodeLength)
	if _, err := io.ReadFull(rand.Reader, buffer); err != nil {
		return "", err
	}
	for i := range buffer {
		buffer[i] = passCodeChars[int(buffer[i])%len(passCodeChars)]
	}
	return string(buffer), nil
}

// normalizePassCode upper-cases user input and rejects anything that could
// never have been generated.
func normalizePassCode(s string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if len(code) != passCodeLength {
		return "", domain.Invalid("pass_code", "must be 8 characters")
	}
	for _, r := range code {
		if !strings.ContainsRune(passCodeChars, r) {
			return "", domain.Invalid("pass_code", "contains an invalid character")
		}
	}
	return code, nil
}
