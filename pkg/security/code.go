package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// InviteCodeCharset drops characters that are easy to misread (0/O, 1/I/L).
const InviteCodeCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateCode returns a random string of length runes drawn uniformly from charset.
func GenerateCode(length int, charset string) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	runes := []rune(charset)
	if len(runes) == 0 {
		return "", fmt.Errorf("charset cannot be empty")
	}

	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(runes)))
	for i := 0; i < length; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b.WriteRune(runes[idx.Int64()])
	}
	return b.String(), nil
}

// GenerateInviteCode returns a code suitable for sharing a family verbally.
func GenerateInviteCode(length int) (string, error) {
	return GenerateCode(length, InviteCodeCharset)
}

// NormalizeCode trims and upper-cases user-entered codes.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
