package pkg

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"unsafe"
)

// BytesToString reinterprets buf as a string without copying. buf must not be modified afterwards.
func BytesToString(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(buf), len(buf))
}

// GenerateRandomString returns n bytes from crypto/rand, URL-safe base64 encoded (no padding).
// Used for session tokens.
func GenerateRandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("random string length must be positive, got %d", n)
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
