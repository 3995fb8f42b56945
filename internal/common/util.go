package common

import (
	"crypto/rand"
	"math/big"
)

// AuthorizationHeaderName is the HTTP header carrying the bearer access token.
const AuthorizationHeaderName = "Authorization"

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// MakeRandAlphanumericString returns a string of the given length drawn
// uniformly from upper-case latin letters and digits using crypto/rand.
func MakeRandAlphanumericString(length int) (string, error) {
	max := big.NewInt(int64(len(alphanumeric)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphanumeric[n.Int64()]
	}
	return string(out), nil
}

// GenerateRandByteArray returns size random bytes. It panics if the system
// random source fails, which is not expected to happen on supported platforms.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites b with zeros. A nil slice is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
