package common

import "crypto/rand"

// GenerateRandByteArray returns n bytes from crypto/rand. It is used for
// salts and nonces; crypto/rand never fails on supported platforms.
func GenerateRandByteArray(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray zeroes b in place. Nil is allowed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
