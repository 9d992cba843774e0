package common

import (
	"crypto/rand"
	"encoding/hex"
)

// FileIDBytes is the number of random bytes behind a file id. The hex
// encoded id is twice as long.
const FileIDBytes = 16

// MakeRandHexString generates size random bytes and returns them hex encoded,
// so the resulting string is 2*size characters long.
//
// It returns an error if the random number generator fails.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateRandByteArray returns size bytes read from crypto/rand.
// It panics if the system random source fails.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites b with zeros. Safe for nil.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// IsFileID reports whether s has the shape of an id produced by NewFileID.
func IsFileID(s string) bool {
	if len(s) != FileIDBytes*2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// NewFileID returns a fresh, unguessable file id.
func NewFileID() (string, error) {
	return MakeRandHexString(FileIDBytes)
}
