// Package cryptox holds the passphrase hashing used to protect files.
//
// Hashes are Argon2id with a per-file random salt and are stored as
//
//	argon2id$<base64 salt>$<base64 key>
//
// Only the hash is persisted; plaintext passphrases never leave the request.
package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/dmitrijs2005/gophdrop/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	hashScheme = "argon2id"
	saltSize   = 16
	keySize    = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// ErrMalformedHash is returned when a stored hash cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

var b64 = base64.RawStdEncoding

// DeriveKey stretches password with salt using Argon2id.
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, keySize)
}

// HashPassword returns the encoded salted hash of password.
func HashPassword(password string) string {
	salt := common.GenerateRandByteArray(saltSize)
	key := DeriveKey([]byte(password), salt)
	return hashScheme + "$" + b64.EncodeToString(salt) + "$" + b64.EncodeToString(key)
}

// VerifyPassword reports whether password matches the encoded hash. The key
// comparison is constant time.
func VerifyPassword(encoded string, password string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != hashScheme {
		return false, ErrMalformedHash
	}
	salt, err := b64.DecodeString(parts[1])
	if err != nil {
		return false, ErrMalformedHash
	}
	want, err := b64.DecodeString(parts[2])
	if err != nil || len(want) != keySize {
		return false, ErrMalformedHash
	}

	got := DeriveKey([]byte(password), salt)
	defer common.WipeByteArray(got)

	return subtle.ConstantTimeCompare(want, got) == 1, nil
}
