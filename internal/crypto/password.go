package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters used for new hashes. Stored hashes carry their own
// parameters in the PHC string, so these can be raised without invalidating
// existing credentials.
const (
	argonMemory      uint32 = 64 * 1024
	argonTime        uint32 = 1
	argonParallelism uint8  = 4
	saltLength              = 16
	keyLength        uint32 = 32
)

var ErrInvalidHashFormat = errors.New("invalid password hash format")

// HashPassword derives an argon2id hash and encodes it in PHC string format:
// $argon2id$v=19$m=65536,t=1,p=4$BASE64_SALT$BASE64_HASH
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonParallelism, keyLength)

	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonParallelism, encodedSalt, encodedHash), nil
}

// VerifyPassword re-derives the key with the parameters embedded in the
// stored hash and compares in constant time.
func VerifyPassword(encodedHash, password string) (bool, error) {
	sections := strings.Split(strings.TrimPrefix(encodedHash, "$"), "$")
	// Expected: ["argon2id", "v=19", "m=65536,t=1,p=4", salt, hash]
	if len(sections) != 5 || sections[0] != "argon2id" {
		return false, ErrInvalidHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(sections[1], "v=%d", &version); err != nil {
		return false, ErrInvalidHashFormat
	}

	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(sections[2], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false, ErrInvalidHashFormat
	}

	salt, err := base64.RawStdEncoding.DecodeString(sections[3])
	if err != nil {
		return false, ErrInvalidHashFormat
	}
	expected, err := base64.RawStdEncoding.DecodeString(sections[4])
	if err != nil {
		return false, ErrInvalidHashFormat
	}

	computed := argon2.IDKey([]byte(password), salt, t, m, p, uint32(len(expected)))

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
