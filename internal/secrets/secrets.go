// Package secrets hashes and verifies user passwords and client secrets.
// Stored values are bcrypt hashes or PHC encoded argon2id hashes.
package secrets

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	argon2Prefix = "$argon2id$"

	argonIterations  = 3
	argonMemory      = 64 * 1024
	argonParallelism = 2
	argonKeyLength   = 32
	argonSaltLength  = 16

	// Bounds accepted from stored hashes; memory is in KiB.
	argonMaxIterations = 16
	argonMaxMemory     = 1024 * 1024
	argonMinSaltLength = 8
	argonMinKeyLength  = 16
	argonMaxKeyLength  = 64
)

var ErrUnsupportedHash = errors.New("unsupported hash format")

// dummyHash is compared against when a principal does not exist so the
// response time does not reveal whether it does.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("planb-dummy-secret"), bcrypt.DefaultCost)

// Hash returns a bcrypt hash of secret.
func Hash(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(bytes), nil
}

// HashArgon2id returns a PHC formatted argon2id hash of secret.
func HashArgon2id(secret string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(secret), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// IsHash reports whether value is a supported hash. argon2id values must carry
// well-formed, bounded parameters.
func IsHash(value string) bool {
	if strings.HasPrefix(value, argon2Prefix) {
		_, err := parseArgon2id(value)
		return err == nil
	}
	return isBcrypt(value)
}

// Verify compares secret with an encoded hash. Malformed hashes never match.
func Verify(secret, encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, argon2Prefix):
		return verifyArgon2id(secret, encoded) == nil
	case isBcrypt(encoded):
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret)) == nil
	default:
		return false
	}
}

// VerifyMissing burns the same work as a real comparison and always fails.
func VerifyMissing(secret string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
	return false
}

func isBcrypt(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// parseArgon2id parses $argon2id$v=19$m=X,t=Y,p=Z$salt$hash. Parameters that would
// make argon2 panic or exhaust memory are rejected.
func parseArgon2id(encoded string) (*argon2Params, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, ErrUnsupportedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, ErrUnsupportedHash
	}

	p := &argon2Params{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
	}
	switch {
	case p.iterations < 1 || p.iterations > argonMaxIterations:
		return nil, fmt.Errorf("%w: t=%d out of range", ErrUnsupportedHash, p.iterations)
	case p.parallelism < 1:
		return nil, fmt.Errorf("%w: p=%d out of range", ErrUnsupportedHash, p.parallelism)
	case p.memory < 8*uint32(p.parallelism) || p.memory > argonMaxMemory:
		return nil, fmt.Errorf("%w: m=%d out of range", ErrUnsupportedHash, p.memory)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) < argonMinSaltLength {
		return nil, fmt.Errorf("%w: salt", ErrUnsupportedHash)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) < argonMinKeyLength || len(p.key) > argonMaxKeyLength {
		return nil, fmt.Errorf("%w: hash", ErrUnsupportedHash)
	}
	return p, nil
}

func verifyArgon2id(secret, encoded string) error {
	p, err := parseArgon2id(encoded)
	if err != nil {
		return err
	}
	computed := argon2.IDKey([]byte(secret), p.salt, p.iterations, p.memory, p.parallelism, uint32(len(p.key))) // #nosec G115
	if subtle.ConstantTimeCompare(computed, p.key) != 1 {
		return errors.New("secret does not match")
	}
	return nil
}
