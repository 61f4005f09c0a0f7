package morph

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// HashFunc performs one-way hashing.
// Password hashes (argon2, bcrypt) embed their salt and parameters;
// digests (sha256, sha512) are hex-encoded.
type HashFunc func(plaintext []byte) (string, error)

// Argon2Params configures Argon2id hashing.
type Argon2Params struct {
	Time    uint32 // Number of iterations
	Memory  uint32 // Memory usage in KiB
	Threads uint8  // Parallelism factor
	KeyLen  uint32 // Output key length
	SaltLen uint32 // Salt length
}

// DefaultArgon2Params returns recommended Argon2id parameters.
// Based on OWASP recommendations for password hashing.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:    1,
		Memory:  64 * 1024, // 64 MiB
		Threads: 4,
		KeyLen:  32,
		SaltLen: 16,
	}
}

// Argon2 returns an Argon2id HashFunc producing
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>.
func Argon2(p Argon2Params) HashFunc {
	return func(plaintext []byte) (string, error) {
		salt := make([]byte, p.SaltLen)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return "", fmt.Errorf("failed to generate salt: %w", err)
		}
		sum := argon2.IDKey(plaintext, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
		return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
			argon2.Version, p.Memory, p.Time, p.Threads,
			base64.RawStdEncoding.EncodeToString(salt),
			base64.RawStdEncoding.EncodeToString(sum),
		), nil
	}
}

// Bcrypt cost constants.
const (
	BcryptMinCost     = bcrypt.MinCost
	BcryptDefaultCost = bcrypt.DefaultCost
)

// Bcrypt returns a bcrypt HashFunc with the given cost.
func Bcrypt(cost int) HashFunc {
	return func(plaintext []byte) (string, error) {
		sum, err := bcrypt.GenerateFromPassword(plaintext, cost)
		if err != nil {
			return "", fmt.Errorf("bcrypt hash failed: %w", err)
		}
		return string(sum), nil
	}
}

// SHA256 returns the hex-encoded SHA-256 digest of plaintext.
func SHA256(plaintext []byte) (string, error) {
	sum := sha256.Sum256(plaintext)
	return hex.EncodeToString(sum[:]), nil
}

// SHA512 returns the hex-encoded SHA-512 digest of plaintext.
func SHA512(plaintext []byte) (string, error) {
	sum := sha512.Sum512(plaintext)
	return hex.EncodeToString(sum[:]), nil
}

// HashConverter adapts h to a Converter accepting string or []byte
// values and producing a string. Null passes through.
func HashConverter(h HashFunc) Converter {
	return ConverterFunc(func(v any) (any, error) {
		b, ok, err := plaintext(v)
		if err != nil || !ok {
			return nil, err
		}
		return h(b)
	})
}

// plaintext extracts bytes from a string-like value. ok is false for null.
func plaintext(v any) ([]byte, bool, error) {
	switch x := v.(type) {
	case nil:
		return nil, false, nil
	case string:
		return []byte(x), true, nil
	case *string:
		if x == nil {
			return nil, false, nil
		}
		return []byte(*x), true, nil
	case []byte:
		if x == nil {
			return nil, false, nil
		}
		return x, true, nil
	}
	return nil, false, fmt.Errorf("expected string or []byte, got %T", v)
}
