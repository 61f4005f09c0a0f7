package morph

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Encryption errors.
var (
	ErrInvalidKeySize   = errors.New("invalid key size")
	ErrCiphertextShort  = errors.New("ciphertext too short")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Encryptor handles encryption/decryption operations.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

type aesEncryptor struct {
	gcm cipher.AEAD
}

// AES returns an AES-GCM encryptor.
// Key must be 16, 24, or 32 bytes for AES-128, AES-192, or AES-256.
func AES(key []byte) (Encryptor, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("%w: must be 16, 24, or 32 bytes, got %d", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &aesEncryptor{gcm: gcm}, nil
}

// Encrypt seals plaintext with a random nonce prepended to the ciphertext.
func (e *aesEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return e.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext produced by Encrypt.
func (e *aesEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	n := e.gcm.NonceSize()
	if len(ciphertext) < n {
		return nil, ErrCiphertextShort
	}
	out, err := e.gcm.Open(nil, ciphertext[:n], ciphertext[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return out, nil
}

// EncryptConverter seals string or []byte values. Strings become base64
// text; byte slices stay binary.
func EncryptConverter(enc Encryptor) Converter {
	return ConverterFunc(func(v any) (any, error) {
		b, ok, err := plaintext(v)
		if err != nil || !ok {
			return nil, err
		}
		sealed, err := enc.Encrypt(b)
		if err != nil {
			return nil, err
		}
		if _, isBytes := v.([]byte); isBytes {
			return sealed, nil
		}
		return base64.StdEncoding.EncodeToString(sealed), nil
	})
}

// DecryptConverter reverses EncryptConverter.
func DecryptConverter(enc Encryptor) Converter {
	return ConverterFunc(func(v any) (any, error) {
		b, ok, err := plaintext(v)
		if err != nil || !ok {
			return nil, err
		}
		_, isBytes := v.([]byte)
		if !isBytes {
			if b, err = base64.StdEncoding.DecodeString(string(b)); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
			}
		}
		opened, err := enc.Decrypt(b)
		if err != nil {
			return nil, err
		}
		if isBytes {
			return opened, nil
		}
		return string(opened), nil
	})
}
