// Package envelope seals credential bundles with a server-held secret so
// clients can store and send them back without ever learning the key.
//
// Tokens have the form base64(iv) + ":" + base64(ciphertext). The payload is
// JSON encrypted with AES-256-CBC; there is no authentication tag, so tampered
// tokens either fail to decrypt or yield garbage.
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/HubViewer/internal/models"
)

const separator = ":"

var (
	// ErrMissingSecret is returned when no secret key is configured.
	ErrMissingSecret = errors.New("envelope: secret key is not set")
	// ErrMalformedCiphertext is returned for any token that cannot be opened.
	ErrMalformedCiphertext = errors.New("envelope: malformed ciphertext")
)

// Cipher encrypts and decrypts JSON records with a key derived from the
// process-wide secret. It is safe for concurrent use.
type Cipher struct {
	block cipher.Block
}

// New derives the AES-256 key as SHA-256(secret).
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return &Cipher{block: block}, nil
}

// Encrypt serializes v to JSON and seals it under a fresh random IV.
// Two calls with the same input produce different tokens.
func (c *Cipher) Encrypt(v any) (string, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(iv) + separator + base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a token produced by Encrypt and unmarshals it into v.
// Every failure is reported as ErrMalformedCiphertext.
func (c *Cipher) Decrypt(token string, v any) error {
	ivPart, dataPart, ok := strings.Cut(token, separator)
	if !ok {
		return fmt.Errorf("%w: missing separator", ErrMalformedCiphertext)
	}

	iv, err := base64.StdEncoding.DecodeString(ivPart)
	if err != nil || len(iv) != aes.BlockSize {
		return fmt.Errorf("%w: invalid iv", ErrMalformedCiphertext)
	}
	data, err := base64.StdEncoding.DecodeString(dataPart)
	if err != nil || len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return fmt.Errorf("%w: invalid payload", ErrMalformedCiphertext)
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, data)

	plain, err = unpad(plain, aes.BlockSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("%w: invalid record", ErrMalformedCiphertext)
	}
	return nil
}

// SealCredentials encrypts an account bundle.
func (c *Cipher) SealCredentials(creds models.Credentials) (string, error) {
	return c.Encrypt(creds)
}

// OpenCredentials decrypts an account bundle and checks it is usable.
func (c *Cipher) OpenCredentials(token string) (models.Credentials, error) {
	var creds models.Credentials
	if err := c.Decrypt(token, &creds); err != nil {
		return models.Credentials{}, err
	}
	if creds.User == "" || creds.Token == "" || creds.Organization == "" {
		return models.Credentials{}, fmt.Errorf("%w: incomplete credentials", ErrMalformedCiphertext)
	}
	return creds, nil
}

// pad applies PKCS#7 padding.
func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errors.New("bad block length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errors.New("bad padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errors.New("bad padding")
		}
	}
	return b[:len(b)-n], nil
}
