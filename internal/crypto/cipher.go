package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/blowfish"
)

var ErrNoCipherKey = errors.New("no_cipher_key")

// sessionCipherKey clamps the session id to Blowfish's accepted key range.
func sessionCipherKey(sessionID string) ([]byte, error) {
	if sessionID == "" {
		return nil, ErrNoCipherKey
	}
	key := []byte(sessionID)
	if len(key) > 56 {
		key = key[:56]
	}
	return key, nil
}

// EncryptSessionPayload runs Blowfish in CTR mode keyed by the session id
// and returns URL-safe base64: iv || ciphertext.
func EncryptSessionPayload(sessionID string, payload []byte) (string, error) {
	key, err := sessionCipherKey(sessionID)
	if err != nil {
		return "", err
	}
	block, err := blowfish.NewCipher(key)
	if err != nil {
		return "", err
	}
	iv := make([]byte, blowfish.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}
	out := make([]byte, blowfish.BlockSize+len(payload))
	copy(out, iv)
	cipher.NewCTR(block, iv).XORKeyStream(out[blowfish.BlockSize:], payload)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// DecryptSessionPayload reverses EncryptSessionPayload. The stub service
// uses it to verify submitted scores.
func DecryptSessionPayload(sessionID string, encoded string) ([]byte, error) {
	key, err := sessionCipherKey(sessionID)
	if err != nil {
		return nil, err
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) < blowfish.BlockSize {
		return nil, errors.New("ciphertext_too_short")
	}
	block, err := blowfish.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := raw[:blowfish.BlockSize]
	payload := make([]byte, len(raw)-blowfish.BlockSize)
	cipher.NewCTR(block, iv).XORKeyStream(payload, raw[blowfish.BlockSize:])
	return payload, nil
}
