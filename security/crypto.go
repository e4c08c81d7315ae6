package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
)

// AEAD layout: base64(nonce || ciphertext || tag), 12-byte nonce, 16-byte
// GCM tag, key = SHA-256(passphrase).
const (
	nonceSize = 12
	tagSize   = 16
	// minBlobLen is the smallest possible decoded blob: nonce plus tag with
	// an empty plaintext.
	minBlobLen = nonceSize + tagSize
)

// DeriveKey hashes the user passphrase into a 32-byte AES-256 key.
func DeriveKey(passphrase string) [32]byte {
	return sha256.Sum256([]byte(passphrase))
}

// EncryptValue seals plaintext under the passphrase-derived key with a fresh
// random nonce and returns the base64 blob stored in structured files.
func EncryptValue(plaintext, passphrase string) (string, error) {
	key := DeriveKey(passphrase)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrCrypto, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrCrypto, err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrCrypto, err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptValue opens a blob produced by EncryptValue. Failures (malformed
// base64, short blob, wrong key, tampered data) all wrap models.ErrCrypto;
// callers at the extract path treat them as non-fatal.
func DecryptValue(blob, passphrase string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: malformed base64: %v", models.ErrCrypto, err)
	}
	if len(raw) < minBlobLen {
		return "", fmt.Errorf("%w: blob too short (%d bytes)", models.ErrCrypto, len(raw))
	}
	key := DeriveKey(passphrase)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrCrypto, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrCrypto, err)
	}
	plain, err := gcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: decryption failed", models.ErrCrypto)
	}
	return string(plain), nil
}

// LooksEncrypted reports whether a stored string has the shape of an AEAD
// blob: valid base64 decoding to at least nonce+tag bytes.
func LooksEncrypted(s string) bool {
	if len(s) < 4 || len(s)%4 != 0 {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	return err == nil && len(raw) >= minBlobLen
}

// MD5Hex returns the lowercase hex MD5 digest of text, the canonical stored
// form of md5-mode watermarks.
func MD5Hex(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
