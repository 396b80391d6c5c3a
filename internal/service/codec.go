package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/crypto/hkdf"
)

// ErrIntegrity marks an encoded balance that could not be authenticated or
// decoded. Callers must treat it as data corruption: a mutating operation in
// progress aborts, it is never silently coerced to zero.
var ErrIntegrity = errors.New("balance representation failed integrity check")

// codecKeyInfo binds derived keys to this codec so the same master secret can
// safely feed other derivations.
const codecKeyInfo = "credit-ledger/balance-codec/v1"

// AESBalanceCodec implements ports.BalanceCodec using AES-256-GCM over the
// balance's decimal string form. Output is hex(nonce || ciphertext); a fresh
// random nonce per call makes encoding deliberately non-deterministic.
type AESBalanceCodec struct {
	aead cipher.AEAD
}

// NewAESBalanceCodec derives an AES-256 key from the master secret via
// HKDF-SHA256 and prepares the AEAD. masterKeyHex must be a 64-character hex
// string (32 bytes decoded).
func NewAESBalanceCodec(masterKeyHex string) (*AESBalanceCodec, error) {
	master, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding master key: %w", err)
	}
	if len(master) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(master))
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(codecKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("deriving codec key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &AESBalanceCodec{aead: aead}, nil
}

// Encode encrypts a balance into an opaque string safe for a text column.
// Two calls with the same balance produce different outputs.
func (c *AESBalanceCodec) Encode(balance int64) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	plaintext := strconv.FormatInt(balance, 10)
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), nil
}

// Decode reverses Encode, verifying the integrity tag. An empty representation
// is the canonical "no record yet" case and decodes to 0 without error. Any
// malformed, tampered, or non-numeric payload fails with ErrIntegrity.
func (c *AESBalanceCodec) Decode(encoded string) (int64, error) {
	if encoded == "" {
		return 0, nil
	}

	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed hex: %v", ErrIntegrity, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return 0, fmt.Errorf("%w: representation too short", ErrIntegrity)
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}

	balance, err := strconv.ParseInt(string(plaintext), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: payload is not a decimal integer", ErrIntegrity)
	}
	return balance, nil
}
