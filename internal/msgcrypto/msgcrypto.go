// Package msgcrypto provides AES-256-GCM decryption for inbound message
// payloads, which arrive as a hex-encoded {cipher, iv, tag} triple.
// Decryption failures are terminal for the message: ciphertext will not
// become valid by retrying.
package msgcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"io"

	"leadchat_backend/platform/apperr"
)

const keySize = 32

// Codec decrypts message payloads with a fixed process-wide key.
type Codec struct {
	key []byte
}

// NewCodec validates the key once at startup and returns a Codec.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != keySize {
		return nil, apperr.Validation("message encryption key must be 32 bytes")
	}
	k := make([]byte, keySize)
	copy(k, key)
	return &Codec{key: k}, nil
}

// Decrypt turns a hex-encoded cipher/iv/tag triple into plaintext. Any
// malformed field or authentication failure yields a KindTerminal error.
func (c *Codec) Decrypt(cipherHex, ivHex, tagHex string) (string, error) {
	if cipherHex == "" || ivHex == "" || tagHex == "" {
		return "", apperr.Terminal("encrypted payload has empty fields").WithOp("msgcrypto.Decrypt")
	}

	ciphertext, err := hex.DecodeString(cipherHex)
	if err != nil {
		return "", apperr.Wrap(apperr.KindTerminal, "malformed ciphertext hex", err).WithOp("msgcrypto.Decrypt")
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", apperr.Wrap(apperr.KindTerminal, "malformed iv hex", err).WithOp("msgcrypto.Decrypt")
	}
	tag, err := hex.DecodeString(tagHex)
	if err != nil {
		return "", apperr.Wrap(apperr.KindTerminal, "malformed auth tag hex", err).WithOp("msgcrypto.Decrypt")
	}

	aead, err := c.gcm(len(iv))
	if err != nil {
		return "", err
	}
	if len(tag) != aead.Overhead() {
		return "", apperr.Terminal("auth tag has wrong length").WithOp("msgcrypto.Decrypt")
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindTerminal, "payload authentication failed", err).WithOp("msgcrypto.Decrypt")
	}

	return string(plaintext), nil
}

// Encrypt seals plaintext and returns the hex-encoded cipher/iv/tag triple.
// Used by tests and local tooling; the production producer is external.
func (c *Codec) Encrypt(plaintext string) (cipherHex, ivHex, tagHex string, err error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", "", "", apperr.Wrap(apperr.KindInternal, "create cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", "", apperr.Wrap(apperr.KindInternal, "create GCM", err)
	}

	iv := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", "", "", apperr.Wrap(apperr.KindInternal, "generate iv", err)
	}

	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	tagStart := len(sealed) - aead.Overhead()

	return hex.EncodeToString(sealed[:tagStart]),
		hex.EncodeToString(iv),
		hex.EncodeToString(sealed[tagStart:]),
		nil
}

// gcm builds the AEAD for the given iv length. Producers commonly use
// either the standard 12-byte nonce or a 16-byte one.
func (c *Codec) gcm(ivLen int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "create cipher", err)
	}

	if ivLen == 0 {
		return nil, apperr.Terminal("empty iv").WithOp("msgcrypto.Decrypt")
	}

	var aead cipher.AEAD
	if ivLen == 12 {
		aead, err = cipher.NewGCM(block)
	} else {
		aead, err = cipher.NewGCMWithNonceSize(block, ivLen)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTerminal, "unsupported iv length", err).WithOp("msgcrypto.Decrypt")
	}
	return aead, nil
}
