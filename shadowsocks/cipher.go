// Copyright 2018 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shadowsocks

import (
	"crypto/cipher"
	"crypto/sha1"
	"fmt"
	"io"

	"github.com/shadowsocks/go-shadowsocks2/shadowaead"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// CipherKind identifies one of the AEAD algorithms defined by the
// Shadowsocks AEAD spec (https://shadowsocks.org/en/spec/AEAD-Ciphers.html).
type CipherKind int

const (
	CipherAES128GCM CipherKind = iota
	CipherAES192GCM
	CipherAES256GCM
	CipherChacha20IETFPoly1305
)

func (k CipherKind) String() string {
	switch k {
	case CipherAES128GCM:
		return "aes-128-gcm"
	case CipherAES192GCM:
		return "aes-192-gcm"
	case CipherAES256GCM:
		return "aes-256-gcm"
	case CipherChacha20IETFPoly1305:
		return "chacha20-ietf-poly1305"
	default:
		return fmt.Sprintf("CipherKind(%d)", int(k))
	}
}

// KeySize is the length in bytes of the pre-shared key this kind expects.
func (k CipherKind) KeySize() int {
	switch k {
	case CipherAES128GCM:
		return 16
	case CipherAES192GCM:
		return 24
	case CipherAES256GCM, CipherChacha20IETFPoly1305:
		return 32
	default:
		panic(fmt.Sprintf("unknown CipherKind %d", int(k)))
	}
}

// SaltLen is the length in bytes of the per-connection random salt this
// kind requires. The Shadowsocks AEAD spec sets it equal to the key size.
func (k CipherKind) SaltLen() int {
	return k.KeySize()
}

// TagLen is the length in bytes of the AEAD authentication tag. All four
// ciphers in this family use a 16-byte tag.
func (k CipherKind) TagLen() int {
	return 16
}

// ParseCipherKind maps a Shadowsocks method name to a CipherKind.
func ParseCipherKind(name string) (CipherKind, error) {
	switch name {
	case "aes-128-gcm":
		return CipherAES128GCM, nil
	case "aes-192-gcm":
		return CipherAES192GCM, nil
	case "aes-256-gcm":
		return CipherAES256GCM, nil
	case "chacha20-ietf-poly1305":
		return CipherChacha20IETFPoly1305, nil
	default:
		return 0, fmt.Errorf("shadowsocks: unsupported cipher %q", name)
	}
}

func newCipherSuite(kind CipherKind, key []byte) (shadowaead.Cipher, error) {
	if len(key) != kind.KeySize() {
		return nil, fmt.Errorf("shadowsocks: %s needs a %d-byte key, got %d", kind, kind.KeySize(), len(key))
	}
	switch kind {
	case CipherAES128GCM, CipherAES192GCM, CipherAES256GCM:
		return shadowaead.AESGCM(key)
	default:
		return nil, fmt.Errorf("shadowsocks: unsupported cipher kind %s", kind)
	}
}

// subkeyInfo is the fixed HKDF info string the Shadowsocks AEAD spec uses
// to derive a per-connection subkey from (key, salt).
var subkeyInfo = []byte("ss-subkey")

// newChacha20Poly1305 derives the per-connection subkey directly with
// golang.org/x/crypto/hkdf and builds the AEAD with
// golang.org/x/crypto/chacha20poly1305, rather than going through
// shadowaead. Grounded on the same HKDF-SHA1/"ss-subkey" construction
// shadowaead.Chacha20Poly1305 performs internally.
func newChacha20Poly1305(key, salt []byte) (cipher.AEAD, error) {
	subkey := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha1.New, key, salt, subkeyInfo)
	if _, err := io.ReadFull(r, subkey); err != nil {
		return nil, fmt.Errorf("shadowsocks: deriving chacha20-ietf-poly1305 subkey: %w", err)
	}
	return chacha20poly1305.New(subkey)
}

// Cipher is the per-connection, per-direction AEAD capability described in
// spec.md §4.1: it hides the subkey derivation and the monotonic nonce
// counter behind encrypt/decrypt, so nonce reuse is structurally impossible
// at the framer level. Exactly one Cipher exists per direction per
// connection and it is never reused across connections.
type Cipher struct {
	kind    CipherKind
	aead    cipher.AEAD
	counter []byte
}

// NewCipher derives the per-connection subkey from (key, salt) using
// HKDF-SHA1 with the "ss-subkey" info string — via shadowaead.Cipher's
// Encrypter/Decrypter for the AES-GCM family, directly for
// chacha20-ietf-poly1305 — and initializes the nonce counter to zero.
// encrypting selects which of shadowaead's two key schedules to build;
// go-shadowsocks2 exposes them as separate constructors even though, for
// every cipher kind implemented today, the two schedules are identical.
func NewCipher(kind CipherKind, key, salt []byte, encrypting bool) (*Cipher, error) {
	if len(key) != kind.KeySize() {
		return nil, fmt.Errorf("shadowsocks: %s needs a %d-byte key, got %d", kind, kind.KeySize(), len(key))
	}
	if len(salt) != kind.SaltLen() {
		return nil, fmt.Errorf("shadowsocks: %s needs a %d-byte salt, got %d", kind, kind.SaltLen(), len(salt))
	}

	var aead cipher.AEAD
	var err error
	switch kind {
	case CipherChacha20IETFPoly1305:
		// The subkey schedule is identical for either direction, unlike
		// shadowaead's Encrypter/Decrypter split below, so encrypting is
		// irrelevant here.
		aead, err = newChacha20Poly1305(key, salt)
	default:
		var suite shadowaead.Cipher
		suite, err = newCipherSuite(kind, key)
		if err == nil {
			if encrypting {
				aead, err = suite.Encrypter(salt)
			} else {
				aead, err = suite.Decrypter(salt)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("shadowsocks: failed to create AEAD: %w", err)
	}
	return &Cipher{kind: kind, aead: aead, counter: make([]byte, aead.NonceSize())}, nil
}

// TagLen is the number of tag bytes this cipher's AEAD appends per message.
func (c *Cipher) TagLen() int {
	return c.aead.Overhead()
}

// Encrypt seals buf[:len(buf)-TagLen()] in place, writing the tag into the
// trailing TagLen() bytes, and advances the nonce counter by one.
func (c *Cipher) Encrypt(buf []byte) {
	plaintext := buf[:len(buf)-c.aead.Overhead()]
	c.aead.Seal(plaintext[:0], c.counter, plaintext, nil)
	increment(c.counter)
}

// Decrypt opens buf in place (buf = ciphertext||tag), leaving the
// plaintext in buf[:len(buf)-TagLen()]. It always advances the nonce
// counter, even on failure: a failed decrypt is fatal for the connection,
// so there is no retry path that could double-advance the nonce for the
// same ciphertext. It reports whether the tag verified.
func (c *Cipher) Decrypt(buf []byte) bool {
	_, err := c.aead.Open(buf[:0], c.counter, buf, nil)
	increment(c.counter)
	return err == nil
}

// increment treats b as a little-endian unsigned integer and adds one,
// wrapping around on overflow. This is the nonce counter's only mutator.
func increment(b []byte) {
	for i := range b {
		b[i]++
		if b[i] != 0 {
			return
		}
	}
}
