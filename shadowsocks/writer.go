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
	"encoding/binary"
	"io"
)

// sendState is the EncryptedWriter state machine from spec.md §3.
type sendState int

const (
	stateAssemblePacket sendState = iota
	stateWriting
)

// EncryptedWriter turns a plaintext byte stream into framed, authenticated
// Shadowsocks AEAD ciphertext. Like DecryptedReader, it is driven by plain
// blocking calls: a partial transport write simply blocks the caller's
// goroutine and resumes the Writing state at the same pos, the same way
// the Rust original's poll_write_encrypted resumes Writing{pos} without
// re-encrypting.
type EncryptedWriter struct {
	cipher *Cipher
	state  sendState

	// buf holds exactly one assembled packet: the one-shot salt prefix (on
	// the very first call only) followed by length-tag and data-tag chunks.
	buf []byte
	pos int

	salt []byte

	metrics *Metrics
}

// NewEncryptedWriter creates a writer for a stream encrypted with the
// given cipher kind, pre-shared key, and salt. Unlike DecryptedReader, the
// Cipher is built immediately: the sender picks its own salt, so nothing
// about construction needs to wait on the peer.
func NewEncryptedWriter(kind CipherKind, key, salt []byte) (*EncryptedWriter, error) {
	c, err := NewCipher(kind, key, salt, true)
	if err != nil {
		return nil, err
	}
	w := &EncryptedWriter{
		cipher: c,
		state:  stateAssemblePacket,
		salt:   append([]byte(nil), salt...),
	}
	// The salt is the literal first bytes written to the transport; it is
	// queued here so the first AssemblePacket call only has to append to it.
	w.buf = append(w.buf, w.salt...)
	return w, nil
}

// WithMetrics attaches a Metrics recorder and returns the receiver.
func (w *EncryptedWriter) WithMetrics(m *Metrics) *EncryptedWriter {
	w.metrics = m
	return w
}

// Salt returns the salt this writer generated at construction. It is
// immutable for the writer's lifetime and is the same value seen by the
// corresponding DecryptedReader's Salt() after the handshake.
func (w *EncryptedWriter) Salt() []byte {
	return w.salt
}

// WriteEncrypted accepts at most MaxPacketSize bytes of plaintext,
// truncating any excess (the caller is expected to loop), builds at most
// one framed packet, and drains it fully to conn before returning. The
// returned byte count is plaintext bytes accepted, not ciphertext bytes
// written.
func (w *EncryptedWriter) WriteEncrypted(conn io.Writer, plaintext []byte) (int, error) {
	if len(plaintext) > MaxPacketSize {
		plaintext = plaintext[:MaxPacketSize]
	}

	for {
		switch w.state {
		case stateAssemblePacket:
			tagLen := w.cipher.TagLen()

			// Step 1: length chunk. Exactly one encrypt call, advancing the
			// nonce once.
			lengthStart := len(w.buf)
			w.buf = append(w.buf, make([]byte, 2+tagLen)...)
			binary.BigEndian.PutUint16(w.buf[lengthStart:], uint16(len(plaintext)))
			w.cipher.Encrypt(w.buf[lengthStart : lengthStart+2+tagLen])

			// Step 2: data chunk. A second, strictly subsequent encrypt
			// call, so the two nonces used for one frame are consecutive.
			dataStart := len(w.buf)
			w.buf = append(w.buf, plaintext...)
			w.buf = append(w.buf, make([]byte, tagLen)...)
			w.cipher.Encrypt(w.buf[dataStart:])

			if w.metrics != nil {
				w.metrics.FrameEncrypted(len(plaintext))
			}

			w.pos = 0
			w.state = stateWriting

		case stateWriting:
			for w.pos < len(w.buf) {
				n, err := conn.Write(w.buf[w.pos:])
				if err != nil {
					// The partial write is preserved in w.pos; a later call
					// resumes here without re-encrypting.
					return 0, err
				}
				if n == 0 {
					return 0, io.ErrUnexpectedEOF
				}
				w.pos += n
			}
			w.buf = w.buf[:0]
			w.state = stateAssemblePacket
			return len(plaintext), nil
		}
	}
}
