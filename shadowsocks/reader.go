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

// receiveState is the DecryptedReader state machine from spec.md §3.
type receiveState int

const (
	stateWaitSalt receiveState = iota
	stateReadLength
	stateReadData
	stateBufferedData
)

// DecryptedReader turns an encrypted Shadowsocks AEAD byte stream into
// plaintext. It is not safe for concurrent use; the usual pattern is one
// goroutine per direction, blocked in ReadDecrypted, which plays the same
// role as the Rust original's poll_read_decrypted: a blocked Read parks the
// calling goroutine exactly where that state machine would return
// Poll::Pending, and resumes exactly where it would wake.
type DecryptedReader struct {
	state  receiveState
	kind   CipherKind
	key    []byte
	cipher *Cipher

	// scratch is the single reusable accumulation buffer; decryption always
	// happens in place inside it, so a frame allocates only when it is larger
	// than the buffer's current capacity.
	scratch []byte
	// buffered is the decrypted plaintext of the chunk currently being
	// drained to the caller (stateBufferedData); pos is the next undelivered
	// byte.
	buffered []byte
	pos      int
	length   int

	salt       []byte
	handshaked bool

	metrics *Metrics
}

// NewDecryptedReader creates a reader for a stream encrypted with the given
// cipher kind and pre-shared key. The Cipher itself isn't built until the
// peer's salt has been read, since the salt is chosen by the sender.
func NewDecryptedReader(kind CipherKind, key []byte) *DecryptedReader {
	return &DecryptedReader{
		state: stateWaitSalt,
		kind:  kind,
		key:   append([]byte(nil), key...),
	}
}

// WithMetrics attaches a Metrics recorder and returns the receiver, for
// call-site chaining: NewDecryptedReader(kind, key).WithMetrics(m).
func (r *DecryptedReader) WithMetrics(m *Metrics) *DecryptedReader {
	r.metrics = m
	return r
}

// Handshaked reports whether the peer's salt has been consumed and this
// reader's Cipher has been constructed. It starts false and never reverts.
func (r *DecryptedReader) Handshaked() bool {
	return r.handshaked
}

// Salt returns the salt observed from the peer, or nil before the
// handshake completes. It becomes non-nil strictly before the first
// plaintext byte is delivered. The framer does not check it against any
// replay filter; per spec.md §9 an external filter must be consulted only
// after the first successful decrypt, so that an attacker cannot flood the
// filter with forged, never-decrypted salts.
func (r *DecryptedReader) Salt() []byte {
	return r.salt
}

// sized returns a view into the reusable scratch buffer sized exactly n,
// growing the backing array only when it is too small.
func (r *DecryptedReader) sized(n int) []byte {
	if cap(r.scratch) < n {
		r.scratch = make([]byte, n)
	}
	return r.scratch[:n]
}

// ReadDecrypted delivers as much plaintext as fits in out, driving the
// receive state machine forward as many steps as it can without blocking
// the caller beyond what the underlying conn blocks on. It returns:
//   - (n, nil) with n > 0 when plaintext was delivered;
//   - (0, io.EOF) when the peer closed cleanly at a frame boundary;
//   - (0, err) for any protocol or transport error; the reader must not be
//     used again. Protocol errors and mid-chunk closes satisfy IsFatal;
//     transport errors are returned unchanged and do not.
func (r *DecryptedReader) ReadDecrypted(conn io.Reader, out []byte) (int, error) {
	for {
		switch r.state {
		case stateWaitSalt:
			saltLen := r.kind.SaltLen()
			buf := r.sized(saltLen)
			if _, err := io.ReadFull(conn, buf); err != nil {
				return 0, err
			}
			salt := append([]byte(nil), buf...)
			c, err := NewCipher(r.kind, r.key, salt, false)
			if err != nil {
				return 0, err
			}
			r.salt = salt
			r.cipher = c
			r.handshaked = true
			if r.metrics != nil {
				r.metrics.HandshakeCompleted()
			}
			r.state = stateReadLength

		case stateReadLength:
			n := 2 + r.cipher.TagLen()
			buf := r.sized(n)
			if _, err := io.ReadFull(conn, buf); err != nil {
				if err == io.EOF {
					// Clean close at a frame boundary: no partial bytes of
					// the next frame have arrived.
					return 0, io.EOF
				}
				return 0, err
			}
			if !r.cipher.Decrypt(buf) {
				if r.metrics != nil {
					r.metrics.DecryptRejected("length")
				}
				return 0, ErrDecryptLength
			}
			length := int(binary.BigEndian.Uint16(buf[:2]))
			if length > MaxPacketSize {
				if r.metrics != nil {
					r.metrics.DecryptRejected("length_overflow")
				}
				return 0, &DataTooLongError{N: length}
			}
			r.length = length
			r.state = stateReadData

		case stateReadData:
			n := r.length + r.cipher.TagLen()
			buf := r.sized(n)
			if _, err := io.ReadFull(conn, buf); err != nil {
				if err == io.EOF {
					// The peer closed mid-chunk: the length frame promised
					// a payload that never arrived.
					return 0, io.ErrUnexpectedEOF
				}
				return 0, err
			}
			if !r.cipher.Decrypt(buf) {
				if r.metrics != nil {
					r.metrics.DecryptRejected("data")
				}
				return 0, ErrDecryptData
			}
			r.buffered = buf[:r.length]
			r.pos = 0
			if r.metrics != nil {
				r.metrics.FrameDecrypted(r.length)
			}
			r.state = stateBufferedData

		case stateBufferedData:
			if r.pos < len(r.buffered) {
				n := copy(out, r.buffered[r.pos:])
				r.pos += n
				return n, nil
			}
			r.state = stateReadLength
		}
	}
}
