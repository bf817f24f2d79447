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
	"bytes"
	"testing"
)

func TestIncrementWrapsLittleEndian(t *testing.T) {
	counter := make([]byte, 2)
	for i := 0; i < 256; i++ {
		increment(counter)
	}
	if counter[0] != 0 || counter[1] != 1 {
		t.Fatalf("after 256 increments, got %v, want [0 1]", counter)
	}
}

func TestCipherNonceAdvancesOncePerCall(t *testing.T) {
	kind := CipherAES128GCM
	key := testKey(kind)
	salt := testSalt(kind)

	enc, err := NewCipher(kind, key, salt, true)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	dec, err := NewCipher(kind, key, salt, false)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	tagLen := enc.TagLen()
	for i := 0; i < 3; i++ {
		buf := make([]byte, 8+tagLen)
		copy(buf, []byte("msgnum=="))
		enc.Encrypt(buf)
		if !dec.Decrypt(buf) {
			t.Fatalf("message %d failed to decrypt with matching nonce sequence", i)
		}
		if !bytes.Equal(buf[:8], []byte("msgnum==")) {
			t.Fatalf("message %d: plaintext mismatch after round trip: %q", i, buf[:8])
		}
	}
	if enc.counter[0] != 3 || dec.counter[0] != 3 {
		t.Fatalf("after 3 calls each, counters are %v and %v, want 3 in the low byte", enc.counter, dec.counter)
	}
}

func TestCipherRejectsWrongKeyLength(t *testing.T) {
	kind := CipherAES256GCM
	_, err := NewCipher(kind, make([]byte, 10), testSalt(kind), true)
	if err == nil {
		t.Fatal("expected an error for a short key")
	}
}

func TestParseCipherKindRoundTrip(t *testing.T) {
	for _, kind := range testKinds {
		parsed, err := ParseCipherKind(kind.String())
		if err != nil {
			t.Fatalf("ParseCipherKind(%s): %v", kind, err)
		}
		if parsed != kind {
			t.Errorf("ParseCipherKind(%s) = %v, want %v", kind, parsed, kind)
		}
	}
	if _, err := ParseCipherKind("rot13"); err == nil {
		t.Error("expected an error for an unknown cipher name")
	}
}
