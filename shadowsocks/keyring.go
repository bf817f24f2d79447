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
	"container/list"
	"net"
	"sync"
)

// KeyEntry is one pre-shared key a multi-user listener is willing to
// accept connections for. The public fields are constant after Add; only
// lastClientIP mutates, under KeyRing.mu.
type KeyEntry struct {
	ID   string
	Kind CipherKind
	Key  []byte

	lastClientIP net.IP
}

// KeyRing holds the set of pre-shared keys a server accepts, and lets a
// listener try candidate keys against an incoming connection's handshake
// in most-recently-used order, so that a returning client doesn't pay the
// cost of a full trial-decryption sweep against every configured user.
//
// This does not change anything about DecryptedReader's per-connection,
// single-key state machine (spec.md §3): the keyring only decides which
// key a listener constructs a DecryptedReader with.
type KeyRing struct {
	mu   sync.RWMutex
	list *list.List
}

// NewKeyRing creates an empty KeyRing.
func NewKeyRing() *KeyRing {
	return &KeyRing{list: list.New()}
}

// Add appends a new key entry.
func (kr *KeyRing) Add(id string, kind CipherKind, key []byte) *list.Element {
	kr.mu.Lock()
	defer kr.mu.Unlock()
	return kr.list.PushBack(&KeyEntry{ID: id, Kind: kind, Key: append([]byte(nil), key...)})
}

func matchesIP(e *list.Element, clientIP net.IP) bool {
	entry := e.Value.(*KeyEntry)
	return clientIP != nil && clientIP.Equal(entry.lastClientIP)
}

// SnapshotForClientIP returns every entry, with any entry last used by
// clientIP moved to the front, followed by the rest in recency order.
func (kr *KeyRing) SnapshotForClientIP(clientIP net.IP) []*list.Element {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	matched := make([]*list.Element, 0, kr.list.Len())
	rest := make([]*list.Element, 0, kr.list.Len())
	for e := kr.list.Front(); e != nil; e = e.Next() {
		if matchesIP(e, clientIP) {
			matched = append(matched, e)
		} else {
			rest = append(rest, e)
		}
	}
	return append(matched, rest...)
}

// MarkUsedByClientIP records that entry successfully handshook a
// connection from clientIP and moves it to the front of the ring.
func (kr *KeyRing) MarkUsedByClientIP(e *list.Element, clientIP net.IP) {
	kr.mu.Lock()
	defer kr.mu.Unlock()
	kr.list.MoveToFront(e)
	e.Value.(*KeyEntry).lastClientIP = clientIP
}
