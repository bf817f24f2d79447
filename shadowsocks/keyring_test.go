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
	"net"
	"testing"
)

func TestKeyRingOrdersByLastClientIP(t *testing.T) {
	kr := NewKeyRing()
	kr.Add("alice", CipherAES128GCM, testKey(CipherAES128GCM))
	e2 := kr.Add("bob", CipherAES128GCM, testKey(CipherAES128GCM))
	kr.Add("carol", CipherAES128GCM, testKey(CipherAES128GCM))

	ip := net.ParseIP("203.0.113.7")
	kr.MarkUsedByClientIP(e2, ip)

	snapshot := kr.SnapshotForClientIP(ip)
	if len(snapshot) != 3 {
		t.Fatalf("got %d entries, want 3", len(snapshot))
	}
	if snapshot[0] != e2 {
		t.Errorf("expected bob's entry first for a matching client IP")
	}
}

func TestKeyRingAddAndLookup(t *testing.T) {
	kr := NewKeyRing()
	kr.Add("k1", CipherChacha20IETFPoly1305, testKey(CipherChacha20IETFPoly1305))

	snapshot := kr.SnapshotForClientIP(nil)
	if len(snapshot) != 1 {
		t.Fatalf("got %d entries, want 1", len(snapshot))
	}
	entry := snapshot[0].Value.(*KeyEntry)
	if entry.ID != "k1" || entry.Kind != CipherChacha20IETFPoly1305 {
		t.Errorf("unexpected entry: %+v", entry)
	}
}
