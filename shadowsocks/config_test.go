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
	"encoding/hex"
	"testing"
)

func TestParseConfigAndKeyRing(t *testing.T) {
	secret := hex.EncodeToString(testKey(CipherAES128GCM))
	doc := []byte(`
keys:
  - id: user1
    cipher: aes-128-gcm
    secret: ` + secret + `
`)
	cfg, err := ParseConfig(doc)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if len(cfg.Keys) != 1 || cfg.Keys[0].ID != "user1" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	kr, err := cfg.KeyRing()
	if err != nil {
		t.Fatalf("KeyRing: %v", err)
	}
	snapshot := kr.SnapshotForClientIP(nil)
	if len(snapshot) != 1 {
		t.Fatalf("got %d entries, want 1", len(snapshot))
	}
}

func TestParseConfigRejectsBadSecretLength(t *testing.T) {
	doc := []byte(`
keys:
  - id: user1
    cipher: aes-256-gcm
    secret: aabb
`)
	cfg, err := ParseConfig(doc)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if _, err := cfg.KeyRing(); err == nil {
		t.Fatal("expected an error for a too-short secret")
	}
}
