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

	"github.com/prometheus/client_golang/prometheus"
)

// TestMetricsNilIsSafe exercises every Metrics method on a nil receiver,
// which is the path taken whenever a reader/writer is built without
// WithMetrics.
func TestMetricsNilIsSafe(t *testing.T) {
	var m *Metrics
	m.HandshakeCompleted()
	m.FrameDecrypted(10)
	m.FrameEncrypted(10)
	m.DecryptRejected("data")
}

func TestMetricsWiredThroughRoundTrip(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	kind := CipherAES128GCM
	key := testKey(kind)
	salt := testSalt(kind)

	w, err := NewEncryptedWriter(kind, key, salt)
	if err != nil {
		t.Fatalf("NewEncryptedWriter: %v", err)
	}
	w = w.WithMetrics(m)

	var wire bytes.Buffer
	if _, err := w.WriteEncrypted(&wire, []byte("hello")); err != nil {
		t.Fatalf("WriteEncrypted: %v", err)
	}

	r := NewDecryptedReader(kind, key).WithMetrics(m)
	readAllDecrypted(t, r, &wire)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	totals := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			totals[f.GetName()] += metric.GetCounter().GetValue()
		}
	}
	for _, name := range []string{
		"shadowsocks_framer_handshakes_total",
		"shadowsocks_framer_frames_decrypted_total",
		"shadowsocks_framer_frames_encrypted_total",
	} {
		if totals[name] <= 0 {
			t.Errorf("expected metric family %s to be registered and non-empty", name)
		}
	}
}
