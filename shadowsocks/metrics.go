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

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the operational counters a DecryptedReader/EncryptedWriter
// pair reports. It is optional: a nil *Metrics is never dereferenced by
// reader.go/writer.go, which only call these methods through a non-nil
// check, so framer construction never requires a registry.
type Metrics struct {
	handshakes      prometheus.Counter
	framesDecrypted prometheus.Counter
	framesEncrypted prometheus.Counter
	bytesDecrypted  prometheus.Counter
	bytesEncrypted  prometheus.Counter
	rejected        *prometheus.CounterVec
}

// NewMetrics registers the framer's counters with reg and returns a
// Metrics ready to attach to readers and writers via WithMetrics. Callers
// that don't want metrics simply never call this and pass a nil *Metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		handshakes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadowsocks",
			Subsystem: "framer",
			Name:      "handshakes_total",
			Help:      "Number of AEAD stream handshakes completed.",
		}),
		framesDecrypted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadowsocks",
			Subsystem: "framer",
			Name:      "frames_decrypted_total",
			Help:      "Number of data frames successfully decrypted.",
		}),
		framesEncrypted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadowsocks",
			Subsystem: "framer",
			Name:      "frames_encrypted_total",
			Help:      "Number of data frames encrypted for writing.",
		}),
		bytesDecrypted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadowsocks",
			Subsystem: "framer",
			Name:      "plaintext_bytes_decrypted_total",
			Help:      "Plaintext bytes in successfully decrypted data frames.",
		}),
		bytesEncrypted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadowsocks",
			Subsystem: "framer",
			Name:      "plaintext_bytes_encrypted_total",
			Help:      "Plaintext bytes accepted from producers.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shadowsocks",
			Subsystem: "framer",
			Name:      "rejected_frames_total",
			Help:      "Frames rejected by reason (length, length_overflow, data).",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.handshakes, m.framesDecrypted, m.framesEncrypted, m.bytesDecrypted, m.bytesEncrypted, m.rejected)
	return m
}

// HandshakeCompleted records that a DecryptedReader finished its handshake.
func (m *Metrics) HandshakeCompleted() {
	if m == nil {
		return
	}
	m.handshakes.Inc()
}

// FrameDecrypted records one successfully decrypted data frame of n
// plaintext bytes.
func (m *Metrics) FrameDecrypted(n int) {
	if m == nil {
		return
	}
	m.framesDecrypted.Inc()
	m.bytesDecrypted.Add(float64(n))
}

// FrameEncrypted records one encrypted data frame of n plaintext bytes.
func (m *Metrics) FrameEncrypted(n int) {
	if m == nil {
		return
	}
	m.framesEncrypted.Inc()
	m.bytesEncrypted.Add(float64(n))
}

// DecryptRejected records a frame rejected for the given reason
// ("length", "length_overflow", or "data"). It deliberately carries no
// other context: per spec.md §7, a decrypt failure must not reveal which
// frame or which bytes were at fault.
func (m *Metrics) DecryptRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}
