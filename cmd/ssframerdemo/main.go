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

// Command ssframerdemo is a loopback exerciser for the shadowsocks AEAD
// framer: it accepts one connection, completes the Shadowsocks handshake,
// and echoes decrypted bytes back to the same peer re-encrypted under a
// freshly generated salt. It is not a routing proxy; it exists to give the
// framer package something runnable outside of `go test`.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logging "github.com/op/go-logging"

	"github.com/outline-ss/aead-framer/shadowsocks"
)

var logger = logging.MustGetLogger("ssframerdemo")

func main() {
	configPath := flag.String("config", "", "path to a YAML access-key config")
	listenAddr := flag.String("listen", "127.0.0.1:0", "address to accept one connection on")
	metricsAddr := flag.String("metrics", "", "if set, serve Prometheus metrics on this address")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: ssframerdemo -config keys.yaml [-listen host:port] [-metrics host:port]")
		os.Exit(2)
	}

	data, err := os.ReadFile(*configPath)
	if err != nil {
		logger.Fatalf("reading config: %v", err)
	}
	cfg, err := shadowsocks.ParseConfig(data)
	if err != nil {
		logger.Fatalf("parsing config: %v", err)
	}
	keyRing, err := cfg.KeyRing()
	if err != nil {
		logger.Fatalf("building key ring: %v", err)
	}

	reg := prometheus.NewRegistry()
	metrics := shadowsocks.NewMetrics(reg)
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			logger.Errorf("metrics server stopped: %v", http.ListenAndServe(*metricsAddr, mux))
		}()
	}

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		logger.Fatalf("listen: %v", err)
	}
	logger.Infof("listening on %s", ln.Addr())

	conn, err := ln.Accept()
	if err != nil {
		logger.Fatalf("accept: %v", err)
	}
	defer conn.Close()

	if err := serveOne(conn, keyRing, metrics); err != nil {
		shadowsocks.LogTerminalError(conn.RemoteAddr().String(), err)
		os.Exit(1)
	}
}

// serveOne performs the handshake with the first entry of
// keyRing.SnapshotForClientIP for the peer, then loops, decrypting and
// re-encrypting back to the same peer. The other entries are never tried:
// if the first key does not match, the connection fails.
func serveOne(conn net.Conn, keyRing *shadowsocks.KeyRing, metrics *shadowsocks.Metrics) error {
	snapshot := keyRing.SnapshotForClientIP(remoteIP(conn))
	if len(snapshot) == 0 {
		return fmt.Errorf("no configured keys")
	}
	entry := snapshot[0].Value.(*shadowsocks.KeyEntry)

	reader := shadowsocks.NewDecryptedReader(entry.Kind, entry.Key).WithMetrics(metrics)

	salt := make([]byte, entry.Kind.SaltLen())
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}
	writer, err := shadowsocks.NewEncryptedWriter(entry.Kind, entry.Key, salt)
	if err != nil {
		return err
	}
	writer = writer.WithMetrics(metrics)

	buf := make([]byte, 32*1024)
	for {
		n, err := reader.ReadDecrypted(conn, buf)
		if n > 0 {
			if _, werr := writer.WriteEncrypted(conn, buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			keyRing.MarkUsedByClientIP(snapshot[0], remoteIP(conn))
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func remoteIP(conn net.Conn) net.IP {
	addr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return nil
	}
	return addr.IP
}
