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
	"errors"

	logging "github.com/op/go-logging"
)

var logger = logging.MustGetLogger("shadowsocks")

// LogTerminalError writes a single ERROR line classifying a fatal framer
// error for a connection identified by tag (e.g. a remote address). It
// never logs frame contents, lengths, or byte offsets, per spec.md §7:
// decrypt failures are likely adversarial or a key mismatch, and the log
// line must not help an attacker learn which frame tripped the check.
func LogTerminalError(tag string, err error) {
	var tooLong *DataTooLongError
	switch {
	case err == nil:
		return
	case errors.Is(err, ErrDecryptLength) || errors.Is(err, ErrDecryptData):
		logger.Errorf("%s: AEAD tag verification failed, closing connection", tag)
	case errors.As(err, &tooLong):
		logger.Errorf("%s: chunk length exceeds the protocol limit, closing connection", tag)
	default:
		if IsFatal(err) {
			logger.Errorf("%s: protocol error, closing connection: %v", tag, err)
		} else {
			logger.Debugf("%s: transport error: %v", tag, err)
		}
	}
}
