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
	"fmt"

	yaml "gopkg.in/yaml.v2"
)

// AccessKeyConfig is one entry of a server's access key file: an id, a
// cipher method name, and a hex-encoded pre-shared key. This is the
// on-disk shape; it carries no salt, since the salt is generated fresh per
// connection by whichever side dials out.
type AccessKeyConfig struct {
	ID     string `yaml:"id"`
	Cipher string `yaml:"cipher"`
	Secret string `yaml:"secret"`
}

// Config is the top-level YAML document this package knows how to load:
// a list of access keys to populate a KeyRing with. Anything about
// listener addresses, routing, or logging verbosity is the outer
// relay loop's concern, not the framer's.
type Config struct {
	Keys []AccessKeyConfig `yaml:"keys"`
}

// ParseConfig decodes a YAML document in the shape of Config.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("shadowsocks: failed to parse config: %w", err)
	}
	return &cfg, nil
}

// KeyRing builds a KeyRing from the parsed config, decoding each secret as
// hex and validating it against its cipher's required key length.
func (c *Config) KeyRing() (*KeyRing, error) {
	kr := NewKeyRing()
	for _, ak := range c.Keys {
		kind, err := ParseCipherKind(ak.Cipher)
		if err != nil {
			return nil, fmt.Errorf("shadowsocks: key %q: %w", ak.ID, err)
		}
		key, err := hex.DecodeString(ak.Secret)
		if err != nil {
			return nil, fmt.Errorf("shadowsocks: key %q: secret is not valid hex: %w", ak.ID, err)
		}
		if len(key) != kind.KeySize() {
			return nil, fmt.Errorf("shadowsocks: key %q: %s needs a %d-byte secret, got %d", ak.ID, kind, kind.KeySize(), len(key))
		}
		kr.Add(ak.ID, kind, key)
	}
	return kr, nil
}
