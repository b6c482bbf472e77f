// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package genesis loads the chain-config-supplied session key bundles used to
// bootstrap the engine.
package genesis

import (
	"bytes"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/axiomchain/axiom/axiom"
	"github.com/axiomchain/axiom/session"
)

// KeyConfig is one pre-registered validator in the genesis file.
type KeyConfig struct {
	Account string `yaml:"account"`
	// Validator defaults to the account when empty.
	Validator   string   `yaml:"validator,omitempty"`
	SessionKeys []string `yaml:"sessionKeys"`
}

// Config is the user supplied genesis, yaml encoded.
type Config struct {
	SessionPeriod uint32      `yaml:"sessionPeriod,omitempty"`
	SessionOffset uint32      `yaml:"sessionOffset,omitempty"`
	Keys          []KeyConfig `yaml:"keys"`
}

// Load reads a genesis config file. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open genesis file")
	}
	var config Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return nil, errors.Wrap(err, "parse genesis file")
	}
	if len(config.Keys) == 0 {
		return nil, errors.New("genesis file declares no keys")
	}
	return &config, nil
}

// GenesisKeys converts the config into engine bootstrap entries, checking
// each bundle against the declared key types.
func (c *Config) GenesisKeys(keyTypes []axiom.KeyTypeID) ([]session.GenesisKey, error) {
	out := make([]session.GenesisKey, 0, len(c.Keys))
	for _, k := range c.Keys {
		account, err := axiom.ParseAddress(k.Account)
		if err != nil {
			return nil, errors.Wrapf(err, "account %q", k.Account)
		}
		validator := axiom.BytesToValidatorID(account.Bytes())
		if k.Validator != "" {
			if validator, err = axiom.ParseValidatorID(k.Validator); err != nil {
				return nil, errors.Wrapf(err, "validator %q", k.Validator)
			}
		}
		if len(k.SessionKeys) != len(keyTypes) {
			return nil, errors.Errorf("%v: expected %d session keys, got %d", account, len(keyTypes), len(k.SessionKeys))
		}
		bundle := make(session.Bundle, 0, len(k.SessionKeys))
		for i, s := range k.SessionKeys {
			raw, err := hexutil.Decode(s)
			if err != nil {
				return nil, errors.Wrapf(err, "%v: session key %v", account, keyTypes[i])
			}
			bundle = append(bundle, raw)
		}
		out = append(out, session.GenesisKey{
			Account:   account,
			Validator: validator,
			Keys:      bundle,
		})
	}
	return out, nil
}
