// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"crypto/ecdsa"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/axiomchain/axiom/axiom"
	"github.com/axiomchain/axiom/session"
)

// DevAccount account for development.
type DevAccount struct {
	Address    axiom.Address
	PrivateKey *ecdsa.PrivateKey
}

var devAccounts atomic.Value

// DevAccounts returns pre-alloced accounts for development mode.
func DevAccounts() []DevAccount {
	if accs := devAccounts.Load(); accs != nil {
		return accs.([]DevAccount)
	}

	var accs []DevAccount
	privKeys := []string{
		"dce1443bd2ef0c2631adc1c67e5c93f13dc23a41c18b536effbbdcbcdb96fb65",
		"321d6443bc6177273b5abf54210fe806d451d6b7973bccc2384ef78bbcd0bf51",
		"2d7c882bad2a01105e36dda3646693bc1aaaa45b0ed63fb0ce23c060294f3af2",
		"593537225b037191d322c3b1df585fb1e5100811b71a6f7fc7e29cca1333483e",
		"ca7b25fc980c759df5f3ce17a3d881d6e19a38e651fc4315fc08917edab41058",
		"88d2d80b12b92feaa0da6d62309463d20408157723f2d7e799b6a74ead9a673b",
		"fbb9e7ba5fe9969a71c6599052237b91adeb1e5fc0c96727b66e56ff5d02f9d0",
		"547fb081e73dc2e22b4aae5c60e2970b008ac4fc3073aebc27d41ace9c4f53e9",
		"c8c53657e41a8d669349fc287f57457bd746cb1fcfc38cf94d235deb2cfca81b",
		"87e0eba9c86c494d98353800571089f316740b0cb84c9a7cdf2fe5c9997c7966",
	}
	for _, str := range privKeys {
		pk, err := crypto.HexToECDSA(str)
		if err != nil {
			panic(err)
		}
		addr := crypto.PubkeyToAddress(pk.PublicKey)
		accs = append(accs, DevAccount{axiom.BytesToAddress(addr[:]), pk})
	}
	devAccounts.Store(accs)
	return accs
}

const devValidatorCount = 3

// Devnet builds a development genesis: three validators whose accounts and
// session keys are drawn from the well known dev accounts.
func Devnet(keyTypes []axiom.KeyTypeID) ([]session.GenesisKey, error) {
	accs := DevAccounts()
	need := devValidatorCount * (1 + len(keyTypes))
	if need > len(accs) {
		return nil, errors.Errorf("not enough dev accounts for %d key types", len(keyTypes))
	}

	out := make([]session.GenesisKey, 0, devValidatorCount)
	for i := 0; i < devValidatorCount; i++ {
		bundle := make(session.Bundle, 0, len(keyTypes))
		for j := range keyTypes {
			holder := accs[devValidatorCount*(j+1)+i]
			bundle = append(bundle, crypto.CompressPubkey(&holder.PrivateKey.PublicKey))
		}
		out = append(out, session.GenesisKey{
			Account:   accs[i].Address,
			Validator: axiom.BytesToValidatorID(accs[i].Address.Bytes()),
			Keys:      bundle,
		})
	}
	return out, nil
}
