// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package session

import (
	"bytes"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/axiomchain/axiom/axiom"
)

const proofContext = "axiom-session-key-proof"

// proofDigest is the message a key holder signs to prove ownership of one
// session key. Binding the account prevents proof replay by another account.
func proofDigest(account axiom.Address, keyType axiom.KeyTypeID, keyData []byte) axiom.Bytes32 {
	return axiom.Blake2b([]byte(proofContext), account.Bytes(), keyType.Bytes(), keyData)
}

// Secp256k1Verifier verifies ownership proofs for bundles of compressed
// secp256k1 public keys. The proof is the concatenation of one 65-byte
// recoverable signature per declared key type, each signing the proof digest
// of its key with the matching private key.
type Secp256k1Verifier struct{}

var _ ProofVerifier = Secp256k1Verifier{}

// Verify implements ProofVerifier.
func (Secp256k1Verifier) Verify(account axiom.Address, keyTypes []axiom.KeyTypeID, keys Bundle, proof []byte) bool {
	if len(proof) != 65*len(keyTypes) {
		return false
	}
	for i, kt := range keyTypes {
		sig := proof[i*65 : (i+1)*65]
		digest := proofDigest(account, kt, keys.Get(i))
		pub, err := crypto.SigToPub(digest.Bytes(), sig)
		if err != nil {
			return false
		}
		if !bytes.Equal(crypto.CompressPubkey(pub), keys.Get(i)) {
			return false
		}
	}
	return true
}

// SignOwnershipProof builds a key bundle and its ownership proof from the
// given private keys, one per declared key type. Intended for tooling and
// tests; a production validator signs with its own key management.
func SignOwnershipProof(account axiom.Address, keyTypes []axiom.KeyTypeID, privateKeys []*ecdsa.PrivateKey) (Bundle, []byte, error) {
	if len(privateKeys) != len(keyTypes) {
		return nil, nil, errors.New("one private key per key type required")
	}
	bundle := make(Bundle, 0, len(privateKeys))
	proof := make([]byte, 0, 65*len(privateKeys))
	for i, priv := range privateKeys {
		key := crypto.CompressPubkey(&priv.PublicKey)
		digest := proofDigest(account, keyTypes[i], key)
		sig, err := crypto.Sign(digest.Bytes(), priv)
		if err != nil {
			return nil, nil, err
		}
		bundle = append(bundle, key)
		proof = append(proof, sig...)
	}
	return bundle, proof, nil
}
