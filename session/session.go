// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package session rotates the active validator set across sessions and keeps
// a global, injective binding between validator identities and the session
// keys they register for consensus duties.
//
// Key changes and validator-set changes are delayed: keys registered via
// SetKeys while session s is active first appear in the queued roster, and
// become active when the rotation that sets the session index to s+2 runs.
// The delay makes misbehavior always attributable to the key material that
// was active at the time of the act.
package session

import (
	"bytes"

	"github.com/inconshreveable/log15"

	"github.com/axiomchain/axiom/axiom"
)

var log = log15.New("pkg", "session")

// Bundle is an ordered set of raw session keys, one per declared key type id,
// in declaration order. A missing or short entry reads as an empty key.
type Bundle [][]byte

// Get returns the raw key at position i, or nil if the bundle is short.
func (b Bundle) Get(i int) []byte {
	if i < len(b) {
		return b[i]
	}
	return nil
}

// Equal compares two bundles position by position. Absent entries compare
// equal to empty ones.
func (b Bundle) Equal(other Bundle) bool {
	n := len(b)
	if len(other) > n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if !bytes.Equal(b.Get(i), other.Get(i)) {
			return false
		}
	}
	return true
}

// Entry pairs a validator with its session key bundle.
type Entry struct {
	Validator axiom.ValidatorID
	Keys      Bundle
}

// Event is the record emitted by a completed rotation. Note that the argument
// is the session index, not a block number.
type Event struct {
	Index uint32
}

// GenesisKey is one pre-registered key bundle in the chain config.
type GenesisKey struct {
	Account   axiom.Address
	Validator axiom.ValidatorID
	Keys      Bundle
}

// Manager creates new validator sets.
//
// NewSession plans a new session and optionally provides the new validator
// set. Even if the set is the same as before, a provided set must be treated
// as changed, since underlying economic conditions may have shifted. The
// engine guarantees NewSession(index) is invoked before EndSession(index-1).
type Manager interface {
	NewSession(index uint32) ([]axiom.ValidatorID, bool)
	EndSession(index uint32)
	StartSession(index uint32)
}

// nopManager never provides a validator set.
type nopManager struct{}

func (nopManager) NewSession(uint32) ([]axiom.ValidatorID, bool) { return nil, false }
func (nopManager) EndSession(uint32)                             {}
func (nopManager) StartSession(uint32)                           {}

// Handler observes session life cycle events. Handlers are invoked in
// registration order.
type Handler interface {
	// KeyTypes is the ordered list of key type ids this handler consumes.
	// It must match the engine's declared key types.
	KeyTypes() []axiom.KeyTypeID

	// OnGenesisSession announces the validator set of the genesis session.
	// The same set is used for the second session, so the first call to
	// OnNewSession provides the same validators.
	OnGenesisSession(validators []Entry)

	// OnNewSession announces an activated roster. changed is true whenever
	// any of the session keys, or the economic identities behind them,
	// differ from the previous session.
	OnNewSession(changed bool, validators []Entry, queued []Entry)

	// OnBeforeSessionEnding is triggered before any Manager.EndSession
	// handling, so the validator set can still be influenced.
	OnBeforeSessionEnding()

	// OnDisabled announces a validator disabled for the rest of the session.
	OnDisabled(index uint32)
}

// ProofVerifier validates an ownership proof against a key bundle.
type ProofVerifier interface {
	Verify(account axiom.Address, keyTypes []axiom.KeyTypeID, keys Bundle, proof []byte) bool
}

// ProofVerifierFunc adapts a plain function to ProofVerifier.
type ProofVerifierFunc func(account axiom.Address, keyTypes []axiom.KeyTypeID, keys Bundle, proof []byte) bool

// Verify implements ProofVerifier.
func (f ProofVerifierFunc) Verify(account axiom.Address, keyTypes []axiom.KeyTypeID, keys Bundle, proof []byte) bool {
	return f(account, keyTypes, keys, proof)
}

// AccountLiveness tracks references held against accounts, preventing an
// account that holds registered keys from being reaped.
type AccountLiveness interface {
	CanIncRef(account axiom.Address) bool
	IncRef(account axiom.Address) error
	DecRef(account axiom.Address) error
}

// nopLiveness accepts every reference and records nothing.
type nopLiveness struct{}

func (nopLiveness) CanIncRef(axiom.Address) bool { return true }
func (nopLiveness) IncRef(axiom.Address) error   { return nil }
func (nopLiveness) DecRef(axiom.Address) error   { return nil }
