// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package session

import (
	"encoding/binary"
	"math"

	"github.com/axiomchain/axiom/axiom"
	"github.com/axiomchain/axiom/kv"
)

var refsBucket = kv.Bucket("session-account-refs-")

// RefCounter is a kv-backed AccountLiveness. It only keeps the reference
// bookkeeping; a chain embedding the engine would typically bridge to its
// account system instead.
type RefCounter struct {
	store kv.Store
}

var _ AccountLiveness = (*RefCounter)(nil)

// NewRefCounter creates a ref counter over the given store.
func NewRefCounter(store kv.Store) *RefCounter {
	return &RefCounter{refsBucket.NewStore(store)}
}

// Refs returns the reference count held against account.
func (r *RefCounter) Refs(account axiom.Address) (uint32, error) {
	data, err := r.store.Get(account.Bytes())
	if err != nil {
		if r.store.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return binary.BigEndian.Uint32(data), nil
}

// CanIncRef implements AccountLiveness.
func (r *RefCounter) CanIncRef(account axiom.Address) bool {
	refs, err := r.Refs(account)
	return err == nil && refs < math.MaxUint32
}

// IncRef implements AccountLiveness.
func (r *RefCounter) IncRef(account axiom.Address) error {
	refs, err := r.Refs(account)
	if err != nil {
		return err
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], refs+1)
	return r.store.Put(account.Bytes(), b[:])
}

// DecRef implements AccountLiveness.
func (r *RefCounter) DecRef(account axiom.Address) error {
	refs, err := r.Refs(account)
	if err != nil {
		return err
	}
	if refs <= 1 {
		if refs == 0 {
			log.Warn("reference count underflow", "account", account)
			return nil
		}
		return r.store.Delete(account.Bytes())
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], refs-1)
	return r.store.Put(account.Bytes(), b[:])
}
