// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package session

import (
	"bytes"

	"github.com/axiomchain/axiom/axiom"
	"github.com/axiomchain/axiom/kv"
)

// SetKeys sets the session keys of account to keys, for use not in the next
// session, but the session after next. The account may set its keys prior to
// becoming a validator. Idempotent replace, keyed by validator.
func (e *Engine) SetKeys(account axiom.Address, keys Bundle, proof []byte) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if len(keys) != len(e.keyTypes) {
		return ErrInvalidProof
	}
	if !e.verifier.Verify(account, e.keyTypes, keys, proof) {
		return ErrInvalidProof
	}

	who, ok := e.validatorIDOf(account)
	if !ok {
		return ErrNoAssociatedValidatorID
	}
	if !e.liveness.CanIncRef(account) {
		return ErrNoAccount
	}

	_, hadOld, err := e.innerSetKeys(who, keys)
	if err != nil {
		return err
	}
	if !hadOld {
		return e.liveness.IncRef(account)
	}
	return nil
}

// innerSetKeys performs the key replacement, checking for duplicates first so
// a failure leaves no partial writes. It returns the replaced bundle, if any.
// It does not touch the account reference counter.
func (e *Engine) innerSetKeys(who axiom.ValidatorID, keys Bundle) (Bundle, bool, error) {
	oldKeys, hadOld, err := loadKeys(e.nextKeys, who)
	if err != nil {
		return nil, false, err
	}

	// ensure keys are without duplication
	for i, kt := range e.keyTypes {
		owner, owned, err := loadKeyOwner(e.keyOwner, kt, keys.Get(i))
		if err != nil {
			return nil, false, err
		}
		if owned && owner != who {
			return nil, false, ErrDuplicatedKey
		}
	}

	for i, kt := range e.keyTypes {
		key := keys.Get(i)
		if hadOld {
			old := oldKeys.Get(i)
			if bytes.Equal(key, old) {
				continue
			}
			if err := deleteKeyOwner(e.keyOwner, kt, old); err != nil {
				return nil, false, err
			}
		}
		if err := saveKeyOwner(e.keyOwner, kt, key, who); err != nil {
			return nil, false, err
		}
	}

	if err := saveKeys(e.nextKeys, who, keys); err != nil {
		return nil, false, err
	}
	metricKeyRegistrations().Add(1)
	return oldKeys, hadOld, nil
}

// PurgeKeys removes any session keys of account, clearing every key ownership
// entry of the removed bundle and releasing the account reference.
func (e *Engine) PurgeKeys(account axiom.Address) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	who, ok := e.validatorIDOf(account)
	if !ok {
		return ErrNoAssociatedValidatorID
	}

	oldKeys, had, err := loadKeys(e.nextKeys, who)
	if err != nil {
		return err
	}
	if !had {
		return ErrNoKeys
	}
	if err := deleteKeys(e.nextKeys, who); err != nil {
		return err
	}
	for i, kt := range e.keyTypes {
		if err := deleteKeyOwner(e.keyOwner, kt, oldKeys.Get(i)); err != nil {
			return err
		}
	}
	return e.liveness.DecRef(account)
}

// UpgradeKeys migrates every stored bundle from an old key schema to the
// declared one, rewriting key ownership entries and the queued keys with it.
//
// It must only be invoked out-of-band (never during normal block execution),
// and with extreme care: the caller must guarantee that the migrated raw keys
// stay unique per (validator, key type) across the whole set, as this
// operation cannot fully re-validate that.
func (e *Engine) UpgradeKeys(oldKeyTypes []axiom.KeyTypeID, migrate func(axiom.ValidatorID, Bundle) Bundle) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	type stored struct {
		validator axiom.ValidatorID
		keys      Bundle
	}
	var all []stored

	it := e.nextKeys.Iterate(kv.Range{})
	for it.Next() {
		entry := stored{validator: axiom.BytesToValidatorID(it.Key())}
		if err := decodeBundle(it.Value(), &entry.keys); err != nil {
			it.Release()
			return err
		}
		all = append(all, entry)
	}
	if err := it.Error(); err != nil {
		it.Release()
		return err
	}
	it.Release()

	for _, entry := range all {
		// clear all old ownership relations first. The overlap typically
		// stays the same, but the migration function makes no guarantees.
		for i, kt := range oldKeyTypes {
			if err := deleteKeyOwner(e.keyOwner, kt, entry.keys.Get(i)); err != nil {
				return err
			}
		}

		newKeys := migrate(entry.validator, entry.keys)

		for i, kt := range e.keyTypes {
			if err := saveKeyOwner(e.keyOwner, kt, newKeys.Get(i), entry.validator); err != nil {
				return err
			}
		}
		if err := saveKeys(e.nextKeys, entry.validator, newKeys); err != nil {
			return err
		}
	}

	queued, err := loadQueuedKeys(e.props)
	if err != nil {
		return err
	}
	for i := range queued {
		queued[i].Keys = migrate(queued[i].Validator, queued[i].Keys)
	}
	return saveQueuedKeys(e.props, queued)
}

// KeyOwner answers who controls the given raw key for the given key type.
func (e *Engine) KeyOwner(keyType axiom.KeyTypeID, keyData []byte) (axiom.ValidatorID, bool, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return loadKeyOwner(e.keyOwner, keyType, keyData)
}

// LoadKeys returns the currently registered key bundle of a validator.
func (e *Engine) LoadKeys(validator axiom.ValidatorID) (Bundle, bool, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return loadKeys(e.nextKeys, validator)
}

// IsRegistered reports whether the validator has a registered key bundle.
func (e *Engine) IsRegistered(validator axiom.ValidatorID) (bool, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	_, ok, err := loadKeys(e.nextKeys, validator)
	return ok, err
}
