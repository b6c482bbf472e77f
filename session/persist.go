// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package session

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/axiomchain/axiom/axiom"
	"github.com/axiomchain/axiom/kv"
)

var (
	validatorsKey   = []byte("validators")
	currentIndexKey = []byte("current-index")
	queuedChangedKey = []byte("queued-changed")
	queuedKeysKey   = []byte("queued-keys")
	disabledKey     = []byte("disabled")
)

func saveValidators(putter kv.Putter, validators []axiom.ValidatorID) error {
	data, err := rlp.EncodeToBytes(validators)
	if err != nil {
		return err
	}
	return putter.Put(validatorsKey, data)
}

func loadValidators(getter kv.Getter) ([]axiom.ValidatorID, error) {
	data, err := getter.Get(validatorsKey)
	if err != nil {
		if getter.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var validators []axiom.ValidatorID
	if err := rlp.DecodeBytes(data, &validators); err != nil {
		return nil, err
	}
	return validators, nil
}

func saveCurrentIndex(putter kv.Putter, index uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], index)
	return putter.Put(currentIndexKey, b[:])
}

func loadCurrentIndex(getter kv.Getter) (uint32, error) {
	data, err := getter.Get(currentIndexKey)
	if err != nil {
		if getter.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return binary.BigEndian.Uint32(data), nil
}

func saveQueuedChanged(putter kv.Putter, changed bool) error {
	b := []byte{0}
	if changed {
		b[0] = 1
	}
	return putter.Put(queuedChangedKey, b)
}

func loadQueuedChanged(getter kv.Getter) (bool, error) {
	data, err := getter.Get(queuedChangedKey)
	if err != nil {
		if getter.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return len(data) > 0 && data[0] != 0, nil
}

func saveQueuedKeys(putter kv.Putter, queued []Entry) error {
	data, err := rlp.EncodeToBytes(queued)
	if err != nil {
		return err
	}
	return putter.Put(queuedKeysKey, data)
}

func loadQueuedKeys(getter kv.Getter) ([]Entry, error) {
	data, err := getter.Get(queuedKeysKey)
	if err != nil {
		if getter.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var queued []Entry
	if err := rlp.DecodeBytes(data, &queued); err != nil {
		return nil, err
	}
	return queued, nil
}

func saveDisabled(putter kv.Putter, disabled []uint32) error {
	data, err := rlp.EncodeToBytes(disabled)
	if err != nil {
		return err
	}
	return putter.Put(disabledKey, data)
}

func loadDisabled(getter kv.Getter) ([]uint32, error) {
	data, err := getter.Get(disabledKey)
	if err != nil {
		if getter.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var disabled []uint32
	if err := rlp.DecodeBytes(data, &disabled); err != nil {
		return nil, err
	}
	return disabled, nil
}

func saveKeys(putter kv.Putter, validator axiom.ValidatorID, keys Bundle) error {
	data, err := rlp.EncodeToBytes(keys)
	if err != nil {
		return err
	}
	return putter.Put(validator.Bytes(), data)
}

func loadKeys(getter kv.Getter, validator axiom.ValidatorID) (Bundle, bool, error) {
	data, err := getter.Get(validator.Bytes())
	if err != nil {
		if getter.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var keys Bundle
	if err := rlp.DecodeBytes(data, &keys); err != nil {
		return nil, false, err
	}
	return keys, true, nil
}

func deleteKeys(putter kv.Putter, validator axiom.ValidatorID) error {
	return putter.Delete(validator.Bytes())
}

func decodeBundle(data []byte, b *Bundle) error {
	return rlp.DecodeBytes(data, b)
}

// ownerKey builds the key-ownership index key: key type id + raw key bytes.
func ownerKey(keyType axiom.KeyTypeID, keyData []byte) []byte {
	return append(keyType.Bytes(), keyData...)
}

func saveKeyOwner(putter kv.Putter, keyType axiom.KeyTypeID, keyData []byte, owner axiom.ValidatorID) error {
	return putter.Put(ownerKey(keyType, keyData), owner.Bytes())
}

func loadKeyOwner(getter kv.Getter, keyType axiom.KeyTypeID, keyData []byte) (axiom.ValidatorID, bool, error) {
	data, err := getter.Get(ownerKey(keyType, keyData))
	if err != nil {
		if getter.IsNotFound(err) {
			return axiom.ValidatorID{}, false, nil
		}
		return axiom.ValidatorID{}, false, err
	}
	return axiom.BytesToValidatorID(data), true, nil
}

func deleteKeyOwner(putter kv.Putter, keyType axiom.KeyTypeID, keyData []byte) error {
	return putter.Delete(ownerKey(keyType, keyData))
}
