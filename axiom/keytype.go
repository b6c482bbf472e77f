// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package axiom

import "errors"

// KeyTypeID identifies one key role within a session key bundle,
// e.g. the block-authoring key or the finality key.
type KeyTypeID [4]byte

// Well known key type ids.
var (
	// KeyTypeAuthor is the block-authoring key role.
	KeyTypeAuthor = KeyTypeID{'a', 'u', 't', 'h'}
	// KeyTypeFinality is the finality-gadget voting key role.
	KeyTypeFinality = KeyTypeID{'f', 'i', 'n', 'a'}
)

// String implements stringer.
func (k KeyTypeID) String() string {
	return string(k[:])
}

// Bytes returns byte slice form of key type id.
func (k KeyTypeID) Bytes() []byte {
	return k[:]
}

// ParseKeyTypeID converts a 4-char string into KeyTypeID.
func ParseKeyTypeID(s string) (KeyTypeID, error) {
	if len(s) != 4 {
		return KeyTypeID{}, errors.New("invalid length")
	}
	var k KeyTypeID
	copy(k[:], s)
	return k, nil
}
