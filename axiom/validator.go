// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package axiom

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

// ValidatorID is the stable identity of a validator. It is distinct from the
// account address that registered it; ValidatorIDOf functions map one to the other.
type ValidatorID [20]byte

var (
	_ json.Marshaler   = (*ValidatorID)(nil)
	_ json.Unmarshaler = (*ValidatorID)(nil)
)

// String implements the stringer interface.
func (v ValidatorID) String() string {
	return "0x" + hex.EncodeToString(v[:])
}

// Bytes returns byte slice form of validator id.
func (v ValidatorID) Bytes() []byte {
	return v[:]
}

// IsZero returns if validator id has all zero bytes.
func (v ValidatorID) IsZero() bool {
	return v == ValidatorID{}
}

// Compare compares lexical order of two validator ids.
func (v ValidatorID) Compare(other ValidatorID) int {
	return bytes.Compare(v[:], other[:])
}

// MarshalJSON implements json.Marshaler.
func (v *ValidatorID) MarshalJSON() ([]byte, error) {
	if v == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(v.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *ValidatorID) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	parsed, err := ParseValidatorID(hexStr)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseValidatorID converts a string presented validator id into ValidatorID type.
func ParseValidatorID(s string) (ValidatorID, error) {
	if len(s) == len(ValidatorID{})*2 {
	} else if len(s) == len(ValidatorID{})*2+2 {
		if strings.ToLower(s[:2]) != "0x" {
			return ValidatorID{}, errors.New("invalid prefix")
		}
		s = s[2:]
	} else {
		return ValidatorID{}, errors.New("invalid length")
	}

	var id ValidatorID
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ValidatorID{}, err
	}
	return id, nil
}

// BytesToValidatorID converts a byte slice into validator id.
// If b is larger than id length, b will be cropped (from the left).
// If b is smaller than id length, b will be extended (from the left).
func BytesToValidatorID(b []byte) ValidatorID {
	var id ValidatorID
	if len(b) > len(id) {
		b = b[len(b)-len(id):]
	}
	copy(id[len(id)-len(b):], b)
	return id
}
