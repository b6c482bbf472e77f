// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package sessions

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/axiomchain/axiom/axiom"
	"github.com/axiomchain/axiom/session"
)

// Entry is the JSON form of a validator and its key bundle.
type Entry struct {
	Validator axiom.ValidatorID `json:"validator"`
	Keys      []hexutil.Bytes   `json:"keys"`
}

func convertEntry(e session.Entry) Entry {
	keys := make([]hexutil.Bytes, len(e.Keys))
	for i, k := range e.Keys {
		keys[i] = hexutil.Bytes(k)
	}
	return Entry{Validator: e.Validator, Keys: keys}
}

func convertEntries(entries []session.Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = convertEntry(e)
	}
	return out
}

// CurrentSession describes the active session.
type CurrentSession struct {
	Index         uint32              `json:"index"`
	Validators    []axiom.ValidatorID `json:"validators"`
	Disabled      []uint32            `json:"disabled"`
	Progress      uint8               `json:"progress"`
	NextRotation  uint32              `json:"nextRotation"`
	AverageLength uint32              `json:"averageLength"`
}

// QueuedRoster describes the roster queued for the next session.
type QueuedRoster struct {
	Changed bool    `json:"changed"`
	Entries []Entry `json:"entries"`
}

// KeyOwner names the validator controlling one raw key.
type KeyOwner struct {
	KeyType   string            `json:"keyType"`
	Key       hexutil.Bytes     `json:"key"`
	Validator axiom.ValidatorID `json:"validator"`
}

// NewSessionRecord is one emitted rotation record.
type NewSessionRecord struct {
	Index uint32 `json:"index"`
	Block uint32 `json:"block"`
}
