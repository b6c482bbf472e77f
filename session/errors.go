// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package session

import "github.com/pkg/errors"

// Errors surfaced by the key management operations. They are returned before
// any state is mutated, so a failed operation never leaves partial writes.
var (
	// ErrInvalidProof ownership proof failed verification.
	ErrInvalidProof = errors.New("invalid ownership proof")

	// ErrNoAssociatedValidatorID account has no validator mapping.
	ErrNoAssociatedValidatorID = errors.New("no associated validator id for account")

	// ErrDuplicatedKey a submitted raw key is already owned by a different validator.
	ErrDuplicatedKey = errors.New("registered duplicate key")

	// ErrNoKeys purge requested but no bundle is registered.
	ErrNoKeys = errors.New("no keys associated with this account")

	// ErrNoAccount account not eligible to hold the reference needed to register keys.
	ErrNoAccount = errors.New("key setting account is not live")
)
