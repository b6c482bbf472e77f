// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package axiom

// Constants of the chain.
const (
	// BlockInterval time interval between two consecutive blocks, in seconds.
	BlockInterval uint64 = 10

	// DefaultSessionPeriod number of blocks per session once sessions are running.
	DefaultSessionPeriod uint32 = 180

	// DefaultSessionOffset number of blocks before the first session ends.
	DefaultSessionOffset uint32 = 0
)

// DefaultDisabledThreshold is the fraction of the validator set that is safe
// to be disabled within one session.
var DefaultDisabledThreshold = Fraction{Num: 1, Den: 3}
