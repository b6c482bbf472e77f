// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package session

import "github.com/pkg/errors"

// Policy decides whether the session should be ended at a given block number,
// and gives best effort estimates of session progress and of the next rotation.
type Policy interface {
	ShouldEndSession(now uint32) bool

	// EstimateCurrentSessionProgress reports progress through the current
	// session as a percentage in [0, 100]. The last block of a session
	// reports 100, never 0.
	EstimateCurrentSessionProgress(now uint32) uint8

	// EstimateNextSessionRotation reports the block number at which the next
	// rotation is expected. When called on a rotation block the estimate
	// assumes the rotation already happened.
	EstimateNextSessionRotation(now uint32) uint32

	AverageSessionLength() uint32
}

// Periodic ends the session after a fixed period of blocks.
//
// The first session will have length of offset, and the following sessions
// will have length of period. offset >= period is accepted, though it yields
// very short or zero-length effective first sessions.
type Periodic struct {
	period uint32
	offset uint32
}

var _ Policy = Periodic{}

// NewPeriodic creates a periodic session policy. period must be positive.
func NewPeriodic(period, offset uint32) (Periodic, error) {
	if period == 0 {
		return Periodic{}, errors.New("period must be positive")
	}
	return Periodic{period, offset}, nil
}

// ShouldEndSession implements Policy.
func (p Periodic) ShouldEndSession(now uint32) bool {
	return now >= p.offset && (now-p.offset)%p.period == 0
}

// EstimateCurrentSessionProgress implements Policy.
func (p Periodic) EstimateCurrentSessionProgress(now uint32) uint8 {
	// we add one since the current block has already elapsed, i.e. when
	// evaluating the last block in the session the progress is 100%
	if now >= p.offset {
		current := uint64((now-p.offset)%p.period) + 1
		return uint8(current * 100 / uint64(p.period))
	}
	return uint8(uint64(now+1) * 100 / uint64(p.offset))
}

// EstimateNextSessionRotation implements Policy.
func (p Periodic) EstimateNextSessionRotation(now uint32) uint32 {
	if now > p.offset {
		rem := (now - p.offset) % p.period
		if rem > 0 {
			return now + (p.period - rem)
		}
		// the session rotated, or rotates in this block; assume the former
		return now + p.period
	}
	return p.offset
}

// AverageSessionLength implements Policy.
func (p Periodic) AverageSessionLength() uint32 {
	return p.period
}
