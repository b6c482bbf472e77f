// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package axiom

import "fmt"

// Fraction presents a rational threshold, e.g. 1/3 of the validator set.
// The zero value means 0, i.e. the threshold is reached as soon as
// anything is counted against it.
type Fraction struct {
	Num uint32
	Den uint32
}

// NewFraction creates a fraction. It panics if den is zero.
func NewFraction(num, den uint32) Fraction {
	if den == 0 {
		panic("fraction: zero denominator")
	}
	return Fraction{num, den}
}

// Mul returns floor(n * num / den).
func (f Fraction) Mul(n uint32) uint32 {
	if f.Den == 0 {
		return 0
	}
	return uint32(uint64(n) * uint64(f.Num) / uint64(f.Den))
}

// String implements stringer.
func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}
