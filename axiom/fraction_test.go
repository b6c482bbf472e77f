// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package axiom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFractionMul(t *testing.T) {
	tests := []struct {
		f        Fraction
		n        uint32
		expected uint32
	}{
		{Fraction{1, 3}, 3, 1},
		{Fraction{1, 3}, 4, 1},
		{Fraction{1, 3}, 6, 2},
		{Fraction{2, 3}, 3, 2},
		{Fraction{1, 2}, 5, 2},
		{Fraction{0, 1}, 100, 0},
		{Fraction{}, 100, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.f.Mul(tt.n), "%v * %d", tt.f, tt.n)
	}
}

func TestFractionMulNoOverflow(t *testing.T) {
	// n * num overflows 32 bits, result still fits
	f := Fraction{Num: 3, Den: 4}
	assert.Equal(t, uint32(2415919104), f.Mul(3221225472))
}
