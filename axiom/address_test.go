// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package axiom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAddress(t *testing.T) {
	addr := BytesToAddress([]byte{1, 2, 3})

	parsed, err := ParseAddress(addr.String())
	assert.Nil(t, err)
	assert.Equal(t, addr, parsed)

	_, err = ParseAddress("0x123")
	assert.NotNil(t, err)

	_, err = ParseAddress("zz" + addr.String()[2:])
	assert.NotNil(t, err)
}

func TestParseValidatorID(t *testing.T) {
	id := BytesToValidatorID([]byte{0xca, 0xfe})

	parsed, err := ParseValidatorID(id.String())
	assert.Nil(t, err)
	assert.Equal(t, id, parsed)

	assert.True(t, ValidatorID{}.IsZero())
	assert.False(t, id.IsZero())
	assert.True(t, ValidatorID{}.Compare(id) < 0)
}
