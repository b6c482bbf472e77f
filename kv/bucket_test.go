// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomchain/axiom/kv"
	"github.com/axiomchain/axiom/lvldb"
)

func TestBucket(t *testing.T) {
	db, err := lvldb.NewMem()
	require.Nil(t, err)
	defer db.Close()

	b1 := kv.Bucket("b1-").NewStore(db)
	b2 := kv.Bucket("b2-").NewStore(db)

	require.Nil(t, b1.Put([]byte("key"), []byte("b1-value")))
	require.Nil(t, b2.Put([]byte("key"), []byte("b2-value")))

	v1, err := b1.Get([]byte("key"))
	assert.Nil(t, err)
	assert.Equal(t, []byte("b1-value"), v1)

	v2, err := b2.Get([]byte("key"))
	assert.Nil(t, err)
	assert.Equal(t, []byte("b2-value"), v2)

	// delete in one bucket leaves the other intact
	require.Nil(t, b1.Delete([]byte("key")))
	_, err = b1.Get([]byte("key"))
	assert.True(t, b1.IsNotFound(err))
	has, err := b2.Has([]byte("key"))
	assert.Nil(t, err)
	assert.True(t, has)
}

func TestBucketIterate(t *testing.T) {
	db, err := lvldb.NewMem()
	require.Nil(t, err)
	defer db.Close()

	b := kv.Bucket("b-").NewStore(db)
	other := kv.Bucket("c-").NewStore(db)

	keys := []string{"a", "b", "c"}
	for _, k := range keys {
		require.Nil(t, b.Put([]byte(k), []byte("v"+k)))
	}
	require.Nil(t, other.Put([]byte("x"), []byte("vx")))

	it := b.Iterate(kv.Range{})
	defer it.Release()

	var got []string
	for it.Next() {
		got = append(got, string(it.Key()))
	}
	assert.Nil(t, it.Error())
	assert.Equal(t, keys, got)
}
