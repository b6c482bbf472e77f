// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import (
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Bucket provides logical bucket for a kv store, by prefixing all keys.
type Bucket string

// NewStore creates a bucket store from the source store.
func (b Bucket) NewStore(src Store) Store {
	return &bucketStore{string(b), src}
}

type bucketStore struct {
	prefix string
	src    Store
}

func (s *bucketStore) makeKey(key []byte) []byte {
	return append(append(make([]byte, 0, len(s.prefix)+len(key)), s.prefix...), key...)
}

func (s *bucketStore) Get(key []byte) ([]byte, error) {
	return s.src.Get(s.makeKey(key))
}

func (s *bucketStore) Has(key []byte) (bool, error) {
	return s.src.Has(s.makeKey(key))
}

func (s *bucketStore) IsNotFound(err error) bool {
	return s.src.IsNotFound(err)
}

func (s *bucketStore) Put(key, val []byte) error {
	return s.src.Put(s.makeKey(key), val)
}

func (s *bucketStore) Delete(key []byte) error {
	return s.src.Delete(s.makeKey(key))
}

func (s *bucketStore) Iterate(r Range) Iterator {
	bucketRange := Range{Start: s.makeKey(r.Start)}
	if r.Limit != nil {
		bucketRange.Limit = s.makeKey(r.Limit)
	} else {
		bucketRange.Limit = util.BytesPrefix([]byte(s.prefix)).Limit
	}
	return &bucketIterator{s.src.Iterate(bucketRange), len(s.prefix)}
}

// bucketIterator strips the bucket prefix off iterated keys.
type bucketIterator struct {
	Iterator
	prefixLen int
}

func (i *bucketIterator) Key() []byte {
	return i.Iterator.Key()[i.prefixLen:]
}
