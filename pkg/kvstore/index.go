package kvstore

import (
	"bytes"
	"sort"
)

// Key index (spec.md §3): an in-memory sorted array of (key, metadata
// offset, flags), kept sorted byte-lexicographically by key before every
// exists/get/delete (spec.md §8 "Sortedness").

// indexSort re-sorts s.index by key.
func (s *Store) indexSort() {
	sort.Slice(s.index, func(i, j int) bool {
		return bytes.Compare(s.index[i].Key[:], s.index[j].Key[:]) < 0
	})
}

// indexFind binary-searches for key, returning its position and whether it
// was found. If not found, pos is the insertion point that keeps the index
// sorted.
func (s *Store) indexFind(key []byte) (pos int, found bool) {
	n := len(s.index)

	pos = sort.Search(n, func(i int) bool {
		return bytes.Compare(s.index[i].Key[:], key) >= 0
	})

	if pos < n && bytes.Equal(s.index[pos].Key[:], key) {
		return pos, true
	}

	return pos, false
}

// indexInsert inserts entry at its sorted position. Assumes entry.Key is
// not already present.
func (s *Store) indexInsert(entry indexEntry) {
	pos, _ := s.indexFind(entry.Key[:])

	s.index = append(s.index, indexEntry{})
	copy(s.index[pos+1:], s.index[pos:])
	s.index[pos] = entry
}

// indexRemoveAt compacts the index by shifting left from position pos.
func (s *Store) indexRemoveAt(pos int) {
	copy(s.index[pos:], s.index[pos+1:])
	s.index = s.index[:len(s.index)-1]
}
