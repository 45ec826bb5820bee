package kvstore

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

// indexKeys extracts the index's keys, in order, as plain strings (trimming
// the zero-padding) for readable diffs.
func indexKeys(s *Store) []string {
	keys := make([]string, len(s.index))

	for i, e := range s.index {
		n := len(e.Key)
		for n > 0 && e.Key[n-1] == 0 {
			n--
		}

		keys[i] = string(e.Key[:n])
	}

	return keys
}

func TestIndexStaysSortedAfterInsertsInAnyOrder(t *testing.T) {
	s := internalTestStore(t, 256*1024)

	for _, name := range []string{"mango", "apple", "zebra", "cat", "banana"} {
		require.Equal(t, StatusSuccess, s.Put(padKey(name), []byte(name)))
	}

	want := []string{"apple", "banana", "cat", "mango", "zebra"}
	if diff := cmp.Diff(want, indexKeys(s)); diff != "" {
		t.Errorf("index order mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexFindLocatesInsertionPointForMissingKey(t *testing.T) {
	s := internalTestStore(t, 256*1024)

	for _, name := range []string{"apple", "mango", "zebra"} {
		require.Equal(t, StatusSuccess, s.Put(padKey(name), []byte(name)))
	}

	pos, found := s.indexFind(padKey("cat"))
	require.False(t, found)
	require.Equal(t, 1, pos) // between "apple" and "mango"
}

func TestIndexRemoveAtCompactsWithoutDisturbingOrder(t *testing.T) {
	s := internalTestStore(t, 256*1024)

	for _, name := range []string{"apple", "banana", "cat"} {
		require.Equal(t, StatusSuccess, s.Put(padKey(name), []byte(name)))
	}

	pos, found := s.indexFind(padKey("banana"))
	require.True(t, found)

	s.indexRemoveAt(pos)

	want := []string{"apple", "cat"}
	if diff := cmp.Diff(want, indexKeys(s), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("index after removal mismatch (-want +got):\n%s", diff)
	}
}
