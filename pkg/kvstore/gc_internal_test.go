package kvstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// internalTestStore opens a store directly against the unexported Store
// type, for tests that need to manufacture service-structure states (stale
// bitmap bits with no backing index entry) that the public API can't reach
// on its own.
func internalTestStore(t *testing.T, userDataSize uint64) *Store {
	t.Helper()

	dir := t.TempDir()

	s := New()
	require.Equal(t, StatusSuccess, s.Init(dir, Options{UserDataSize: userDataSize}))

	t.Cleanup(func() { s.Deinit() })

	return s
}

func TestRunGC_CleanData_NoGarbageReturnsErrNoSpace(t *testing.T) {
	s := internalTestStore(t, 256*1024)

	err := s.RunGC(CleanData)
	require.ErrorIs(t, err, errNoSpace)
	require.Equal(t, uint64(0), s.gcRuns)
}

func TestRunGC_CleanData_ClearsAnEmptyGarbagePage(t *testing.T) {
	s := internalTestStore(t, 256*1024)

	wordSize := uint64(s.geom.WordSize)
	wordsPerPage := uint64(s.geom.WordsPerPage)

	// Manufacture a torn-write artifact: bits set in the real data bitmap
	// for one whole page with no key-index entry behind them (as if an
	// earlier Put's bitmapSetRegion ran but the crash hit before
	// persistAllServiceData committed the index alongside it).
	for w := uint64(0); w < wordsPerPage; w++ {
		setBit(s.dataBitmap, w)
	}

	err := s.RunGC(CleanData)
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.gcRuns)

	for w := uint64(0); w < wordsPerPage; w++ {
		require.False(t, testBit(s.dataBitmap, w), "word %d should have been reclaimed", w)
	}

	empty, err := s.isRegionEmpty(s.sb.UserDataOff, wordsPerPage*wordSize)
	require.NoError(t, err)
	require.True(t, empty)
}

func TestRunGC_CleanData_EvacuatesLiveValueOffVictimPage(t *testing.T) {
	s := internalTestStore(t, 256*1024)

	status := s.Put(padKey("alpha"), []byte("hello, flash"))
	require.Equal(t, StatusSuccess, status)

	pos, found := s.indexFind(padKey("alpha"))
	require.True(t, found)

	entry := s.index[pos]

	slotBuf, err := s.readRegion(s.sb.MetadataOff+entry.SlotIndex*metadataSlotSize, metadataSlotSize)
	require.NoError(t, err)

	meta := decodeMetadataSlot(slotBuf)
	alignedSize := alignUp(meta.ValueSize, uint64(s.geom.WordSize))

	liveFirstWord := (meta.ValueOffset - s.sb.UserDataOff) / uint64(s.geom.WordSize)
	liveNumWords := alignedSize / uint64(s.geom.WordSize)

	// Manufacture garbage elsewhere on the same page as the live value, so
	// that page — not an entirely empty one — is the GC victim.
	wordsPerPage := uint64(s.geom.WordsPerPage)
	garbageCount := uint64(0)

	for w := uint64(0); w < wordsPerPage; w++ {
		if w >= liveFirstWord && w < liveFirstWord+liveNumWords {
			continue
		}

		setBit(s.dataBitmap, w)

		garbageCount++
	}

	require.Positive(t, garbageCount, "test setup must manufacture at least one garbage word")

	err = s.RunGC(CleanData)
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.gcRuns)

	// The key survived the move and still reads back correctly.
	dst := make([]byte, 64)

	n, status := s.Get(padKey("alpha"), dst)
	require.Equal(t, StatusSuccess, status)
	require.Equal(t, "hello, flash", string(dst[:n]))

	// The manufactured garbage is gone: no bit is set in [0, wordsPerPage)
	// except whatever the (possibly relocated) live value now occupies.
	live, err := s.liveDataBitmap()
	require.NoError(t, err)

	for w := uint64(0); w < wordsPerPage; w++ {
		if testBit(s.dataBitmap, w) {
			require.True(t, testBit(live, w), "word %d set but not live after gc", w)
		}
	}
}

func TestRunGC_CleanMetadata_ClearsAGarbageSlot(t *testing.T) {
	s := internalTestStore(t, 256*1024)

	// A slot marked used in the real metadata bitmap but never written
	// (still all-0xFF) and with no key-index entry: the same shape a
	// crash between bitmapSetMetadataSlot and persistAllServiceData would
	// leave behind.
	s.bitmapSetMetadataSlot(0)

	err := s.RunGC(CleanMetadata)
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.gcRuns)
	require.False(t, testBit(s.metaBitmap, 0))
}

func padKey(name string) []byte {
	k := make([]byte, KeySize)
	copy(k, name)

	return k
}
