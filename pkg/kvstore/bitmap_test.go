package kvstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetClearTestBit(t *testing.T) {
	bitmap := make([]byte, 4)

	require.False(t, testBit(bitmap, 5))

	setBit(bitmap, 5)
	require.True(t, testBit(bitmap, 5))

	// Neighboring bits stay untouched.
	require.False(t, testBit(bitmap, 4))
	require.False(t, testBit(bitmap, 6))

	clearBit(bitmap, 5)
	require.False(t, testBit(bitmap, 5))
}

func TestTestBit_OutOfRangeIndexReadsFalse(t *testing.T) {
	bitmap := make([]byte, 1)

	require.False(t, testBit(bitmap, 100))
}

func TestEncodeDecodeRewriteCounters(t *testing.T) {
	counters := []uint32{0, 1, 0xFFFFFFFF, 42}

	buf := encodeRewriteCounters(counters)
	require.Len(t, buf, len(counters)*4)

	decoded := decodeRewriteCounters(buf, uint64(len(counters)))
	require.Equal(t, counters, decoded)
}

func TestDataWordRange_RejectsOutsideUserDataArea(t *testing.T) {
	s := internalTestStore(t, 256*1024)

	_, _, err := s.dataWordRange(s.sb.MetadataOff, uint64(s.geom.WordSize))
	require.ErrorIs(t, err, errInvalidParam)

	_, _, err = s.dataWordRange(s.sb.UserDataOff-uint64(s.geom.WordSize), uint64(s.geom.WordSize))
	require.ErrorIs(t, err, errInvalidParam)
}

func TestDataWordRange_RejectsUnalignedOffsets(t *testing.T) {
	s := internalTestStore(t, 256*1024)

	_, _, err := s.dataWordRange(s.sb.UserDataOff+1, uint64(s.geom.WordSize))
	require.ErrorIs(t, err, errInvalidParam)
}

func TestBitmapSetAndClearRegion(t *testing.T) {
	s := internalTestStore(t, 256*1024)

	wordSize := uint64(s.geom.WordSize)
	size := 4 * wordSize

	require.NoError(t, s.bitmapSetRegion(s.sb.UserDataOff, size))

	for w := uint64(0); w < 4; w++ {
		require.True(t, testBit(s.dataBitmap, w))
	}

	require.NoError(t, s.bitmapClearRegion(s.sb.UserDataOff, size))

	for w := uint64(0); w < 4; w++ {
		require.False(t, testBit(s.dataBitmap, w))
	}
}

func TestTrackedPageIndex_SpansUserDataAndMetadataAreas(t *testing.T) {
	s := internalTestStore(t, 256*1024)

	pageSize := uint64(s.geom.PageSize)

	require.Equal(t, uint64(0), s.trackedPageIndex(s.sb.UserDataOff))
	require.Equal(t, uint64(1), s.trackedPageIndex(s.sb.UserDataOff+pageSize))

	userDataPages := s.sb.UserDataSize / pageSize
	require.Equal(t, userDataPages, s.trackedPageIndex(s.sb.MetadataOff))
}

func TestRewriteCountIncrementRegion_BumpsEveryIntersectingPage(t *testing.T) {
	s := internalTestStore(t, 256*1024)

	pageSize := uint64(s.geom.PageSize)

	s.rewriteCountIncrementRegion(s.sb.UserDataOff, pageSize+uint64(s.geom.WordSize))

	require.Equal(t, uint32(1), s.rewriteCounters[0])
	require.Equal(t, uint32(1), s.rewriteCounters[1])
	require.Equal(t, uint32(0), s.rewriteCounters[2])
}
