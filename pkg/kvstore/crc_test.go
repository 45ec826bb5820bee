package kvstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC32Of_MatchesKnownIEEEVector(t *testing.T) {
	// "123456789" is the standard CRC-32/IEEE check vector.
	require.Equal(t, uint32(0xCBF43926), crc32Of([]byte("123456789")))
}

func TestCRCBlockEncodeDecodeRoundTrip(t *testing.T) {
	blk := newCRCBlock(4)
	blk.PrimarySuperblockCRC = 1
	blk.BackupSuperblockCRC = 2
	blk.DataBitmapCRC = 3
	blk.RewriteAreaCRC = 4
	blk.MetadataBitmapCRC = 5
	blk.EntryCRC[0] = 0xAAAAAAAA
	blk.EntryCRC[3] = 0xBBBBBBBB

	buf := blk.encode()
	require.Len(t, buf, fixedCRCBytes+4*entryCRCSize)

	decoded := decodeCRCBlock(buf, 4)
	require.Equal(t, blk, decoded)
}

func TestBitmapValid_DetectsCorruption(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	crc := crc32Of(buf)

	require.True(t, bitmapValid(buf, crc))

	buf[0] ^= 0xFF
	require.False(t, bitmapValid(buf, crc))
}

func TestMetadataSlotEncodeDecodeRoundTrip(t *testing.T) {
	var m metadataSlot

	copy(m.Key[:], "some-key")
	m.ValueOffset = 0x1122334455667788
	m.ValueSize = 42

	buf := encodeMetadataSlot(m)
	require.Len(t, buf, metadataSlotSize)

	decoded := decodeMetadataSlot(buf)
	require.Equal(t, m, decoded)
}
