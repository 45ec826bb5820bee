package kvstore

import "hash/crc32"

// crc32Of computes CRC-32/IEEE (reflected, poly 0xEDB88320, init 0xFFFFFFFF,
// final XOR 0xFFFFFFFF) over buf, as required by spec.md §4.3.
// [hash/crc32.ChecksumIEEE] implements exactly this variant.
func crc32Of(buf []byte) uint32 {
	return crc32.ChecksumIEEE(buf)
}

// crcBlock is the decoded CRC block: five fixed CRCs followed by one
// entry_crc per metadata slot (spec.md §3).
type crcBlock struct {
	PrimarySuperblockCRC uint32
	BackupSuperblockCRC  uint32
	DataBitmapCRC        uint32
	RewriteAreaCRC       uint32
	MetadataBitmapCRC    uint32

	EntryCRC []uint32 // len == MaxKeyCount
}

func newCRCBlock(maxKeyCount uint64) crcBlock {
	return crcBlock{EntryCRC: make([]uint32, maxKeyCount)}
}

func (c *crcBlock) encode() []byte {
	buf := make([]byte, fixedCRCBytes+len(c.EntryCRC)*entryCRCSize)

	putU32 := func(off int, v uint32) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
		buf[off+3] = byte(v >> 24)
	}

	putU32(0, c.PrimarySuperblockCRC)
	putU32(4, c.BackupSuperblockCRC)
	putU32(8, c.DataBitmapCRC)
	putU32(12, c.RewriteAreaCRC)
	putU32(16, c.MetadataBitmapCRC)

	for i, v := range c.EntryCRC {
		putU32(fixedCRCBytes+i*entryCRCSize, v)
	}

	return buf
}

func decodeCRCBlock(buf []byte, maxKeyCount uint64) crcBlock {
	getU32 := func(off int) uint32 {
		return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
	}

	c := crcBlock{
		PrimarySuperblockCRC: getU32(0),
		BackupSuperblockCRC:  getU32(4),
		DataBitmapCRC:        getU32(8),
		RewriteAreaCRC:       getU32(12),
		MetadataBitmapCRC:    getU32(16),
		EntryCRC:             make([]uint32, maxKeyCount),
	}

	for i := range c.EntryCRC {
		c.EntryCRC[i] = getU32(fixedCRCBytes + i*entryCRCSize)
	}

	return c
}

// bitmapValid reports whether crc matches the recomputed CRC of buf.
func bitmapValid(buf []byte, crc uint32) bool {
	return crc32Of(buf) == crc
}

// metadataBitmapValid reports whether crc matches the recomputed CRC of buf.
func metadataBitmapValid(buf []byte, crc uint32) bool {
	return crc32Of(buf) == crc
}

// pageRewriteValid reports whether crc matches the recomputed CRC of buf.
func pageRewriteValid(buf []byte, crc uint32) bool {
	return crc32Of(buf) == crc
}

// encodeMetadataSlot serializes a metadata slot to metadataSlotSize bytes.
func encodeMetadataSlot(m metadataSlot) []byte {
	buf := make([]byte, metadataSlotSize)
	copy(buf, m.Key[:])

	off := KeySize
	for i := 0; i < 8; i++ {
		buf[off+i] = byte(m.ValueOffset >> (8 * i))
	}

	off += valueOffsetSize
	for i := 0; i < 8; i++ {
		buf[off+i] = byte(m.ValueSize >> (8 * i))
	}

	return buf
}

// decodeMetadataSlot deserializes a metadataSlotSize-byte buffer.
func decodeMetadataSlot(buf []byte) metadataSlot {
	var m metadataSlot

	copy(m.Key[:], buf[:KeySize])

	off := KeySize

	var vo uint64
	for i := 0; i < 8; i++ {
		vo |= uint64(buf[off+i]) << (8 * i)
	}

	m.ValueOffset = vo
	off += valueOffsetSize

	var vs uint64
	for i := 0; i < 8; i++ {
		vs |= uint64(buf[off+i]) << (8 * i)
	}

	m.ValueSize = vs

	return m
}
