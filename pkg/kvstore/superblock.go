package kvstore

import "encoding/binary"

// Superblock field offsets within its fixed-size encoding (spec.md §3, §6.3).
// Mirrors the fixed-offset header technique used for binary formats
// throughout the teacher pack (see DESIGN.md: pkg/slotcache/format.go).
const (
	sbOffMagic            = 0x000 // uint32
	sbOffWordSize          = 0x004 // uint32
	sbOffWordsPerPage      = 0x008 // uint32
	sbOffPageSize          = 0x00C // uint32
	sbOffPageCount         = 0x010 // uint32
	sbOffSuperblockSize    = 0x018 // uint64 (aligned to 8)
	sbOffUserDataSize      = 0x020 // uint64
	sbOffMaxKeyCount       = 0x028 // uint64
	sbOffDataBitmapOff     = 0x030 // uint64
	sbOffDataBitmapSize    = 0x038 // uint64
	sbOffMetaBitmapOff     = 0x040 // uint64
	sbOffMetaBitmapSize    = 0x048 // uint64
	sbOffRewriteOff        = 0x050 // uint64
	sbOffRewriteSize       = 0x058 // uint64
	sbOffCRCBlockOff       = 0x060 // uint64
	sbOffCRCBlockSize      = 0x068 // uint64
	sbOffUserDataOff       = 0x070 // uint64
	sbOffMetadataOff       = 0x078 // uint64
	sbOffMetadataSize      = 0x080 // uint64
	sbOffLastDataWord      = 0x088 // uint64
	sbOffLastMetaSlot      = 0x090 // uint64

	sbEncodedSize = 0x098 // bytes actually used; remainder of the 256-byte
	// region is reserved and implicitly zero.
)

// superblockSize is the fixed, on-disk size of one superblock copy.
const superblockSize = 256

// superblock is the decoded form of a primary or backup superblock
// (spec.md §3). Both copies share this layout; the backup is byte-identical
// to the primary whenever the store is consistent.
type superblock struct {
	Magic        uint32
	WordSize     uint32
	WordsPerPage uint32
	PageSize     uint32
	PageCount    uint32

	SuperblockSize uint64
	UserDataSize   uint64
	MaxKeyCount    uint64

	DataBitmapOff, DataBitmapSize uint64
	MetaBitmapOff, MetaBitmapSize uint64
	RewriteOff, RewriteSize       uint64
	CRCBlockOff, CRCBlockSize     uint64
	UserDataOff                   uint64
	MetadataOff, MetadataSize     uint64

	// Carousel cursors (spec.md §4.5, §9): persisted so wear spreading
	// survives restarts.
	LastDataWordChecked   uint64
	LastMetadataSlotChecked uint64
}

// backupOffset returns the byte offset of the backup superblock.
func (s *superblock) backupOffset(storageSize uint64) uint64 {
	return storageSize - s.SuperblockSize
}

func superblockFromLayout(l layout) superblock {
	return superblock{
		Magic:            Magic,
		WordSize:         uint32(l.geom.WordSize),
		WordsPerPage:     uint32(l.geom.WordsPerPage),
		PageSize:         uint32(l.geom.PageSize),
		PageCount:        uint32(l.geom.PageCount),
		SuperblockSize:   l.superblockSize,
		UserDataSize:     l.userDataSize,
		MaxKeyCount:      l.maxKeyCount,
		DataBitmapOff:    l.dataBitmapOff,
		DataBitmapSize:   l.dataBitmapSize,
		MetaBitmapOff:    l.metaBitmapOff,
		MetaBitmapSize:   l.metaBitmapSize,
		RewriteOff:       l.rewriteOff,
		RewriteSize:      l.rewriteSize,
		CRCBlockOff:      l.crcBlockOff,
		CRCBlockSize:     l.crcBlockSize,
		UserDataOff:      l.userDataOff,
		MetadataOff:      l.metadataOff,
		MetadataSize:     l.metadataSize,
		LastDataWordChecked:    0,
		LastMetadataSlotChecked: 0,
	}
}

// encode serializes the superblock into a superblockSize-byte buffer.
func (s *superblock) encode() []byte {
	buf := make([]byte, superblockSize)

	binary.LittleEndian.PutUint32(buf[sbOffMagic:], s.Magic)
	binary.LittleEndian.PutUint32(buf[sbOffWordSize:], s.WordSize)
	binary.LittleEndian.PutUint32(buf[sbOffWordsPerPage:], s.WordsPerPage)
	binary.LittleEndian.PutUint32(buf[sbOffPageSize:], s.PageSize)
	binary.LittleEndian.PutUint32(buf[sbOffPageCount:], s.PageCount)

	binary.LittleEndian.PutUint64(buf[sbOffSuperblockSize:], s.SuperblockSize)
	binary.LittleEndian.PutUint64(buf[sbOffUserDataSize:], s.UserDataSize)
	binary.LittleEndian.PutUint64(buf[sbOffMaxKeyCount:], s.MaxKeyCount)

	binary.LittleEndian.PutUint64(buf[sbOffDataBitmapOff:], s.DataBitmapOff)
	binary.LittleEndian.PutUint64(buf[sbOffDataBitmapSize:], s.DataBitmapSize)
	binary.LittleEndian.PutUint64(buf[sbOffMetaBitmapOff:], s.MetaBitmapOff)
	binary.LittleEndian.PutUint64(buf[sbOffMetaBitmapSize:], s.MetaBitmapSize)
	binary.LittleEndian.PutUint64(buf[sbOffRewriteOff:], s.RewriteOff)
	binary.LittleEndian.PutUint64(buf[sbOffRewriteSize:], s.RewriteSize)
	binary.LittleEndian.PutUint64(buf[sbOffCRCBlockOff:], s.CRCBlockOff)
	binary.LittleEndian.PutUint64(buf[sbOffCRCBlockSize:], s.CRCBlockSize)
	binary.LittleEndian.PutUint64(buf[sbOffUserDataOff:], s.UserDataOff)
	binary.LittleEndian.PutUint64(buf[sbOffMetadataOff:], s.MetadataOff)
	binary.LittleEndian.PutUint64(buf[sbOffMetadataSize:], s.MetadataSize)

	binary.LittleEndian.PutUint64(buf[sbOffLastDataWord:], s.LastDataWordChecked)
	binary.LittleEndian.PutUint64(buf[sbOffLastMetaSlot:], s.LastMetadataSlotChecked)

	return buf
}

// decodeSuperblock deserializes a superblockSize-byte buffer. It does not
// validate the CRC; callers check the copy's self-CRC separately
// (superblockSelfCRCValid).
func decodeSuperblock(buf []byte) superblock {
	var s superblock

	s.Magic = binary.LittleEndian.Uint32(buf[sbOffMagic:])
	s.WordSize = binary.LittleEndian.Uint32(buf[sbOffWordSize:])
	s.WordsPerPage = binary.LittleEndian.Uint32(buf[sbOffWordsPerPage:])
	s.PageSize = binary.LittleEndian.Uint32(buf[sbOffPageSize:])
	s.PageCount = binary.LittleEndian.Uint32(buf[sbOffPageCount:])

	s.SuperblockSize = binary.LittleEndian.Uint64(buf[sbOffSuperblockSize:])
	s.UserDataSize = binary.LittleEndian.Uint64(buf[sbOffUserDataSize:])
	s.MaxKeyCount = binary.LittleEndian.Uint64(buf[sbOffMaxKeyCount:])

	s.DataBitmapOff = binary.LittleEndian.Uint64(buf[sbOffDataBitmapOff:])
	s.DataBitmapSize = binary.LittleEndian.Uint64(buf[sbOffDataBitmapSize:])
	s.MetaBitmapOff = binary.LittleEndian.Uint64(buf[sbOffMetaBitmapOff:])
	s.MetaBitmapSize = binary.LittleEndian.Uint64(buf[sbOffMetaBitmapSize:])
	s.RewriteOff = binary.LittleEndian.Uint64(buf[sbOffRewriteOff:])
	s.RewriteSize = binary.LittleEndian.Uint64(buf[sbOffRewriteSize:])
	s.CRCBlockOff = binary.LittleEndian.Uint64(buf[sbOffCRCBlockOff:])
	s.CRCBlockSize = binary.LittleEndian.Uint64(buf[sbOffCRCBlockSize:])
	s.UserDataOff = binary.LittleEndian.Uint64(buf[sbOffUserDataOff:])
	s.MetadataOff = binary.LittleEndian.Uint64(buf[sbOffMetadataOff:])
	s.MetadataSize = binary.LittleEndian.Uint64(buf[sbOffMetadataSize:])

	s.LastDataWordChecked = binary.LittleEndian.Uint64(buf[sbOffLastDataWord:])
	s.LastMetadataSlotChecked = binary.LittleEndian.Uint64(buf[sbOffLastMetaSlot:])

	return s
}
