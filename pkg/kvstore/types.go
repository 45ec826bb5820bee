package kvstore

// Fixed format constants (spec.md §6.3).
const (
	// Magic is the superblock magic number.
	Magic uint32 = 122221

	// KeySize is the fixed width, in bytes, of every key.
	KeySize = 128

	// MinNumMetadata is the smallest max_key_count a store may be configured with.
	MinNumMetadata = 16

	// valueOffsetSize and valueSizeSize are the encoded widths of a metadata
	// slot's two uint64 fields.
	valueOffsetSize = 8
	valueSizeSize   = 8

	// metadataSlotSize is the on-disk size of one metadata slot:
	// key[KeySize] || value_offset(u64) || value_size(u64).
	metadataSlotSize = KeySize + valueOffsetSize + valueSizeSize

	// entryCRCSize is the encoded width of one entry_crc[slot] value.
	entryCRCSize = 4

	// fixedCRCCount is the number of fixed (non-array) CRCs at the start of
	// the CRC block: primary superblock, backup superblock, data bitmap,
	// page-rewrite area, metadata bitmap.
	fixedCRCCount = 5
	fixedCRCBytes = fixedCRCCount * 4
)

// Status is the public operation result code (spec.md §6.1).
type Status int

const (
	StatusSuccess            Status = 0
	StatusNotInitialized     Status = -1
	StatusAlreadyInitialized Status = -2
	StatusInvalidParam       Status = -3
	StatusKeyNotFound        Status = -4
	StatusKeyAlreadyExists   Status = -5
	StatusBufferTooSmall     Status = -6
	StatusNoSpace            Status = -7
	StatusStorageFailure     Status = -8
	StatusUnknown            Status = -9
)

// String implements fmt.Stringer for log-friendly output.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusNotInitialized:
		return "NOT_INITIALIZED"
	case StatusAlreadyInitialized:
		return "ALREADY_INITIALIZED"
	case StatusInvalidParam:
		return "INVALID_PARAM"
	case StatusKeyNotFound:
		return "KEY_NOT_FOUND"
	case StatusKeyAlreadyExists:
		return "KEY_ALREADY_EXISTS"
	case StatusBufferTooSmall:
		return "BUFFER_TOO_SMALL"
	case StatusNoSpace:
		return "NO_SPACE"
	case StatusStorageFailure:
		return "STORAGE_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// entryFlag is the in-RAM lifecycle flag of a key-index entry (spec.md §3).
type entryFlag uint8

const (
	flagInProgress entryFlag = 1 << iota
	flagValid
)

// metadataSlot is the decoded on-disk record {key, value_offset, value_size}.
type metadataSlot struct {
	Key         [KeySize]byte
	ValueOffset uint64
	ValueSize   uint64
}

// indexEntry is the RAM-only key-index record (spec.md §3).
type indexEntry struct {
	Key            [KeySize]byte
	MetadataOffset uint64 // absolute device byte offset of the slot
	SlotIndex      uint64 // slot index, (MetadataOffset - MetadataOff) / metadataSlotSize
	Flags          entryFlag
}

// GCMode selects which area the garbage collector reclaims (spec.md §4.7).
type GCMode int

const (
	CleanData GCMode = iota
	CleanMetadata
)

// Stats reports point-in-time store occupancy (supplemented from
// original_source/tests/kvs_test_wrappers.c, see SPEC_FULL.md).
type Stats struct {
	LiveKeys     int
	MaxKeyCount  uint64
	BytesUsed    uint64
	BytesFree    uint64
	GCRuns       uint64
}
