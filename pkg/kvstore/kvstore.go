package kvstore

import (
	"fmt"

	"github.com/flashkv/flashkv/pkg/device"
)

// Options configures [Store.Init].
type Options struct {
	// UserDataSize is the desired size, in bytes, of the user data area.
	// It is aligned up to the device word size and used verbatim only when
	// creating a new store; an existing store keeps its original sizing.
	UserDataSize uint64

	// Log receives advisory diagnostic lines (spec.md §6.4). Optional.
	Log Logger
}

// Store is a handle to one key-value store instance, bound to one data
// directory on the simulated device.
//
// Per spec.md §5 the store is single-threaded and cooperative: every public
// method runs to completion before returning, and there is no background
// work. The zero value is not usable; construct one with [New] and open it
// with [Store.Init].
type Store struct {
	initialized bool

	dev     *device.Device
	dataDir string
	geom    Geometry

	sb              superblock
	dataBitmap      []byte
	metaBitmap      []byte
	rewriteCounters []uint32
	crcBlk          crcBlock
	index           []indexEntry

	log    Logger
	gcRuns uint64
}

// New returns an unopened Store. Call [Store.Init] before use.
func New() *Store {
	return &Store{log: discardLogger{}}
}

// Init opens the store at dataDir, creating it if absent (spec.md §4.9,
// §6.1). Returns [StatusAlreadyInitialized] if this Store is already open,
// [StatusStorageFailure] for any I/O or integrity problem it cannot recover
// from.
func (s *Store) Init(dataDir string, opts Options) Status {
	if s.initialized {
		return StatusAlreadyInitialized
	}

	if opts.Log != nil {
		s.log = opts.Log
	} else if s.log == nil {
		s.log = discardLogger{}
	}

	err := device.EnsureDataDir(dataDir)
	if err != nil {
		s.logf("init: ensure data dir: %v", err)

		return StatusStorageFailure
	}

	s.dataDir = dataDir
	s.geom = geometryFromDevice()

	err = s.loadExisting()
	if err == nil {
		s.initialized = true

		return StatusSuccess
	}

	s.logf("init: load_existing failed (%v), falling back to init_new", err)

	err = s.initNew(opts.UserDataSize)
	if err != nil {
		s.logf("init: init_new failed: %v", err)

		return StatusStorageFailure
	}

	s.initialized = true

	return StatusSuccess
}

// Deinit flushes service data, releases resources, and marks the Store
// closed. Always succeeds if the store was initialized; a no-op otherwise.
func (s *Store) Deinit() Status {
	if !s.initialized {
		return StatusSuccess
	}

	err := s.persistAllServiceData()
	if err != nil {
		s.logf("deinit: persist failed: %v", err)
	}

	closeErr := s.dev.Close()
	if closeErr != nil {
		s.logf("deinit: close failed: %v", closeErr)
	}

	s.initialized = false
	s.dev = nil

	return StatusSuccess
}

// Stats reports point-in-time occupancy (supplemented feature, see
// SPEC_FULL.md "SUPPLEMENTED FEATURES").
func (s *Store) Stats() (Stats, Status) {
	if !s.initialized {
		return Stats{}, StatusNotInitialized
	}

	var bytesUsed uint64

	for _, e := range s.index {
		if e.Flags&flagValid == 0 {
			continue
		}

		slotOff := s.sb.MetadataOff + e.SlotIndex*metadataSlotSize

		slotBuf, err := s.readRegion(slotOff, metadataSlotSize)
		if err != nil {
			return Stats{}, StatusStorageFailure
		}

		meta := decodeMetadataSlot(slotBuf)
		bytesUsed += alignUp(meta.ValueSize, uint64(s.geom.WordSize))
	}

	return Stats{
		LiveKeys:    s.liveKeyCount(),
		MaxKeyCount: s.sb.MaxKeyCount,
		BytesUsed:   bytesUsed,
		BytesFree:   s.sb.UserDataSize - bytesUsed,
		GCRuns:      s.gcRuns,
	}, StatusSuccess
}

func (s *Store) liveKeyCount() int {
	n := 0

	for _, e := range s.index {
		if e.Flags&flagValid != 0 {
			n++
		}
	}

	return n
}

// Verify checks, without mutating anything, the in-memory data bitmap,
// metadata bitmap and rewrite counters against the CRCs recorded at the last
// persist, then re-reads every valid key's metadata slot and value and checks
// its entry CRC, reporting the first integrity problem found. It does not
// re-read or re-check the superblocks.
//
// Supplemented from original_source/src/key_value_store/kvs_valid.c, see
// SPEC_FULL.md "SUPPLEMENTED FEATURES".
func (s *Store) Verify() Status {
	if !s.initialized {
		return StatusNotInitialized
	}

	if !bitmapValid(s.dataBitmap, s.crcBlk.DataBitmapCRC) {
		s.logf("verify: data bitmap CRC mismatch")

		return StatusStorageFailure
	}

	if !metadataBitmapValid(s.metaBitmap, s.crcBlk.MetadataBitmapCRC) {
		s.logf("verify: metadata bitmap CRC mismatch")

		return StatusStorageFailure
	}

	if !pageRewriteValid(encodeRewriteCounters(s.rewriteCounters), s.crcBlk.RewriteAreaCRC) {
		s.logf("verify: rewrite counter CRC mismatch")

		return StatusStorageFailure
	}

	for i, e := range s.index {
		if e.Flags&flagValid == 0 {
			continue
		}

		ok, err := s.isKeyValid(i)
		if err != nil {
			s.logf("verify: key %d: %v", i, err)

			return StatusStorageFailure
		}

		if !ok {
			s.logf("verify: key %d failed entry CRC", i)

			return StatusStorageFailure
		}
	}

	return StatusSuccess
}

// SetCrashCountdown arms the device's write-failure hook, terminating the
// process before the n-th subsequent word write (spec.md §8 crash-injection
// testing). n <= 0 disables it. No-op if the store isn't initialized.
func (s *Store) SetCrashCountdown(n int) {
	if !s.initialized {
		return
	}

	s.dev.SetWriteFailureCountdown(n)
}

func validateKeyLen(keyLen int) error {
	if keyLen != KeySize {
		return fmt.Errorf("%w: key length must be %d, got %d", errInvalidParam, KeySize, keyLen)
	}

	return nil
}
