package kvstore

import (
	"fmt"

	"github.com/flashkv/flashkv/pkg/device"
)

// Superblock self-CRC occupies the last 4 bytes of its 256-byte region.
// Each copy validates independently against its own bytes, breaking the
// cyclic dependency spec.md §9 calls out ("CRC-block validity depends on
// superblock"): the superblock must be trustworthy before its own stored
// offsets can be used to even locate the CRC block.
const sbOffSelfCRC = superblockSize - 4

func encodeSuperblockWithSelfCRC(sb superblock) []byte {
	buf := sb.encode()
	crc := crc32Of(buf[:sbOffSelfCRC])
	buf[sbOffSelfCRC] = byte(crc)
	buf[sbOffSelfCRC+1] = byte(crc >> 8)
	buf[sbOffSelfCRC+2] = byte(crc >> 16)
	buf[sbOffSelfCRC+3] = byte(crc >> 24)

	return buf
}

func superblockSelfCRCValid(buf []byte) bool {
	stored := uint32(buf[sbOffSelfCRC]) | uint32(buf[sbOffSelfCRC+1])<<8 |
		uint32(buf[sbOffSelfCRC+2])<<16 | uint32(buf[sbOffSelfCRC+3])<<24

	return crc32Of(buf[:sbOffSelfCRC]) == stored
}

// initNew formats a fresh device and writes an empty store's service data
// (spec.md §4.9 init_new).
func (s *Store) initNew(userSize uint64) error {
	dev, err := device.Create(s.dataDir)
	if err != nil {
		return fmt.Errorf("%w: create device: %w", errFileOpenFailed, err)
	}

	s.dev = dev

	err = s.dev.Format()
	if err != nil {
		return fmt.Errorf("format device: %w", err)
	}

	l, err := computeLayout(s.geom, userSize)
	if err != nil {
		return fmt.Errorf("compute layout: %w", err)
	}

	s.sb = superblockFromLayout(l)
	s.dataBitmap = make([]byte, s.sb.DataBitmapSize)
	s.metaBitmap = make([]byte, s.sb.MetaBitmapSize)
	s.rewriteCounters = make([]uint32, s.sb.RewriteSize/4)
	s.crcBlk = newCRCBlock(s.sb.MaxKeyCount)
	s.index = nil

	return s.persistAllServiceData()
}

// loadExisting opens an existing device file and reconstructs all RAM-side
// state, following the repair order of spec.md §9: superblock → CRC block →
// metadata bitmap → key index (range check) → entry-CRC prune → data
// bitmap → rewrite counters.
func (s *Store) loadExisting() error {
	dev, err := device.Open(s.dataDir)
	if err != nil {
		return fmt.Errorf("%w: open device: %w", errFileOpenFailed, err)
	}

	s.dev = dev

	primaryBuf, err := s.readRegion(0, superblockSize)
	if err != nil {
		return fmt.Errorf("read primary superblock: %w", err)
	}

	backupOff := uint64(s.geom.StorageSize) - superblockSize

	backupBuf, err := s.readRegion(backupOff, superblockSize)
	if err != nil {
		return fmt.Errorf("read backup superblock: %w", err)
	}

	primaryValid := superblockSelfCRCValid(primaryBuf)
	backupValid := superblockSelfCRCValid(backupBuf)

	switch {
	case primaryValid:
		s.sb = decodeSuperblock(primaryBuf)
	case backupValid:
		s.logf("load_existing: primary superblock corrupt, restoring from backup")

		s.sb = decodeSuperblock(backupBuf)

		err = s.writeRegion(0, backupBuf)
		if err != nil {
			return fmt.Errorf("restore primary superblock from backup: %w", err)
		}
	default:
		return fmt.Errorf("%w", errCorruptSuperblock)
	}

	if s.sb.Magic != Magic {
		return fmt.Errorf("%w: bad magic %d", errCorruptSuperblock, s.sb.Magic)
	}

	crcBuf, err := s.readRegion(s.sb.CRCBlockOff, s.sb.CRCBlockSize)
	if err != nil {
		return fmt.Errorf("read crc block: %w", err)
	}

	s.crcBlk = decodeCRCBlock(crcBuf, s.sb.MaxKeyCount)

	s.dataBitmap, err = s.readRegion(s.sb.DataBitmapOff, s.sb.DataBitmapSize)
	if err != nil {
		return fmt.Errorf("read data bitmap: %w", err)
	}

	s.metaBitmap, err = s.readRegion(s.sb.MetaBitmapOff, s.sb.MetaBitmapSize)
	if err != nil {
		return fmt.Errorf("read metadata bitmap: %w", err)
	}

	rewriteBuf, err := s.readRegion(s.sb.RewriteOff, s.sb.RewriteSize)
	if err != nil {
		return fmt.Errorf("read rewrite counters: %w", err)
	}

	s.rewriteCounters = decodeRewriteCounters(rewriteBuf, s.sb.RewriteSize/4)

	if !metadataBitmapValid(s.metaBitmap, s.crcBlk.MetadataBitmapCRC) {
		s.logf("load_existing: metadata bitmap CRC mismatch, rebuilding by probing slots")

		err = s.rebuildMetadataBitmapByProbing()
		if err != nil {
			return fmt.Errorf("rebuild metadata bitmap: %w", err)
		}
	}

	if !pageRewriteValid(rewriteBuf, s.crcBlk.RewriteAreaCRC) {
		s.logf("load_existing: rewrite counter CRC mismatch, resetting counters")

		for i := range s.rewriteCounters {
			s.rewriteCounters[i] = 0
		}
	}

	err = s.buildKeyIndex()
	if err != nil {
		return fmt.Errorf("build key index: %w", err)
	}

	if !bitmapValid(s.dataBitmap, s.crcBlk.DataBitmapCRC) {
		s.logf("load_existing: data bitmap CRC mismatch, rebuilding from key index")

		err = s.rebuildDataBitmapFromIndex()
		if err != nil {
			return fmt.Errorf("rebuild data bitmap: %w", err)
		}
	}

	if !pageRewriteValid(rewriteBuf, s.crcBlk.RewriteAreaCRC) {
		s.logf("load_existing: rewrite counter CRC mismatch, resetting counters")

		for i := range s.rewriteCounters {
			s.rewriteCounters[i] = 0
		}
	}

	return nil
}

// rebuildMetadataBitmapByProbing sets bit i iff slot i's bytes are not all
// 0xFF (spec.md §4.9 step 5).
func (s *Store) rebuildMetadataBitmapByProbing() error {
	for i := uint64(0); i < s.sb.MaxKeyCount; i++ {
		slotOff := s.sb.MetadataOff + i*metadataSlotSize

		empty, err := s.isRegionEmpty(slotOff, metadataSlotSize)
		if err != nil {
			return err
		}

		if empty {
			clearBit(s.metaBitmap, i)
		} else {
			setBit(s.metaBitmap, i)
		}
	}

	return nil
}

// buildKeyIndex reconstructs the in-memory key index from disk
// (spec.md §4.9 step 6), then prunes any slot whose entry_crc does not
// match its current on-disk bytes (the crash-atomicity check referenced by
// spec.md §5: a value whose flag never reached VALID fails this check and
// is discarded).
func (s *Store) buildKeyIndex() error {
	s.index = s.index[:0]

	for i := uint64(0); i < s.sb.MaxKeyCount; i++ {
		if !testBit(s.metaBitmap, i) {
			continue
		}

		slotOff := s.sb.MetadataOff + i*metadataSlotSize

		slotBuf, err := s.readRegion(slotOff, metadataSlotSize)
		if err != nil {
			return err
		}

		meta := decodeMetadataSlot(slotBuf)

		ok, err := s.isMetadataEntryValid(meta)
		if err != nil {
			return err
		}

		if !ok {
			continue
		}

		s.index = append(s.index, indexEntry{
			Key:            meta.Key,
			MetadataOffset: slotOff,
			SlotIndex:      i,
			Flags:          flagValid,
		})
	}

	s.indexSort()

	pruned := s.index[:0]

	for i := range s.index {
		ok, err := s.isKeyValid(i)
		if err != nil {
			return err
		}

		if ok {
			pruned = append(pruned, s.index[i])
		} else {
			s.logf("build_key_index: slot %d failed entry_crc, pruning (crash-torn write)", s.index[i].SlotIndex)
		}
	}

	s.index = pruned

	return nil
}

// rebuildDataBitmapFromIndex zeroes the data bitmap and sets the bits for
// every VALID key's aligned value range (spec.md §4.9 step 7).
func (s *Store) rebuildDataBitmapFromIndex() error {
	for i := range s.dataBitmap {
		s.dataBitmap[i] = 0
	}

	for _, e := range s.index {
		slotBuf, err := s.readRegion(s.sb.MetadataOff+e.SlotIndex*metadataSlotSize, metadataSlotSize)
		if err != nil {
			return err
		}

		meta := decodeMetadataSlot(slotBuf)
		alignedSize := alignUp(meta.ValueSize, uint64(s.geom.WordSize))

		err = s.bitmapSetRegion(meta.ValueOffset, alignedSize)
		if err != nil {
			return err
		}
	}

	return nil
}
