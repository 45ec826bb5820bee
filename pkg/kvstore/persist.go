package kvstore

import "fmt"

// persistAllServiceData recomputes the five fixed CRCs and writes every
// service structure to disk in the order spec.md §4.8 requires, then
// flushes the underlying file.
func (s *Store) persistAllServiceData() error {
	sbCRC := crc32Of(s.sb.encode())

	s.crcBlk.PrimarySuperblockCRC = sbCRC
	s.crcBlk.BackupSuperblockCRC = sbCRC
	s.crcBlk.DataBitmapCRC = crc32Of(s.dataBitmap)
	s.crcBlk.RewriteAreaCRC = crc32Of(encodeRewriteCounters(s.rewriteCounters))
	s.crcBlk.MetadataBitmapCRC = crc32Of(s.metaBitmap)

	sbBytes := encodeSuperblockWithSelfCRC(s.sb)

	err := s.writeRegion(0, sbBytes)
	if err != nil {
		return fmt.Errorf("persist primary superblock: %w", err)
	}

	err = s.writeRegion(s.sb.backupOffset(uint64(s.geom.StorageSize)), sbBytes)
	if err != nil {
		return fmt.Errorf("persist backup superblock: %w", err)
	}

	err = s.writeRegion(s.sb.DataBitmapOff, s.dataBitmap)
	if err != nil {
		return fmt.Errorf("persist data bitmap: %w", err)
	}

	err = s.writeRegion(s.sb.MetaBitmapOff, s.metaBitmap)
	if err != nil {
		return fmt.Errorf("persist metadata bitmap: %w", err)
	}

	err = s.writeRegion(s.sb.RewriteOff, encodeRewriteCounters(s.rewriteCounters))
	if err != nil {
		return fmt.Errorf("persist rewrite counters: %w", err)
	}

	err = s.writeRegion(s.sb.CRCBlockOff, s.crcBlk.encode())
	if err != nil {
		return fmt.Errorf("persist crc block: %w", err)
	}

	err = s.dev.Flush()
	if err != nil {
		return fmt.Errorf("flush device: %w", err)
	}

	return nil
}

// updateEntryCRC reads the metadata slot at slotIndex and its aligned value,
// recomputes the combined CRC, and stores it into crcBlk.EntryCRC[slotIndex]
// in RAM (spec.md §4.8). Callers must persist service data afterward for the
// update to survive a restart.
func (s *Store) updateEntryCRC(slotIndex uint64) error {
	slotOff := s.sb.MetadataOff + slotIndex*metadataSlotSize

	slotBuf, err := s.readRegion(slotOff, metadataSlotSize)
	if err != nil {
		return fmt.Errorf("%w: update entry crc: read slot: %w", errReadFailed, err)
	}

	meta := decodeMetadataSlot(slotBuf)

	alignedSize := alignUp(meta.ValueSize, uint64(s.geom.WordSize))

	valueBuf, err := s.readRegion(meta.ValueOffset, alignedSize)
	if err != nil {
		return fmt.Errorf("%w: update entry crc: read value: %w", errReadFailed, err)
	}

	combined := append(append([]byte{}, slotBuf...), valueBuf...)
	s.crcBlk.EntryCRC[slotIndex] = crc32Of(combined)

	return nil
}
