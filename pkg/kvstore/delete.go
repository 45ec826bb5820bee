package kvstore

// Delete removes key. Returns [StatusKeyNotFound] if it is absent or
// already invalid (spec.md §4.6, grounded on kvs_delete).
func (s *Store) Delete(key []byte) Status {
	if !s.initialized {
		return StatusNotInitialized
	}

	if err := validateKeyLen(len(key)); err != nil {
		s.logf("delete: %v", err)

		return StatusInvalidParam
	}

	pos, found := s.indexFind(key)
	if !found {
		return StatusKeyNotFound
	}

	ok, err := s.isKeyValid(pos)
	if err != nil {
		s.logf("delete: %v", err)

		return StatusStorageFailure
	}

	if !ok {
		return StatusKeyNotFound
	}

	err = s.deleteAt(pos)
	if err != nil {
		s.logf("delete: %v", err)

		return StatusStorageFailure
	}

	return StatusSuccess
}

// deleteAt removes the index entry at pos, physically clearing the aligned
// value bytes and the metadata slot back to 0xFF (spec.md §4.6 "Physically
// clear_region the aligned value bytes and the metadata slot", grounded on
// kvs_delete's two kvs_clear_region calls) before clearing the bitmaps that
// mark them occupied, invalidating the slot's entry_crc, and dropping the
// RAM index entry.
func (s *Store) deleteAt(pos int) error {
	entry := s.index[pos]

	slotOff := s.sb.MetadataOff + entry.SlotIndex*metadataSlotSize

	slotBuf, err := s.readRegion(slotOff, metadataSlotSize)
	if err != nil {
		return err
	}

	meta := decodeMetadataSlot(slotBuf)
	alignedSize := alignUp(meta.ValueSize, uint64(s.geom.WordSize))

	err = s.clearRegion(meta.ValueOffset, alignedSize)
	if err != nil {
		return err
	}

	err = s.clearRegion(slotOff, metadataSlotSize)
	if err != nil {
		return err
	}

	err = s.bitmapClearRegion(meta.ValueOffset, alignedSize)
	if err != nil {
		return err
	}

	s.bitmapClearMetadataSlot(entry.SlotIndex)
	s.crcBlk.EntryCRC[entry.SlotIndex] = 0
	s.rewriteCountIncrementRegion(slotOff, metadataSlotSize)
	s.rewriteCountIncrementRegion(meta.ValueOffset, alignedSize)

	s.indexRemoveAt(pos)

	return s.persistAllServiceData()
}
