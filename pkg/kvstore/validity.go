package kvstore

// Validity predicates for service structures and per-key entries
// (spec.md §4.3).

// isMetadataEntryValid range-checks a decoded metadata slot and requires
// that its aligned value region not be fully erased (0xFF).
func (s *Store) isMetadataEntryValid(m metadataSlot) (bool, error) {
	if m.ValueOffset < s.sb.UserDataOff || m.ValueOffset >= s.sb.MetadataOff {
		return false, nil
	}

	if m.ValueSize == 0 || m.ValueSize > s.sb.UserDataSize {
		return false, nil
	}

	alignedSize := alignUp(m.ValueSize, uint64(s.geom.WordSize))
	if m.ValueOffset+alignedSize > s.sb.MetadataOff {
		return false, nil
	}

	empty, err := s.isRegionEmpty(m.ValueOffset, alignedSize)
	if err != nil {
		return false, err
	}

	return !empty, nil
}

// isKeyValid re-reads the metadata slot and aligned value for index entry
// pos and compares their combined CRC against crcBlk.EntryCRC[slot]. It
// fails closed if the entry's in-RAM flag is not flagValid.
func (s *Store) isKeyValid(pos int) (bool, error) {
	entry := s.index[pos]
	if entry.Flags&flagValid == 0 {
		return false, nil
	}

	slotOff := s.sb.MetadataOff + entry.SlotIndex*metadataSlotSize

	slotBuf, err := s.readRegion(slotOff, metadataSlotSize)
	if err != nil {
		return false, err
	}

	meta := decodeMetadataSlot(slotBuf)

	alignedSize := alignUp(meta.ValueSize, uint64(s.geom.WordSize))

	valueBuf, err := s.readRegion(meta.ValueOffset, alignedSize)
	if err != nil {
		return false, err
	}

	combined := append(append([]byte{}, slotBuf...), valueBuf...)

	return crc32Of(combined) == s.crcBlk.EntryCRC[entry.SlotIndex], nil
}
