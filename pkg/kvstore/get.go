package kvstore

// Get looks up key and copies its value into dst if dst is large enough.
// Returns the value's actual length and [StatusBufferTooSmall] if dst is
// too small, mirroring spec.md §4.6's buffer-probing contract (a caller
// probes the required size via a short/nil dst, then calls again).
func (s *Store) Get(key []byte, dst []byte) (n int, status Status) {
	if !s.initialized {
		return 0, StatusNotInitialized
	}

	if err := validateKeyLen(len(key)); err != nil {
		s.logf("get: %v", err)

		return 0, StatusInvalidParam
	}

	pos, found := s.indexFind(key)
	if !found {
		return 0, StatusKeyNotFound
	}

	ok, err := s.isKeyValid(pos)
	if err != nil {
		s.logf("get: %v", err)

		return 0, StatusStorageFailure
	}

	if !ok {
		return 0, StatusKeyNotFound
	}

	entry := s.index[pos]

	slotBuf, err := s.readRegion(s.sb.MetadataOff+entry.SlotIndex*metadataSlotSize, metadataSlotSize)
	if err != nil {
		s.logf("get: %v", err)

		return 0, StatusStorageFailure
	}

	meta := decodeMetadataSlot(slotBuf)

	if uint64(len(dst)) < meta.ValueSize {
		return int(meta.ValueSize), StatusBufferTooSmall
	}

	alignedSize := alignUp(meta.ValueSize, uint64(s.geom.WordSize))

	valueBuf, err := s.readRegion(meta.ValueOffset, alignedSize)
	if err != nil {
		s.logf("get: %v", err)

		return 0, StatusStorageFailure
	}

	copy(dst, valueBuf[:meta.ValueSize])

	return int(meta.ValueSize), StatusSuccess
}

// Exists reports whether key is present and currently valid.
func (s *Store) Exists(key []byte) (bool, Status) {
	if !s.initialized {
		return false, StatusNotInitialized
	}

	if err := validateKeyLen(len(key)); err != nil {
		s.logf("exists: %v", err)

		return false, StatusInvalidParam
	}

	pos, found := s.indexFind(key)
	if !found {
		return false, StatusSuccess
	}

	ok, err := s.isKeyValid(pos)
	if err != nil {
		s.logf("exists: %v", err)

		return false, StatusStorageFailure
	}

	return ok, StatusSuccess
}
