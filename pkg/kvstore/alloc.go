package kvstore

// Wear-aware carousel allocator (spec.md §4.5). Both allocators resume
// scanning where the previous call left off, so consecutive allocations
// spread writes across the area instead of always landing at the start.

// findRun scans bitmap bits [start, end) for the first contiguous run of at
// least n zero bits, returning its starting bit index, or ok=false.
func findRun(bitmap []byte, start, end, n uint64) (runStart uint64, ok bool) {
	if n == 0 {
		return start, true
	}

	run := uint64(0)

	for i := start; i < end; i++ {
		if testBit(bitmap, i) {
			run = 0

			continue
		}

		run++
		if run == n {
			return i - n + 1, true
		}
	}

	return 0, false
}

// findFreeDataOffset finds a contiguous run of words_needed = ceil(valueLen
// / word_size) free words in the data bitmap, returning the absolute device
// byte offset of its start. It scans from the carousel cursor to the end of
// the area, then from the start of the area up to the cursor, and returns
// ok=false if neither scan finds such a run; a free run that straddles the
// cursor is not found.
func (s *Store) findFreeDataOffset(valueLen uint64) (offset uint64, ok bool) {
	wordSize := uint64(s.geom.WordSize)
	wordsNeeded := ceilDiv(valueLen, wordSize)

	numWords := s.sb.UserDataSize / wordSize
	if wordsNeeded == 0 || wordsNeeded > numWords {
		return 0, false
	}

	cursor := s.sb.LastDataWordChecked % numWords

	runStart, found := findRun(s.dataBitmap, cursor, numWords, wordsNeeded)
	if !found {
		runStart, found = findRun(s.dataBitmap, 0, cursor, wordsNeeded)
		if !found {
			return 0, false
		}
	}

	s.sb.LastDataWordChecked = (runStart + wordsNeeded) % numWords

	return s.sb.UserDataOff + runStart*wordSize, true
}

// findFreeMetadataOffset circularly scans the metadata bitmap starting at
// last_metadata_slot_checked for the first free slot, returning its byte
// offset within the metadata region. Returns ok=false if no slot is free.
func (s *Store) findFreeMetadataOffset() (offset uint64, slotIndex uint64, ok bool) {
	n := s.sb.MaxKeyCount
	if n == 0 {
		return 0, 0, false
	}

	cursor := s.sb.LastMetadataSlotChecked % n

	for i := uint64(0); i < n; i++ {
		idx := (cursor + i) % n
		if !testBit(s.metaBitmap, idx) {
			s.sb.LastMetadataSlotChecked = (idx + 1) % n

			return idx * metadataSlotSize, idx, true
		}
	}

	return 0, 0, false
}
