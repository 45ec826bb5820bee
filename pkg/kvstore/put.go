package kvstore

import (
	"errors"
	"fmt"
)

// gcRetryBudget bounds how many GC passes Put will run before giving up on
// a single allocation attempt. Each successful pass reclaims exactly one
// page, so the area's page count is a safe, finite ceiling.
func (s *Store) gcRetryBudget() int {
	pageSize := uint64(s.geom.PageSize)
	dataPages := ceilDiv(s.sb.UserDataSize, pageSize)
	metaPages := ceilDiv(s.sb.MetadataSize, pageSize)

	return int(dataPages+metaPages) + 2
}

// allocateWithGC finds a free data run of alignedSize bytes and a free
// metadata slot, running GC (data first, then metadata) between attempts
// when either allocator is exhausted (spec.md §4.6, grounded on kvs_put's
// "find metadata slot, GC and retry; find data run, GC and retry" shape).
func (s *Store) allocateWithGC(alignedSize uint64) (dataOff, metaOff, slotIndex uint64, ok bool) {
	for attempt := 0; attempt < s.gcRetryBudget(); attempt++ {
		metaOff, slotIndex, metaOK := s.findFreeMetadataOffset()
		dataOff, dataOK := uint64(0), false

		if metaOK {
			dataOff, dataOK = s.findFreeDataOffset(alignedSize)
		}

		if metaOK && dataOK {
			return dataOff, metaOff, slotIndex, true
		}

		s.logf("put: allocation attempt %d short of space (metadata=%v, data=%v), running gc", attempt, metaOK, dataOK)

		gcErr := s.RunGC(CleanData)
		metaGCErr := s.RunGC(CleanMetadata)

		if gcErr != nil && metaGCErr != nil {
			if !metaOK && errors.Is(metaGCErr, errNoSpace) {
				// Every metadata slot is occupied by a still-valid entry and
				// metadata GC found no garbage page to reclaim: the key
				// index itself is full, not merely short on data space.
				s.logf("put: %v", errKeyIndexFull)
			}

			s.logf("put: gc made no progress, giving up")

			return 0, 0, 0, false
		}
	}

	return 0, 0, 0, false
}

// Put inserts key/value. It returns [StatusKeyAlreadyExists] if the key is
// already present — callers that want overwrite semantics should use
// [Store.Update] instead (spec.md §4.6, §9).
func (s *Store) Put(key, value []byte) Status {
	if !s.initialized {
		return StatusNotInitialized
	}

	if err := validateKeyLen(len(key)); err != nil {
		s.logf("put: %v", err)

		return StatusInvalidParam
	}

	if len(value) == 0 || uint64(len(value)) > s.sb.UserDataSize {
		return StatusInvalidParam
	}

	if _, found := s.indexFind(key); found {
		return StatusKeyAlreadyExists
	}

	return s.insertNewEntry(key, value)
}

// insertNewEntry performs the allocate/write/commit sequence shared by Put
// and Update's re-insertion step.
func (s *Store) insertNewEntry(key, value []byte) Status {
	alignedSize := alignUp(uint64(len(value)), uint64(s.geom.WordSize))

	dataOff, metaOff, slotIndex, ok := s.allocateWithGC(alignedSize)
	if !ok {
		return StatusNoSpace
	}

	err := s.verifyAndPrepareRegion(dataOff, alignedSize)
	if err != nil {
		s.logf("put: verify_and_prepare_region: %v", err)

		return StatusStorageFailure
	}

	padded := make([]byte, alignedSize)
	copy(padded, value)

	for i := len(value); i < len(padded); i++ {
		padded[i] = 0xFF
	}

	err = s.writeRegion(dataOff, padded)
	if err != nil {
		s.logf("put: write value: %v", err)

		return StatusStorageFailure
	}

	var meta metadataSlot

	copy(meta.Key[:], key)
	meta.ValueOffset = dataOff
	meta.ValueSize = uint64(len(value))

	absSlotOff := s.sb.MetadataOff + metaOff

	err = s.writeRegion(absSlotOff, encodeMetadataSlot(meta))
	if err != nil {
		s.logf("put: write metadata slot: %v", err)

		return StatusStorageFailure
	}

	err = s.bitmapSetRegion(dataOff, alignedSize)
	if err != nil {
		s.logf("put: %v", err)

		return StatusStorageFailure
	}

	s.bitmapSetMetadataSlot(slotIndex)
	s.rewriteCountIncrementRegion(absSlotOff, metadataSlotSize)
	s.rewriteCountIncrementRegion(dataOff, alignedSize)

	err = s.updateEntryCRC(slotIndex)
	if err != nil {
		s.logf("put: %v", err)

		return StatusStorageFailure
	}

	s.indexInsert(indexEntry{
		Key:            meta.Key,
		MetadataOffset: absSlotOff,
		SlotIndex:      slotIndex,
		Flags:          flagValid,
	})

	err = s.persistAllServiceData()
	if err != nil {
		s.logf("put: %v", fmt.Errorf("persist: %w", err))

		return StatusStorageFailure
	}

	return StatusSuccess
}
