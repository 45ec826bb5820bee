package kvstore

import "fmt"

// Garbage collection (spec.md §4.7). Both the user-data area and the
// metadata area can accumulate "used but not valid" words: bits an
// allocator marked occupied for an operation that never committed (a
// crash mid-Put, or garbage left behind by an earlier GC pass that was
// itself interrupted). GC finds the page carrying the most such garbage,
// evacuates whatever live data or metadata still shares that page, erases
// it, and fully rebuilds the service structures from the now-consistent
// disk image.
//
// Grounded on original_source/src/key_value_store/kvs_metadata.c's
// kvs_find_victim_page/kvs_gc.

// findVictimPage scans the area selected by mode for the page with the
// most "used-in-reality but not live" units, resuming from the area's
// carousel cursor so repeated GC passes spread wear. It returns the page's
// local index (relative to the area's first page), the number of live
// bytes that page still holds, and ok=false if no garbage exists anywhere.
func (s *Store) findVictimPage(mode GCMode, liveBitmap []byte) (pageLocal int, liveBytes uint64, ok bool) {
	var (
		realBitmap   []byte
		unitSize     uint64
		unitsPerPage uint64
		pageCount    uint64
		cursor       uint64
		totalUnits   uint64
	)

	switch mode {
	case CleanData:
		realBitmap = s.dataBitmap
		unitSize = uint64(s.geom.WordSize)
		unitsPerPage = uint64(s.geom.WordsPerPage)
		pageCount = ceilDiv(s.sb.UserDataSize, uint64(s.geom.PageSize))
		cursor = s.sb.LastDataWordChecked
		totalUnits = s.sb.UserDataSize / unitSize
	case CleanMetadata:
		realBitmap = s.metaBitmap
		unitSize = metadataSlotSize
		unitsPerPage = uint64(s.geom.PageSize) / metadataSlotSize
		pageCount = ceilDiv(s.sb.MetadataSize, uint64(s.geom.PageSize))
		cursor = s.sb.LastMetadataSlotChecked
		totalUnits = s.sb.MaxKeyCount
	}

	if pageCount == 0 || unitsPerPage == 0 || totalUnits == 0 {
		return 0, 0, false
	}

	startPage := cursor / unitsPerPage
	if startPage >= pageCount {
		startPage = 0
	}

	maxGarbage := uint64(0)
	victim := -1
	victimLiveUnits := uint64(0)

	for i := uint64(0); i < pageCount; i++ {
		page := (startPage + i) % pageCount

		garbage := uint64(0)
		live := uint64(0)
		firstUnit := page * unitsPerPage

		for w := uint64(0); w < unitsPerPage; w++ {
			unit := firstUnit + w
			if unit >= totalUnits {
				break
			}

			usedReal := testBit(realBitmap, unit)
			usedLive := testBit(liveBitmap, unit)

			switch {
			case usedReal && !usedLive:
				garbage++
			case usedLive:
				live++
			}
		}

		if garbage > maxGarbage {
			maxGarbage = garbage
			victim = int(page)
			victimLiveUnits = live

			if mode == CleanData {
				s.sb.LastDataWordChecked = (page + 1) * unitsPerPage % totalUnits
			} else {
				s.sb.LastMetadataSlotChecked = (page + 1) * unitsPerPage % totalUnits
			}
		}
	}

	if victim < 0 {
		return 0, 0, false
	}

	return victim, victimLiveUnits * unitSize, true
}

// liveDataBitmap rebuilds, without mutating s.dataBitmap, a bitmap marking
// only the words backing currently VALID keys.
func (s *Store) liveDataBitmap() ([]byte, error) {
	live := make([]byte, len(s.dataBitmap))

	for _, e := range s.index {
		if e.Flags&flagValid == 0 {
			continue
		}

		slotBuf, err := s.readRegion(s.sb.MetadataOff+e.SlotIndex*metadataSlotSize, metadataSlotSize)
		if err != nil {
			return nil, err
		}

		meta := decodeMetadataSlot(slotBuf)
		alignedSize := alignUp(meta.ValueSize, uint64(s.geom.WordSize))

		firstWord := (meta.ValueOffset - s.sb.UserDataOff) / uint64(s.geom.WordSize)
		numWords := alignedSize / uint64(s.geom.WordSize)

		for w := uint64(0); w < numWords; w++ {
			setBit(live, firstWord+w)
		}
	}

	return live, nil
}

// liveMetadataBitmap marks only the slots currently referenced by a VALID
// key-index entry.
func (s *Store) liveMetadataBitmap() []byte {
	live := make([]byte, len(s.metaBitmap))

	for _, e := range s.index {
		if e.Flags&flagValid == 0 {
			continue
		}

		setBit(live, e.SlotIndex)
	}

	return live
}

// RunGC runs one garbage-collection pass in the given mode, reclaiming at
// most one victim page. It returns errNoSpace if no garbage page exists
// (the caller should treat that as "GC made no progress").
func (s *Store) RunGC(mode GCMode) error {
	var err error

	if mode == CleanData {
		err = s.gcData()
	} else {
		err = s.gcMetadata()
	}

	if err != nil {
		return err
	}

	s.gcRuns++

	return nil
}

func (s *Store) gcData() error {
	liveBitmap, err := s.liveDataBitmap()
	if err != nil {
		return err
	}

	pageLocal, liveBytes, ok := s.findVictimPage(CleanData, liveBitmap)
	if !ok {
		s.logf("gc(data): no garbage page found")

		return errNoSpace
	}

	pageSize := uint64(s.geom.PageSize)
	victimStart := s.sb.UserDataOff + uint64(pageLocal)*pageSize
	victimPageGlobal := victimStart / pageSize
	victimPageStartGlobal := victimPageGlobal * pageSize
	victimPageEndGlobal := victimPageStartGlobal + pageSize

	if victimPageEndGlobal > s.sb.MetadataOff {
		for i := uint64(0); i < s.sb.MaxKeyCount; i++ {
			slotOff := s.sb.MetadataOff + i*metadataSlotSize
			if slotOff >= victimPageStartGlobal && slotOff < victimPageEndGlobal && testBit(s.metaBitmap, i) {
				s.logf("gc(data): victim page %d overlaps live metadata, aborting", victimPageGlobal)

				return errNoSpace
			}
		}
	}

	if liveBytes == 0 {
		err = s.clearRegion(victimPageStartGlobal, pageSize)
		if err != nil {
			return err
		}

		err = s.bitmapClearRegion(victimPageStartGlobal, pageSize)
		if err != nil {
			return err
		}

		s.rewriteCountIncrementRegion(victimPageStartGlobal, pageSize)

		return s.finishGC(CleanData)
	}

	newBase, ok := s.findFreeDataOffset(liveBytes)
	if !ok {
		s.logf("gc(data): no room to evacuate %d live bytes", liveBytes)

		return fmt.Errorf("%w: gc evacuation", errNoSpace)
	}

	type movedItem struct {
		slotIndex    uint64
		bufferOffset uint64
		alignedSize  uint64
	}

	var items []movedItem

	evacBuf := make([]byte, 0, liveBytes)

	for _, e := range s.index {
		if e.Flags&flagValid == 0 {
			continue
		}

		slotOff := s.sb.MetadataOff + e.SlotIndex*metadataSlotSize

		slotBuf, err := s.readRegion(slotOff, metadataSlotSize)
		if err != nil {
			return err
		}

		meta := decodeMetadataSlot(slotBuf)
		if meta.ValueOffset < victimPageStartGlobal || meta.ValueOffset >= victimPageEndGlobal {
			continue
		}

		alignedSize := alignUp(meta.ValueSize, uint64(s.geom.WordSize))

		valueBuf, err := s.readRegion(meta.ValueOffset, alignedSize)
		if err != nil {
			return err
		}

		items = append(items, movedItem{slotIndex: e.SlotIndex, bufferOffset: uint64(len(evacBuf)), alignedSize: alignedSize})
		evacBuf = append(evacBuf, valueBuf...)
	}

	err = s.writeRegion(newBase, evacBuf)
	if err != nil {
		return fmt.Errorf("gc(data): write evacuation buffer: %w", err)
	}

	err = s.clearRegion(victimPageStartGlobal, pageSize)
	if err != nil {
		return err
	}

	err = s.bitmapClearRegion(victimPageStartGlobal, pageSize)
	if err != nil {
		return err
	}

	err = s.bitmapSetRegion(newBase, uint64(len(evacBuf)))
	if err != nil {
		return err
	}

	for _, it := range items {
		slotOff := s.sb.MetadataOff + it.slotIndex*metadataSlotSize

		slotBuf, err := s.readRegion(slotOff, metadataSlotSize)
		if err != nil {
			return err
		}

		meta := decodeMetadataSlot(slotBuf)
		meta.ValueOffset = newBase + it.bufferOffset

		err = s.writeRegion(slotOff, encodeMetadataSlot(meta))
		if err != nil {
			return err
		}

		err = s.updateEntryCRC(it.slotIndex)
		if err != nil {
			return err
		}
	}

	s.rewriteCountIncrementRegion(victimPageStartGlobal, pageSize)
	s.rewriteCountIncrementRegion(newBase, uint64(len(evacBuf)))

	return s.finishGC(CleanData)
}

func (s *Store) gcMetadata() error {
	liveBitmap := s.liveMetadataBitmap()

	pageLocal, liveBytes, ok := s.findVictimPage(CleanMetadata, liveBitmap)
	if !ok {
		s.logf("gc(metadata): no garbage page found")

		return errNoSpace
	}

	pageSize := uint64(s.geom.PageSize)
	victimStart := s.sb.MetadataOff + uint64(pageLocal)*pageSize

	if liveBytes == 0 {
		err := s.clearRegion(victimStart, pageSize)
		if err != nil {
			return err
		}

		s.rewriteCountIncrementRegion(victimStart, pageSize)

		return s.finishGC(CleanMetadata)
	}

	type movedSlot struct {
		oldSlotIndex uint64
		buf          []byte
	}

	var moved []movedSlot

	for _, e := range s.index {
		if e.Flags&flagValid == 0 {
			continue
		}

		slotOff := s.sb.MetadataOff + e.SlotIndex*metadataSlotSize
		if slotOff < victimStart || slotOff >= victimStart+pageSize {
			continue
		}

		slotBuf, err := s.readRegion(slotOff, metadataSlotSize)
		if err != nil {
			return err
		}

		moved = append(moved, movedSlot{oldSlotIndex: e.SlotIndex, buf: slotBuf})
	}

	for _, m := range moved {
		newOff, newSlotIndex, ok := s.findFreeMetadataOffset()
		if !ok {
			s.logf("gc(metadata): no free slot to evacuate slot %d", m.oldSlotIndex)

			return fmt.Errorf("%w: gc metadata evacuation", errNoFreeMetadataSpace)
		}

		err := s.writeRegion(s.sb.MetadataOff+newOff, m.buf)
		if err != nil {
			return err
		}

		s.bitmapSetMetadataSlot(newSlotIndex)
		s.crcBlk.EntryCRC[newSlotIndex] = s.crcBlk.EntryCRC[m.oldSlotIndex]
	}

	err := s.clearRegion(victimStart, pageSize)
	if err != nil {
		return err
	}

	s.rewriteCountIncrementRegion(victimStart, pageSize)

	// buildKeyIndex (inside finishGC) re-derives SlotIndex/MetadataOffset for
	// every moved key from the now-consistent disk image and metadata bitmap.
	return s.finishGC(CleanMetadata)
}

// finishGC fully rebuilds the service structures driven by mode from the
// now-consistent disk image, then persists (spec.md §4.7's "full rebuild"
// step, grounded on kvs_gc's closing kvs_metadata_bitmap_create /
// build_key_index / kvs_bitmap_create / kvs_persist_all_service_data
// sequence).
func (s *Store) finishGC(mode GCMode) error {
	if mode == CleanMetadata {
		err := s.rebuildMetadataBitmapByProbing()
		if err != nil {
			return err
		}
	}

	err := s.buildKeyIndex()
	if err != nil {
		return err
	}

	if mode == CleanData {
		err = s.rebuildDataBitmapFromIndex()
		if err != nil {
			return err
		}
	}

	return s.persistAllServiceData()
}
