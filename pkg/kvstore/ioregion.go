package kvstore

import "fmt"

// I/O layer (spec.md §4.2): word-aligned region read/write over the
// simulated device, page-granular region clear (the only way to reset a
// sub-range to 0xFF on an erase-only medium), and an emptiness probe.

func (s *Store) pageAndWord(off uint64) (page, word int) {
	pageSize := uint64(s.geom.PageSize)
	wordSize := uint64(s.geom.WordSize)

	page = int(off / pageSize)
	word = int((off % pageSize) / wordSize)

	return page, word
}

// readRegion reads size bytes starting at off. Both must be word-aligned.
func (s *Store) readRegion(off, size uint64) ([]byte, error) {
	wordSize := uint64(s.geom.WordSize)
	if off%wordSize != 0 || size%wordSize != 0 {
		return nil, fmt.Errorf("%w: region [%d,%d) not word-aligned", errInvalidParam, off, off+size)
	}

	buf := make([]byte, size)

	for o := uint64(0); o < size; o += wordSize {
		page, word := s.pageAndWord(off + o)

		err := s.dev.ReadWord(page, word, buf[o:o+wordSize])
		if err != nil {
			return nil, fmt.Errorf("%w: read region at %d: %w", errReadFailed, off+o, err)
		}
	}

	return buf, nil
}

// writeRegion writes src starting at off. Both must be word-aligned.
func (s *Store) writeRegion(off uint64, src []byte) error {
	wordSize := uint64(s.geom.WordSize)
	if off%wordSize != 0 || uint64(len(src))%wordSize != 0 {
		return fmt.Errorf("%w: region [%d,%d) not word-aligned", errInvalidParam, off, off+uint64(len(src)))
	}

	for o := uint64(0); o < uint64(len(src)); o += wordSize {
		page, word := s.pageAndWord(off + o)

		err := s.dev.WriteWord(page, word, src[o:o+wordSize])
		if err != nil {
			return fmt.Errorf("%w: write region at %d: %w", errWriteFailed, off+o, err)
		}
	}

	return nil
}

// clearRegion sets [off, off+size) to 0xFF by, for every page intersecting
// the range: reading the whole page, overwriting the intersection with
// 0xFF, erasing the page, then writing the patched buffer back.
func (s *Store) clearRegion(off, size uint64) error {
	if size == 0 {
		return nil
	}

	pageSize := uint64(s.geom.PageSize)
	startPage := off / pageSize
	endPage := (off + size - 1) / pageSize

	for page := startPage; page <= endPage; page++ {
		pageOff := page * pageSize

		buf, err := s.readRegion(pageOff, pageSize)
		if err != nil {
			return err
		}

		// Overwrite the intersection of [off,off+size) with this page.
		rangeStart := off
		if pageOff > rangeStart {
			rangeStart = pageOff
		}

		rangeEnd := off + size
		if pageOff+pageSize < rangeEnd {
			rangeEnd = pageOff + pageSize
		}

		for i := rangeStart; i < rangeEnd; i++ {
			buf[i-pageOff] = 0xFF
		}

		err = s.dev.ErasePage(int(page))
		if err != nil {
			return fmt.Errorf("%w: clear region erase page %d: %w", errEraseFailed, page, err)
		}

		err = s.writeRegion(pageOff, buf)
		if err != nil {
			return err
		}
	}

	return nil
}

// verifyAndPrepareRegion checks every page spanning [offset, offset+size)
// in the user-data area for words the data bitmap claims are free but that
// are not actually 0xFF on disk — garbage a crash mid-Put or an interrupted
// GC pass left behind (spec.md §4.6 "ensures that every word the bitmap
// claims to be free ... is actually 0xFF; if not, do a page-granular clear
// preserving words whose bits are set", grounded on
// kvs_verify_and_prepare_region). offset must fall within the user-data
// area; size may be 0.
func (s *Store) verifyAndPrepareRegion(offset, size uint64) error {
	if size == 0 {
		return nil
	}

	wordSize := uint64(s.geom.WordSize)
	pageSize := uint64(s.geom.PageSize)
	areaStart := s.sb.UserDataOff
	areaEnd := areaStart + s.sb.UserDataSize

	relStart := offset - areaStart
	relEnd := relStart + size
	firstPage := relStart / pageSize
	lastPage := (relEnd - 1) / pageSize

	for p := firstPage; p <= lastPage; p++ {
		pageStart := areaStart + p*pageSize

		discrepancy := false

		for w := uint64(0); w < pageSize; w += wordSize {
			wordOff := pageStart + w
			if wordOff >= areaEnd {
				continue
			}

			wordIndex := (wordOff - areaStart) / wordSize
			if testBit(s.dataBitmap, wordIndex) {
				continue
			}

			empty, err := s.isRegionEmpty(wordOff, wordSize)
			if err != nil {
				return err
			}

			if !empty {
				discrepancy = true

				break
			}
		}

		if !discrepancy {
			continue
		}

		s.logf("put: garbage found on logical page %d, repairing in place before write", p)

		buf, err := s.readRegion(pageStart, pageSize)
		if err != nil {
			return err
		}

		for w := uint64(0); w < pageSize; w += wordSize {
			wordOff := pageStart + w
			if wordOff >= areaEnd {
				continue
			}

			wordIndex := (wordOff - areaStart) / wordSize
			if testBit(s.dataBitmap, wordIndex) {
				continue
			}

			for i := range wordSize {
				buf[w+i] = 0xFF
			}
		}

		err = s.dev.ErasePage(int(pageStart / pageSize))
		if err != nil {
			return fmt.Errorf("%w: verify_and_prepare_region erase page: %w", errEraseFailed, err)
		}

		err = s.writeRegion(pageStart, buf)
		if err != nil {
			return err
		}
	}

	return nil
}

// isRegionEmpty reports whether every byte in [off, off+size) is 0xFF.
func (s *Store) isRegionEmpty(off, size uint64) (bool, error) {
	buf, err := s.readRegion(off, size)
	if err != nil {
		return false, err
	}

	for _, b := range buf {
		if b != 0xFF {
			return false, nil
		}
	}

	return true, nil
}
