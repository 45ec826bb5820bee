package kvstore

// Update replaces the value stored under key. Returns [StatusKeyNotFound]
// if key is absent. Implemented as delete-then-insert (spec.md §4.6;
// grounded on kvs_put's existing-key overwrite path, which this store
// exposes as its own explicit operation rather than folding it into Put).
func (s *Store) Update(key, value []byte) Status {
	if !s.initialized {
		return StatusNotInitialized
	}

	if err := validateKeyLen(len(key)); err != nil {
		s.logf("update: %v", err)

		return StatusInvalidParam
	}

	if len(value) == 0 || uint64(len(value)) > s.sb.UserDataSize {
		return StatusInvalidParam
	}

	pos, found := s.indexFind(key)
	if !found {
		return StatusKeyNotFound
	}

	ok, err := s.isKeyValid(pos)
	if err != nil {
		s.logf("update: %v", err)

		return StatusStorageFailure
	}

	if !ok {
		return StatusKeyNotFound
	}

	err = s.deleteAt(pos)
	if err != nil {
		s.logf("update: delete old value: %v", err)

		return StatusStorageFailure
	}

	return s.insertNewEntry(key, value)
}
