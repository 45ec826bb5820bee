// Package kvstore implements an embedded key-value store over a simulated
// flash block device ([github.com/flashkv/flashkv/pkg/device]).
//
// It persists fixed-size keys and variable-size values with crash safety: a
// superblock pair with backup failover, two occupancy bitmaps, a per-entry
// integrity checksum, a wear-aware allocator, a compacting garbage
// collector, and an initialization/recovery path that rebuilds an in-memory
// key index from disk.
//
// # Basic usage
//
//	s := kvstore.New()
//	if status := s.Init(dataDir, kvstore.Options{UserDataSize: 512 * 1024}); status != kvstore.StatusSuccess {
//	    // handle
//	}
//	defer s.Deinit()
//
//	var key [kvstore.KeySize]byte
//	copy(key[:], "k1")
//
//	status := s.Put(key[:], []byte("hello"))
//
// slotcache's locking/mmap concurrency model does not apply here: per
// spec.md §5 this store is single-threaded and cooperative, with one
// process-wide store value owned by whoever calls [Store.Init].
package kvstore
