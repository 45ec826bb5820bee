package kvstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flashkv/flashkv/pkg/kvstore"
)

const testUserDataSize = 256 * 1024

func key(s string) []byte {
	k := make([]byte, kvstore.KeySize)
	copy(k, s)

	return k
}

func openStore(t *testing.T) (*kvstore.Store, string) {
	t.Helper()

	dir := t.TempDir()

	s := kvstore.New()
	require.Equal(t, kvstore.StatusSuccess, s.Init(dir, kvstore.Options{UserDataSize: testUserDataSize}))

	t.Cleanup(func() { s.Deinit() })

	return s, dir
}

func TestPutGetRoundTrip(t *testing.T) {
	s, _ := openStore(t)

	require.Equal(t, kvstore.StatusSuccess, s.Put(key("alpha"), []byte("hello world")))

	dst := make([]byte, 64)

	n, status := s.Get(key("alpha"), dst)
	require.Equal(t, kvstore.StatusSuccess, status)
	require.Equal(t, "hello world", string(dst[:n]))
}

func TestGetBufferTooSmall(t *testing.T) {
	s, _ := openStore(t)

	require.Equal(t, kvstore.StatusSuccess, s.Put(key("alpha"), []byte("hello world")))

	n, status := s.Get(key("alpha"), make([]byte, 3))
	require.Equal(t, kvstore.StatusBufferTooSmall, status)
	require.Equal(t, len("hello world"), n)

	dst := make([]byte, n)
	n, status = s.Get(key("alpha"), dst)
	require.Equal(t, kvstore.StatusSuccess, status)
	require.Equal(t, "hello world", string(dst[:n]))
}

func TestGetNotFound(t *testing.T) {
	s, _ := openStore(t)

	_, status := s.Get(key("missing"), make([]byte, 16))
	require.Equal(t, kvstore.StatusKeyNotFound, status)
}

func TestPutDuplicateKey(t *testing.T) {
	s, _ := openStore(t)

	require.Equal(t, kvstore.StatusSuccess, s.Put(key("alpha"), []byte("one")))
	require.Equal(t, kvstore.StatusKeyAlreadyExists, s.Put(key("alpha"), []byte("two")))
}

func TestPutInvalidParams(t *testing.T) {
	s, _ := openStore(t)

	require.Equal(t, kvstore.StatusInvalidParam, s.Put(key("alpha"), nil))
	require.Equal(t, kvstore.StatusInvalidParam, s.Put([]byte("short"), []byte("v")))
}

func TestExistsReflectsLifecycle(t *testing.T) {
	s, _ := openStore(t)

	present, status := s.Exists(key("alpha"))
	require.Equal(t, kvstore.StatusSuccess, status)
	require.False(t, present)

	require.Equal(t, kvstore.StatusSuccess, s.Put(key("alpha"), []byte("v")))

	present, status = s.Exists(key("alpha"))
	require.Equal(t, kvstore.StatusSuccess, status)
	require.True(t, present)

	require.Equal(t, kvstore.StatusSuccess, s.Delete(key("alpha")))

	present, status = s.Exists(key("alpha"))
	require.Equal(t, kvstore.StatusSuccess, status)
	require.False(t, present)
}

func TestDeleteIsIdempotentAtTheStatusLevel(t *testing.T) {
	s, _ := openStore(t)

	require.Equal(t, kvstore.StatusSuccess, s.Put(key("alpha"), []byte("v")))
	require.Equal(t, kvstore.StatusSuccess, s.Delete(key("alpha")))

	// The key is gone; a second delete reports not-found rather than
	// silently succeeding again.
	require.Equal(t, kvstore.StatusKeyNotFound, s.Delete(key("alpha")))

	_, status := s.Get(key("alpha"), make([]byte, 16))
	require.Equal(t, kvstore.StatusKeyNotFound, status)
}

func TestUpdateReplacesValue(t *testing.T) {
	s, _ := openStore(t)

	require.Equal(t, kvstore.StatusSuccess, s.Put(key("alpha"), []byte("first")))
	require.Equal(t, kvstore.StatusSuccess, s.Update(key("alpha"), []byte("second value")))

	dst := make([]byte, 32)
	n, status := s.Get(key("alpha"), dst)
	require.Equal(t, kvstore.StatusSuccess, status)
	require.Equal(t, "second value", string(dst[:n]))
}

func TestUpdateMissingKey(t *testing.T) {
	s, _ := openStore(t)

	require.Equal(t, kvstore.StatusKeyNotFound, s.Update(key("ghost"), []byte("v")))
}

func TestManyKeysStayFindableInAnyInsertOrder(t *testing.T) {
	s, _ := openStore(t)

	names := []string{"mango", "apple", "zebra", "cat", "banana", "yak", "delta"}

	for _, n := range names {
		require.Equal(t, kvstore.StatusSuccess, s.Put(key(n), []byte(n+"-value")))
	}

	for _, n := range names {
		dst := make([]byte, 64)

		got, status := s.Get(key(n), dst)
		require.Equal(t, kvstore.StatusSuccess, status)
		require.Equal(t, n+"-value", string(dst[:got]))
	}
}

func TestStatsTracksLiveKeys(t *testing.T) {
	s, _ := openStore(t)

	stats, status := s.Stats()
	require.Equal(t, kvstore.StatusSuccess, status)
	require.Equal(t, 0, stats.LiveKeys)

	require.Equal(t, kvstore.StatusSuccess, s.Put(key("a"), []byte("1")))
	require.Equal(t, kvstore.StatusSuccess, s.Put(key("b"), []byte("22")))

	stats, status = s.Stats()
	require.Equal(t, kvstore.StatusSuccess, status)
	require.Equal(t, 2, stats.LiveKeys)
	require.Equal(t, uint64(8), stats.BytesUsed) // two values, each word-aligned to 4 bytes

	require.Equal(t, kvstore.StatusSuccess, s.Delete(key("a")))

	stats, status = s.Stats()
	require.Equal(t, kvstore.StatusSuccess, status)
	require.Equal(t, 1, stats.LiveKeys)
}

func TestVerifySucceedsOnAHealthyStore(t *testing.T) {
	s, _ := openStore(t)

	require.Equal(t, kvstore.StatusSuccess, s.Put(key("alpha"), []byte("v")))
	require.Equal(t, kvstore.StatusSuccess, s.Verify())
}

func TestRestartDurability(t *testing.T) {
	dir := t.TempDir()

	s := kvstore.New()
	require.Equal(t, kvstore.StatusSuccess, s.Init(dir, kvstore.Options{UserDataSize: testUserDataSize}))
	require.Equal(t, kvstore.StatusSuccess, s.Put(key("alpha"), []byte("persisted value")))
	require.Equal(t, kvstore.StatusSuccess, s.Deinit())

	reopened := kvstore.New()
	require.Equal(t, kvstore.StatusSuccess, reopened.Init(dir, kvstore.Options{UserDataSize: testUserDataSize}))

	t.Cleanup(func() { reopened.Deinit() })

	dst := make([]byte, 64)
	n, status := reopened.Get(key("alpha"), dst)
	require.Equal(t, kvstore.StatusSuccess, status)
	require.Equal(t, "persisted value", string(dst[:n]))
}

func TestInitTwiceReturnsAlreadyInitialized(t *testing.T) {
	s, dir := openStore(t)
	_ = dir

	require.Equal(t, kvstore.StatusAlreadyInitialized, s.Init(t.TempDir(), kvstore.Options{UserDataSize: testUserDataSize}))
}

func TestOperationsBeforeInitReturnNotInitialized(t *testing.T) {
	s := kvstore.New()

	require.Equal(t, kvstore.StatusNotInitialized, s.Put(key("a"), []byte("v")))

	_, status := s.Get(key("a"), make([]byte, 8))
	require.Equal(t, kvstore.StatusNotInitialized, status)

	require.Equal(t, kvstore.StatusNotInitialized, s.Delete(key("a")))
	require.Equal(t, kvstore.StatusNotInitialized, s.Update(key("a"), []byte("v")))
	require.Equal(t, kvstore.StatusNotInitialized, s.Verify())

	_, status = s.Stats()
	require.Equal(t, kvstore.StatusNotInitialized, status)
}
