package kvstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flashkv/flashkv/pkg/device"
	"github.com/flashkv/flashkv/pkg/kvstore"
)

// corruptPrimarySuperblock flips a byte inside the primary superblock's
// region (page 0, word 0) on a closed store's backing file, simulating wear
// that flipped a bit somewhere other than the self-CRC bytes themselves.
func corruptPrimarySuperblock(t *testing.T, dir string) {
	t.Helper()

	d, err := device.Open(dir)
	require.NoError(t, err)

	defer d.Close()

	word := make([]byte, device.WordSize)
	require.NoError(t, d.ReadWord(0, 0, word))

	word[0] ^= 0xFF

	require.NoError(t, d.WriteWord(0, 0, word))
}

func TestRecovery_FailsOverToBackupSuperblockWhenPrimaryIsCorrupt(t *testing.T) {
	dir := t.TempDir()

	s := kvstore.New()
	require.Equal(t, kvstore.StatusSuccess, s.Init(dir, kvstore.Options{UserDataSize: testUserDataSize}))
	require.Equal(t, kvstore.StatusSuccess, s.Put(key("alpha"), []byte("persisted value")))
	require.Equal(t, kvstore.StatusSuccess, s.Deinit())

	corruptPrimarySuperblock(t, dir)

	reopened := kvstore.New()
	require.Equal(t, kvstore.StatusSuccess, reopened.Init(dir, kvstore.Options{UserDataSize: testUserDataSize}))

	t.Cleanup(func() { reopened.Deinit() })

	dst := make([]byte, 64)

	n, status := reopened.Get(key("alpha"), dst)
	require.Equal(t, kvstore.StatusSuccess, status)
	require.Equal(t, "persisted value", string(dst[:n]))

	// The backup copy should have been written back to the primary slot so a
	// second reopen (no further corruption) also succeeds without relying on
	// the backup again.
	thirdOpen := kvstore.New()
	require.Equal(t, kvstore.StatusSuccess, thirdOpen.Init(dir, kvstore.Options{UserDataSize: testUserDataSize}))

	t.Cleanup(func() { thirdOpen.Deinit() })

	n, status = thirdOpen.Get(key("alpha"), dst)
	require.Equal(t, kvstore.StatusSuccess, status)
	require.Equal(t, "persisted value", string(dst[:n]))
}
