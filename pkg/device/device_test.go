package device_test

import (
	"bytes"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flashkv/flashkv/pkg/device"
)

func TestCreate_FormatsAndReadsWords(t *testing.T) {
	dir := t.TempDir()

	d, err := device.Create(dir)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Format())

	dst := make([]byte, device.WordSize)
	require.NoError(t, d.ReadWord(0, 0, dst))
	require.Equal(t, bytes.Repeat([]byte{0xFF}, device.WordSize), dst)

	src := []byte{1, 2, 3, 4}
	require.NoError(t, d.WriteWord(5, 10, src))

	require.NoError(t, d.ReadWord(5, 10, dst))
	require.Equal(t, src, dst)
}

func TestErasePage_FillsWithFF(t *testing.T) {
	dir := t.TempDir()

	d, err := device.Create(dir)
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.Format())

	require.NoError(t, d.WriteWord(3, 0, []byte{1, 2, 3, 4}))
	require.NoError(t, d.ErasePage(3))

	dst := make([]byte, device.WordSize)
	require.NoError(t, d.ReadWord(3, 0, dst))
	require.Equal(t, bytes.Repeat([]byte{0xFF}, device.WordSize), dst)
}

func TestReadWord_OutOfBounds(t *testing.T) {
	dir := t.TempDir()

	d, err := device.Create(dir)
	require.NoError(t, err)
	defer d.Close()

	dst := make([]byte, device.WordSize)
	err = d.ReadWord(device.PageCount, 0, dst)
	require.ErrorIs(t, err, device.ErrOutOfBounds)

	err = d.ReadWord(0, device.WordsPerPage, dst)
	require.ErrorIs(t, err, device.ErrOutOfBounds)
}

func TestOpen_MissingFile(t *testing.T) {
	dir := t.TempDir()

	_, err := device.Open(dir)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestWriteFailureCountdown_TerminatesProcess runs the crash hook in a
// subprocess so the test binary itself survives the simulated power loss.
func TestWriteFailureCountdown_TerminatesProcess(t *testing.T) {
	if os.Getenv("FLASHKV_CRASH_SUBPROCESS") != "1" {
		t.Skip("exercised via TestWriteFailureCountdown_Subprocess")
	}

	dir := t.TempDir()

	d, err := device.Create(dir)
	require.NoError(t, err)

	d.SetWriteFailureCountdown(1)
	_ = d.WriteWord(0, 0, []byte{1, 2, 3, 4}) // process should exit before returning
	t.Fatal("write should have crashed the process")
}

// TestWriteFailureCountdown_Subprocess re-invokes this test binary with
// FLASHKV_CRASH_SUBPROCESS=1, restricted to the crash test above, and checks
// that it exits non-zero instead of reaching its own t.Fatal.
func TestWriteFailureCountdown_Subprocess(t *testing.T) {
	cmd := exec.Command(os.Args[0], "-test.run=^TestWriteFailureCountdown_TerminatesProcess$") //nolint:gosec
	cmd.Env = append(os.Environ(), "FLASHKV_CRASH_SUBPROCESS=1")

	err := cmd.Run()

	var exitErr *exec.ExitError

	require.ErrorAs(t, err, &exitErr)
	require.False(t, exitErr.Success())
}
