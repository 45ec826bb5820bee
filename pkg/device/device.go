// Package device simulates a flash-like block device (SSD/MMC) for the
// key-value store in [github.com/flashkv/flashkv/pkg/kvstore].
//
// Storage is word-granular for reads/writes and page-granular for erase,
// matching real flash hardware. [Device.Format] fills the whole device with
// 0xFF (the erased state); [Device.ErasePage] does the same for one page.
// A deterministic crash hook, [Device.SetWriteFailureCountdown], lets tests
// simulate a power loss at an exact word write.
package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Fixed geometry, matching the reference hardware model.
const (
	WordSize     = 4    // bytes per word; all reads/writes are word-granular
	WordsPerPage = 256  // words per page
	PageSize     = WordSize * WordsPerPage
	PageCount    = 2048 // pages on the device
	StorageSize  = PageSize * PageCount
)

// storageFileName is the fixed basename of the backing file within a data directory.
const storageFileName = "kvstore.img"

// Sentinel errors for device-level failures (spec.md §7 "internal level").
var (
	ErrOutOfBounds    = errors.New("device: page/word out of bounds")
	ErrIO             = errors.New("device: io failure")
	ErrNilDevice      = errors.New("device: nil device")
	ErrFileOpenFailed = errors.New("device: file open failed")
	ErrDirCreateFailed = errors.New("device: data directory creation failed")
)

// Device is a simulated flash block device backed by a single regular file.
//
// The zero value is not usable; obtain one with [Open] or [Create].
type Device struct {
	file    *os.File
	dataDir string

	// writeFailureCountdown counts down on every WriteWord call. When it
	// reaches exactly 1, the process exits before the write is applied,
	// simulating a power loss mid-write. 0 (the default) disables the hook.
	writeFailureCountdown int64
}

// EnsureDataDir creates dataDir (and parents) if it does not already exist.
func EnsureDataDir(dataDir string) error {
	err := os.MkdirAll(dataDir, 0o755)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrDirCreateFailed, dataDir, err)
	}

	return nil
}

// GetStorageFilename returns the fixed storage file path within dataDir.
func GetStorageFilename(dataDir string) string {
	return filepath.Join(dataDir, storageFileName)
}

// Open opens an existing device file within dataDir.
//
// Returns an error satisfying errors.Is(err, os.ErrNotExist) if the file is
// missing; callers needing "open-or-create" semantics should use [Create].
func Open(dataDir string) (*Device, error) {
	path := GetStorageFilename(dataDir)

	f, err := os.OpenFile(path, os.O_RDWR, 0o644) //nolint:gosec // path is derived from dataDir
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrFileOpenFailed, path, err)
	}

	return &Device{file: f, dataDir: dataDir}, nil
}

// Create creates (truncating if present) a new device file within dataDir,
// sized to [StorageSize], without initializing its contents. Callers should
// follow up with [Device.Format].
func Create(dataDir string) (*Device, error) {
	err := EnsureDataDir(dataDir)
	if err != nil {
		return nil, err
	}

	path := GetStorageFilename(dataDir)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrFileOpenFailed, path, err)
	}

	err = f.Truncate(StorageSize)
	if err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("%w: truncate: %w", ErrIO, err)
	}

	return &Device{file: f, dataDir: dataDir}, nil
}

// Close releases the underlying file handle.
func (d *Device) Close() error {
	if d == nil || d.file == nil {
		return nil
	}

	return d.file.Close()
}

// GetWordSize returns the device's word size in bytes.
func (d *Device) GetWordSize() int { return WordSize }

// GetWordsPerPage returns the number of words per page.
func (d *Device) GetWordsPerPage() int { return WordsPerPage }

// GetPageCount returns the number of pages on the device.
func (d *Device) GetPageCount() int { return PageCount }

// SetWriteFailureCountdown arms the crash hook: the n-th subsequent call to
// [Device.WriteWord] terminates the process before the write lands, via
// [os.Exit]. n <= 0 disables the hook.
func (d *Device) SetWriteFailureCountdown(n int) {
	if d == nil {
		return
	}

	d.writeFailureCountdown = int64(n)
}

// wordOffset validates (page, word) and returns the absolute byte offset.
func wordOffset(page, word int) (int64, error) {
	if page < 0 || page >= PageCount || word < 0 || word >= WordsPerPage {
		return 0, fmt.Errorf("%w: page=%d word=%d", ErrOutOfBounds, page, word)
	}

	return int64(page)*PageSize + int64(word)*WordSize, nil
}

// ReadWord reads exactly [WordSize] bytes at (page, word) into dst.
// dst must have length >= [WordSize].
func (d *Device) ReadWord(page, word int, dst []byte) error {
	if d == nil || d.file == nil {
		return ErrNilDevice
	}

	if len(dst) < WordSize {
		return fmt.Errorf("%w: dst too small", ErrIO)
	}

	off, err := wordOffset(page, word)
	if err != nil {
		return err
	}

	n, err := unix.Pread(int(d.file.Fd()), dst[:WordSize], off)
	if err != nil {
		return fmt.Errorf("%w: pread at %d: %w", ErrIO, off, err)
	}

	if n != WordSize {
		return fmt.Errorf("%w: short read at %d (%d bytes)", ErrIO, off, n)
	}

	return nil
}

// WriteWord writes exactly [WordSize] bytes from src at (page, word).
//
// If the crash countdown armed by [Device.SetWriteFailureCountdown] reaches
// zero on this call, the process exits immediately without performing the
// write, simulating a power loss at this exact word write.
func (d *Device) WriteWord(page, word int, src []byte) error {
	if d == nil || d.file == nil {
		return ErrNilDevice
	}

	if len(src) < WordSize {
		return fmt.Errorf("%w: src too small", ErrIO)
	}

	off, err := wordOffset(page, word)
	if err != nil {
		return err
	}

	if d.writeFailureCountdown > 0 {
		d.writeFailureCountdown--
		if d.writeFailureCountdown == 0 {
			os.Exit(1)
		}
	}

	n, err := unix.Pwrite(int(d.file.Fd()), src[:WordSize], off)
	if err != nil {
		return fmt.Errorf("%w: pwrite at %d: %w", ErrIO, off, err)
	}

	if n != WordSize {
		return fmt.Errorf("%w: short write at %d (%d bytes)", ErrIO, off, n)
	}

	return nil
}

// ErasePage fills the given page with 0xFF, the erased state.
func (d *Device) ErasePage(page int) error {
	if d == nil || d.file == nil {
		return ErrNilDevice
	}

	if page < 0 || page >= PageCount {
		return fmt.Errorf("%w: page=%d", ErrOutOfBounds, page)
	}

	buf := make([]byte, PageSize)
	for i := range buf {
		buf[i] = 0xFF
	}

	off := int64(page) * PageSize

	n, err := unix.Pwrite(int(d.file.Fd()), buf, off)
	if err != nil {
		return fmt.Errorf("%w: erase page %d: %w", ErrIO, page, err)
	}

	if n != PageSize {
		return fmt.Errorf("%w: short erase write for page %d (%d bytes)", ErrIO, page, n)
	}

	return nil
}

// Flush commits the underlying file's contents to stable storage.
func (d *Device) Flush() error {
	if d == nil || d.file == nil {
		return ErrNilDevice
	}

	return d.file.Sync()
}

// Format fills the entire device with 0xFF, starting at offset 0.
func (d *Device) Format() error {
	if d == nil || d.file == nil {
		return ErrNilDevice
	}

	for page := 0; page < PageCount; page++ {
		err := d.ErasePage(page)
		if err != nil {
			return err
		}
	}

	return d.file.Sync()
}
