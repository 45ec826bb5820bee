package kvstore

import (
	"fmt"

	"github.com/flashkv/flashkv/pkg/device"
)

// Geometry mirrors the immutable device characteristics (spec.md §3).
type Geometry struct {
	WordSize     int
	WordsPerPage int
	PageSize     int
	PageCount    int
	StorageSize  int
}

func geometryFromDevice() Geometry {
	return Geometry{
		WordSize:     device.WordSize,
		WordsPerPage: device.WordsPerPage,
		PageSize:     device.PageSize,
		PageCount:    device.PageCount,
		StorageSize:  device.StorageSize,
	}
}

// alignUp rounds n up to the next multiple of mult.
func alignUp(n, mult uint64) uint64 {
	if mult == 0 {
		return n
	}

	rem := n % mult
	if rem == 0 {
		return n
	}

	return n + (mult - rem)
}

func ceilDiv(n, d uint64) uint64 {
	if d == 0 {
		return 0
	}

	return (n + d - 1) / d
}

const maxLayoutIterations = 64

// layout holds the computed, fixed-at-creation region geometry, before it is
// folded into a [superblock].
type layout struct {
	geom Geometry

	alignedUserSize uint64
	maxKeyCount     uint64

	dataBitmapOff, dataBitmapSize   uint64
	metaBitmapOff, metaBitmapSize   uint64
	rewriteOff, rewriteSize         uint64
	crcBlockOff, crcBlockSize       uint64
	userDataOff, userDataSize       uint64
	metadataOff, metadataSize       uint64
	superblockSize                  uint64
}

// computeLayout solves the region sizes for the given requested user-data
// size by fixed-point iteration (spec.md §4.9 setup_device): bitmap sizes,
// the metadata bitmap size, the rewrite-counter size, the CRC array size,
// and the metadata region size all depend on max_key_count, and the space
// left over for max_key_count depends on all the others. Iterate until the
// metadata region size stops changing.
func computeLayout(geom Geometry, userSize uint64) (layout, error) {
	const superblockSize = 256

	alignedUserSize := alignUp(userSize, uint64(geom.WordSize))
	dataBitmapSize := alignUp(ceilDiv(alignedUserSize/uint64(geom.WordSize), 8), uint64(geom.WordSize))

	fixedOverhead := 2*superblockSize + alignedUserSize + dataBitmapSize + fixedCRCBytes
	if fixedOverhead >= uint64(geom.StorageSize) {
		return layout{}, fmt.Errorf("%w: user_size %d leaves no room for service data", errInvalidParam, userSize)
	}

	remaining := uint64(geom.StorageSize) - fixedOverhead

	// Initial guess: ignore metadata-bitmap/CRC-array/rewrite-counter
	// overhead entirely.
	maxKeyCount := remaining / metadataSlotSize

	userDataPages := ceilDiv(alignedUserSize, uint64(geom.PageSize))

	var metaBitmapSize, entryCRCArraySize, metadataSize, rewriteSize uint64

	for range maxLayoutIterations {
		metaBitmapSize = alignUp(ceilDiv(maxKeyCount, 8), uint64(geom.WordSize))
		entryCRCArraySize = maxKeyCount * entryCRCSize
		metadataSize = maxKeyCount * metadataSlotSize

		metadataPages := ceilDiv(metadataSize, uint64(geom.PageSize))
		trackedPages := userDataPages + metadataPages
		rewriteSize = trackedPages * 4

		overhead := metaBitmapSize + entryCRCArraySize + rewriteSize
		if overhead >= remaining {
			maxKeyCount = 0

			break
		}

		newMaxKeyCount := (remaining - overhead) / metadataSlotSize
		if newMaxKeyCount == maxKeyCount {
			break
		}

		maxKeyCount = newMaxKeyCount
	}

	if maxKeyCount < MinNumMetadata {
		return layout{}, fmt.Errorf("%w: computed max_key_count %d below minimum %d",
			errInvalidParam, maxKeyCount, MinNumMetadata)
	}

	// Final pass with the converged max_key_count.
	metaBitmapSize = alignUp(ceilDiv(maxKeyCount, 8), uint64(geom.WordSize))
	entryCRCArraySize = maxKeyCount * entryCRCSize
	metadataSize = maxKeyCount * metadataSlotSize
	metadataPages := ceilDiv(metadataSize, uint64(geom.PageSize))
	trackedPages := userDataPages + metadataPages
	rewriteSize = trackedPages * 4
	crcBlockSize := fixedCRCBytes + entryCRCArraySize

	// Region layout order (spec.md §3): superblock, data bitmap, metadata
	// bitmap, page-rewrite counters, CRC block, user data, metadata slots,
	// backup superblock. The two GC-managed areas (user data, metadata) are
	// additionally padded up to a page boundary: GC reclaims whole pages, and
	// an area that doesn't start on a page boundary would make its first
	// page's erase/clear spill into the region before it.
	pageSize := uint64(geom.PageSize)

	dataBitmapOff := uint64(superblockSize)
	metaBitmapOff := dataBitmapOff + dataBitmapSize
	rewriteOff := metaBitmapOff + metaBitmapSize
	crcBlockOff := rewriteOff + rewriteSize
	userDataOff := alignUp(crcBlockOff+crcBlockSize, pageSize)
	metadataOff := alignUp(userDataOff+alignedUserSize, pageSize)

	end := metadataOff + metadataSize + superblockSize
	if end > uint64(geom.StorageSize) {
		return layout{}, fmt.Errorf("%w: computed layout (%d bytes) exceeds storage size (%d)",
			errInvalidParam, end, geom.StorageSize)
	}

	return layout{
		geom:            geom,
		alignedUserSize: alignedUserSize,
		maxKeyCount:     maxKeyCount,
		dataBitmapOff:   dataBitmapOff,
		dataBitmapSize:  dataBitmapSize,
		metaBitmapOff:   metaBitmapOff,
		metaBitmapSize:  metaBitmapSize,
		rewriteOff:      rewriteOff,
		rewriteSize:     rewriteSize,
		crcBlockOff:     crcBlockOff,
		crcBlockSize:    crcBlockSize,
		userDataOff:     userDataOff,
		userDataSize:    alignedUserSize,
		metadataOff:     metadataOff,
		metadataSize:    metadataSize,
		superblockSize:  superblockSize,
	}, nil
}
