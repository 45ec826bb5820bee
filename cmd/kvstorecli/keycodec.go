package main

import (
	"errors"
	"fmt"

	"github.com/flashkv/flashkv/pkg/kvstore"
)

var errKeyTooLong = errors.New("kvstorecli: key exceeds the fixed key width")

// encodeKey right-pads s with zero bytes to the store's fixed key width.
// Keys shorter than the width are common from the shell; keys longer than
// it are almost certainly a mistake, so that case is rejected rather than
// silently truncated.
func encodeKey(s string) ([]byte, error) {
	if len(s) > kvstore.KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, max %d", errKeyTooLong, len(s), kvstore.KeySize)
	}

	key := make([]byte, kvstore.KeySize)
	copy(key, s)

	return key, nil
}
