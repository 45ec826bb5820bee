package logsink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogf_FlushesEachLineToDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.log")

	s := New(path)
	s.Logf("hello %s", "world")
	s.Logf("second line")

	data, err := os.ReadFile(path) //nolint:gosec
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "hello world")
	require.Contains(t, lines[1], "second line")
}

func TestFlush_NoLinesWritesEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.log")

	s := New(path)
	require.NoError(t, s.Flush())

	data, err := os.ReadFile(path) //nolint:gosec
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestLogf_EachLineIsTimestamped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.log")

	s := New(path)
	s.Logf("something happened")

	data, err := os.ReadFile(path) //nolint:gosec
	require.NoError(t, err)

	fields := strings.SplitN(strings.TrimRight(string(data), "\n"), " ", 2)
	require.Len(t, fields, 2)
	require.Equal(t, "something happened", fields[1])
}
