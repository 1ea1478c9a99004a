package wal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Seq int `json:"seq"`
}

func readSeqs(t *testing.T, w *WAL) []int {
	t.Helper()
	var seqs []int
	require.NoError(t, w.ReadAll(func(raw []byte) error {
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		seqs = append(seqs, e.Seq)
		return nil
	}))
	return seqs
}

func TestWriteAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := NewWAL(path)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		require.NoError(t, w.Write(entry{Seq: i}))
	}
	require.NoError(t, w.Close())

	w, err = NewWAL(path)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, []int{1, 2, 3}, readSeqs(t, w))

	// ReadAll 之後繼續追加
	require.NoError(t, w.Write(entry{Seq: 4}))
	assert.Equal(t, []int{1, 2, 3, 4}, readSeqs(t, w))
}

func TestReadAllTruncatesTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	require.NoError(t, os.WriteFile(path, []byte("{\"seq\":1}\n{\"seq\":2}\n{\"se"), 0o644))

	w, err := NewWAL(path)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, []int{1, 2}, readSeqs(t, w))
	require.NoError(t, w.Write(entry{Seq: 3}))
	assert.Equal(t, []int{1, 2, 3}, readSeqs(t, w))
}

func TestReadAllEmptyFile(t *testing.T) {
	w, err := NewWAL(filepath.Join(t.TempDir(), "wal.log"))
	require.NoError(t, err)
	defer w.Close()
	assert.Empty(t, readSeqs(t, w))
}

func TestWriteFailureLeavesNoRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := NewWAL(path)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Write(entry{Seq: 1}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	size := info.Size()

	errDisk := errors.New("disk full")
	w.syncFile = func(*os.File) error { return errDisk }
	assert.ErrorIs(t, w.Write(entry{Seq: 2}), errDisk)

	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, size, info.Size())

	w.syncFile = (*os.File).Sync
	require.NoError(t, w.Write(entry{Seq: 3}))
	assert.Equal(t, []int{1, 3}, readSeqs(t, w))
}

func TestWriteMarshalFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := NewWAL(path)
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.Write(map[string]any{"bad": make(chan int)}))
	require.NoError(t, w.Write(entry{Seq: 1}))
	assert.Equal(t, []int{1}, readSeqs(t, w))
}
