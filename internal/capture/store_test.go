package capture

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var filenamePattern = regexp.MustCompile(`^capture_batik_\d{8}_\d{6}\.png$`)

func TestSaveWritesIdenticalBytes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewStore(dir)
	require.NoError(t, err)

	payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff, 0x10}
	filename, path, err := store.Save(payload)
	require.NoError(t, err)
	require.Regexp(t, filenamePattern, filename)
	require.Equal(t, filepath.Join(dir, filename), path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, written)
}

func TestSaveNamesByClock(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	store.WithClock(func() time.Time {
		return time.Date(2024, time.March, 5, 14, 7, 9, 0, time.Local)
	})

	filename, _, err := store.Save([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, "capture_batik_20240305_140709.png", filename)
}

func TestSaveSameSecondOverwrites(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	fixed := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.Local)
	store.WithClock(func() time.Time { return fixed })

	_, _, err = store.Save([]byte("first"))
	require.NoError(t, err)
	_, path, err := store.Save([]byte("second"))
	require.NoError(t, err)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), written)
}
