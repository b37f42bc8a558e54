package atomicfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kjk/molstore/require"
)

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

func TestSimulateError(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "__schema__.json")
	f, err := New(dst)
	require.NoError(t, err)
	require.True(t, fileExists(f.tmpPath))
	_, err = f.Write([]byte("{}"))
	require.NoError(t, err)

	errSimulated := errors.New("simulated")
	f.err = errSimulated
	require.Equal(t, errSimulated, f.Close())
	require.False(t, fileExists(f.tmpPath))
	require.False(t, fileExists(dst))
	// second Close() returns the same error
	require.Equal(t, errSimulated, f.Close())
}

func writeWithPanicCancel(f *File) {
	defer f.RemoveIfNotClosed()
	_, _ = f.Write([]byte("partial"))
	panic("simulating a crash")
}

func TestCancelOnPanic(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "__valid__.roar")
	f, err := New(dst)
	require.NoError(t, err)
	func() {
		defer func() {
			require.NotNil(t, recover())
		}()
		writeWithPanicCancel(f)
	}()
	require.False(t, fileExists(f.tmpPath))
	require.False(t, fileExists(dst))
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "0000.col")

	f, err := New(dst)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.True(t, fileExists(dst))
	require.False(t, fileExists(f.tmpPath))

	d := []byte("some column data")
	require.NoError(t, WriteFile(dst, d))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, d, got)

	// cancelled file keeps returning ErrCancelled
	f, err = New(dst)
	require.NoError(t, err)
	f.RemoveIfNotClosed()
	_, err = f.Write(d)
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, f.Close(), ErrCancelled)
	// destination from the previous write is untouched
	got, err = os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, d, got)

	// directory must exist up front
	_, err = New(filepath.Join(dir, "missing", "bar.txt"))
	require.Error(t, err)
}
