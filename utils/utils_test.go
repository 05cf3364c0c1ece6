package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashLines(t *testing.T) {
	a := HashLines([]string{"ab", "c"})
	b := HashLines([]string{"a", "bc"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, HashLines([]string{"ab", "c"}))
	assert.NotEqual(t, HashLines([]string{"x"}, []string{"y"}), HashLines([]string{"x", "y"}))
}

func TestReadList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\n\nthree\n"), 0o600))

	lines, err := ReadList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "", "three"}, lines)

	_, err = ReadList(filepath.Join(t.TempDir(), "missing.txt"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestScanLinesNoTrailingNewline(t *testing.T) {
	lines, err := ScanLines(strings.NewReader("a b\nc d"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a b", "c d"}, lines)
}

func TestRecoverWithError(t *testing.T) {
	run := func() (err error) {
		defer RecoverWithError(&err)
		panic("boom")
	}
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
