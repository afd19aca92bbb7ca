package logger_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robalyx/vaultstats/internal/setup/telemetry/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestCappedFileTrims(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.log")
	file, err := logger.OpenCappedFile(path, 5)
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })

	// Below twice the cap nothing is trimmed
	for i := range 9 {
		_, err := fmt.Fprintf(file, "line %d\n", i)
		require.NoError(t, err)
	}
	assert.Len(t, readLines(t, path), 9)

	// The tenth line triggers a trim down to the newest five
	_, err = fmt.Fprintf(file, "line 9\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"line 5", "line 6", "line 7", "line 8", "line 9"}, readLines(t, path))

	// Writes continue to land in the trimmed file
	_, err = fmt.Fprintf(file, "line 10\n")
	require.NoError(t, err)
	require.NoError(t, file.Sync())

	lines := readLines(t, path)
	assert.Len(t, lines, 6)
	assert.Equal(t, "line 10", lines[len(lines)-1])
}

func TestCappedFileMultiLineWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.log")
	file, err := logger.OpenCappedFile(path, 2)
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })

	_, err = file.Write([]byte("a\nb\n\nc\nd\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "d"}, readLines(t, path))
}

func TestOpenCappedFileMissingDir(t *testing.T) {
	t.Parallel()

	_, err := logger.OpenCappedFile(filepath.Join(t.TempDir(), "missing", "main.log"), 10)
	require.Error(t, err)
}
