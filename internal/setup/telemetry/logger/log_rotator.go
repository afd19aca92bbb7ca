package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CappedFile is a log file that never grows far beyond a fixed number of lines.
// Once twice the limit has been written since the last trim, the file is
// rewritten to hold only the newest maxLines lines.
type CappedFile struct {
	path     string
	file     *os.File
	recent   *ringBuffer
	maxLines int
	pending  int // Lines written since the file was last trimmed
	mu       sync.Mutex
}

// OpenCappedFile opens or creates the log file at path.
func OpenCappedFile(path string, maxLines int) (*CappedFile, error) {
	if maxLines < 1 {
		maxLines = 1
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
	}

	return &CappedFile{
		path:     path,
		file:     file,
		recent:   newRingBuffer(maxLines),
		maxLines: maxLines,
	}, nil
}

// Write implements io.Writer.
func (c *CappedFile) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.file.Write(p)
	if err != nil {
		return n, err
	}

	for line := range strings.SplitSeq(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}

		c.recent.push(line)
		c.pending++
	}

	if c.pending >= 2*c.maxLines {
		if err := c.trim(); err != nil {
			return n, fmt.Errorf("failed to trim log file: %w", err)
		}
	}

	return n, nil
}

// Sync flushes the file to disk.
func (c *CappedFile) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.file.Sync()
}

// Close closes the underlying file.
func (c *CappedFile) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.file.Close()
}

// trim replaces the file with the buffered lines. Must hold mu. On failure the
// current handle stays open and the next attempt waits for another maxLines lines.
func (c *CappedFile) trim() error {
	lines := c.recent.snapshot()

	temp, err := os.CreateTemp(filepath.Dir(c.path), "trim-*.log")
	if err != nil {
		c.pending = len(lines)
		return err
	}
	tempPath := temp.Name()

	if _, err := temp.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		temp.Close()
		os.Remove(tempPath)
		c.pending = len(lines)
		return err
	}

	// The temp handle follows the rename and becomes the live file
	if err := os.Rename(tempPath, c.path); err != nil {
		temp.Close()
		os.Remove(tempPath)
		c.pending = len(lines)
		return err
	}

	c.file.Close()
	c.file = temp
	c.pending = len(lines)

	return nil
}
