package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

const followInterval = 100 * time.Millisecond

// TailLog copies a log file to w. With n > 0 only the last n lines are
// shown. With follow it keeps copying appended data until ctx is done.
func TailLog(ctx context.Context, w io.Writer, path string, n int, follow bool) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if n > 0 {
		if err := tailSeek(file, n); err != nil {
			return fmt.Errorf("seek to tail position: %w", err)
		}
	}

	if follow {
		return tailFollow(ctx, w, file)
	}
	_, err = io.Copy(w, file)
	return err
}

// tailSeek positions file at the start of its last n lines.
func tailSeek(file *os.File, n int) error {
	stat, err := file.Stat()
	if err != nil {
		return err
	}
	size := stat.Size()

	const blockSize = 4096
	buf := make([]byte, blockSize)
	offset := size
	lines := 0
	for offset > 0 {
		readSize := int64(blockSize)
		if offset < readSize {
			readSize = offset
		}
		offset -= readSize
		if _, err := file.ReadAt(buf[:readSize], offset); err != nil && err != io.EOF {
			return err
		}
		for i := readSize - 1; i >= 0; i-- {
			if buf[i] != '\n' || offset+i == size-1 {
				continue
			}
			lines++
			if lines == n {
				_, err := file.Seek(offset+i+1, io.SeekStart)
				return err
			}
		}
	}
	_, err = file.Seek(0, io.SeekStart)
	return err
}

func tailFollow(ctx context.Context, w io.Writer, file *os.File) error {
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()
	for {
		if _, err := io.Copy(w, file); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
