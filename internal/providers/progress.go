package providers

import (
	"fmt"
	"io"
	"os"
)

// OffsetFunc receives the reader offset after each chunk is read
type OffsetFunc func(offset int64)

// Observer receives progress of file transfers. A transfer always starts at
// offset zero and offsets passed to TransferProgress increase strictly
// within one transfer.
type Observer interface {
	TransferStarted(path string, size int64)
	TransferProgress(offset int64)
}

// ProgressReader streams a file sequentially and reports the offset reached
// after every read. It never holds more than the caller's buffer in memory.
type ProgressReader struct {
	file   *os.File
	size   int64
	offset int64
	notify OffsetFunc
	closed bool
}

// OpenProgressReader opens path for sequential reads. The caller must Close it.
func OpenProgressReader(path string, notify OffsetFunc) (*ProgressReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, NewIOError(fmt.Sprintf("failed to open %s", path), err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, NewIOError(fmt.Sprintf("failed to stat %s", path), err)
	}
	if info.IsDir() {
		file.Close()
		return nil, NewIOError(fmt.Sprintf("%s is a directory", path), nil)
	}

	return &ProgressReader{
		file:   file,
		size:   info.Size(),
		notify: notify,
	}, nil
}

// Read reads up to len(p) bytes from the current offset
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.file.Read(p)
	if n > 0 {
		pr.offset += int64(n)
		if pr.notify != nil {
			pr.notify(pr.offset)
		}
	}
	if err != nil && err != io.EOF {
		return n, NewIOError("failed to read file", err)
	}
	return n, err
}

// ReadChunk returns up to max bytes, or everything that is left when max <= 0.
func (pr *ProgressReader) ReadChunk(max int) ([]byte, error) {
	if max <= 0 {
		max = int(pr.size - pr.offset)
	}
	if max <= 0 {
		return nil, io.EOF
	}

	buf := make([]byte, max)
	n, err := io.ReadFull(pr, buf)
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	return buf[:n], err
}

// Size returns the file size captured when the reader was opened
func (pr *ProgressReader) Size() int64 {
	return pr.size
}

// Offset returns the number of bytes read so far
func (pr *ProgressReader) Offset() int64 {
	return pr.offset
}

// Close releases the file handle. Calling it more than once is safe.
func (pr *ProgressReader) Close() error {
	if pr.closed {
		return nil
	}
	pr.closed = true
	return pr.file.Close()
}
