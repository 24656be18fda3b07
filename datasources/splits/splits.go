// Package splits reads line-oriented files in byte ranges, so that each range can be a separate partition.
package splits

import (
	"bufio"
	"bytes"
	"io"
)

const readBufferSize = 4096 * 1024

// Range returns the byte range of the given split, the splits being of (nearly) equal size.
func Range(size int64, split, splits int) (start, end int64) {
	return size * int64(split) / int64(splits), size * int64(split+1) / int64(splits)
}

// Reader reads the lines belonging to a byte range of a file.
// A line belongs to the range containing the newline right before it, the first line belongs to the first split.
// So a range, other than the first one, starts after the first newline at or after its start offset,
// and every range ends with the line following the first newline at or after its end offset.
type Reader struct {
	r   *bufio.Reader
	pos int64
	end int64
	// TrailingDelimiter, if not zero, is removed from the end of every line.
	TrailingDelimiter byte

	pending []byte
	done    bool
}

// NewReader positions the reader at the first line of the split.
func NewReader(f io.ReadSeeker, size int64, split, splits int) (*Reader, error) {
	start, end := Range(size, split, splits)
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	r := &Reader{
		r:   bufio.NewReaderSize(f, readBufferSize),
		pos: start,
		end: end,
	}
	if split == 0 {
		return r, nil
	}
	for {
		skipped, err := r.r.ReadSlice('\n')
		r.pos += int64(len(skipped))
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			r.done = true
			return r, nil
		}
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// ReadLine returns the next line of the range, including its line terminator if present.
func (r *Reader) ReadLine() ([]byte, error) {
	if r.done || r.pos > r.end {
		return nil, io.EOF
	}
	line, err := r.r.ReadBytes('\n')
	r.pos += int64(len(line))
	if err == io.EOF {
		r.done = true
		if len(line) == 0 {
			return nil, io.EOF
		}
	} else if err != nil {
		return nil, err
	}
	if r.TrailingDelimiter != 0 {
		line = stripTrailingDelimiter(line, r.TrailingDelimiter)
	}
	return line, nil
}

func (r *Reader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		line, err := r.ReadLine()
		if err != nil {
			return 0, err
		}
		r.pending = line
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func stripTrailingDelimiter(line []byte, delimiter byte) []byte {
	body := bytes.TrimRight(line, "\r\n")
	if len(body) == 0 || body[len(body)-1] != delimiter {
		return line
	}
	return append(body[:len(body)-1], line[len(body):]...)
}
