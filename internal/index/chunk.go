package index

import (
	"fmt"
	"io"
	"os"

	"github.com/Aman-CERP/taxidx/internal/errors"
)

// DefaultBufferSize is the per-worker read buffer capacity in bytes.
const DefaultBufferSize = 1024

// ChunkReader reads one partition of a file as a sequence of fixed-size
// chunks. Each reader owns its own file handle.
type ChunkReader struct {
	file      *os.File
	part      Partition
	budget    uint64
	buf       []byte
	consumed  uint64
	exhausted bool
}

// ChunkOption configures a ChunkReader.
type ChunkOption func(*chunkOptions)

type chunkOptions struct {
	exactStart bool
}

// WithExactStart reads from Start itself instead of one byte before it.
// Aligned partitions always behave this way.
func WithExactStart() ChunkOption {
	return func(o *chunkOptions) {
		o.exactStart = true
	}
}

// NewChunkReader opens path and positions the reader for part.
//
// By default a partition that does not start at offset 0 is read from
// Start-1, so the last byte of the previous range is examined again. The
// budget grows by that one byte so the range still ends at End.
func NewChunkReader(path string, part Partition, capacity int, opts ...ChunkOption) (*ChunkReader, error) {
	if capacity <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidBufferSize,
			fmt.Sprintf("buffer size must be at least 1, got %d", capacity), nil)
	}

	var o chunkOptions
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.IOError(fmt.Sprintf("open %s", path), err).
			WithDetail("partition", part.String())
	}

	offset := part.Start
	budget := part.Length
	if offset > 0 && !o.exactStart && !part.Aligned {
		offset--
		budget++
	}
	if offset > 0 {
		if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
			_ = f.Close()
			return nil, errors.IOError(fmt.Sprintf("seek %s to %d", path, offset), err).
				WithDetail("partition", part.String())
		}
	}

	return &ChunkReader{
		file:   f,
		part:   part,
		budget: budget,
		buf:    make([]byte, capacity),
	}, nil
}

// Next returns the next chunk, or io.EOF once the partition's bytes were
// consumed or the file ended. The returned slice is only valid until the next call.
func (r *ChunkReader) Next() ([]byte, error) {
	if r.exhausted || r.consumed >= r.budget {
		r.exhausted = true
		return nil, io.EOF
	}

	want := uint64(len(r.buf))
	if remaining := r.budget - r.consumed; remaining < want {
		want = remaining
	}

	n, err := io.ReadFull(r.file, r.buf[:want])
	r.consumed += uint64(n)
	switch {
	case err == nil:
		return r.buf[:n], nil
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		// The file is shorter than the partition claims.
		r.exhausted = true
		if n == 0 {
			return nil, io.EOF
		}
		return r.buf[:n], nil
	default:
		return nil, errors.IOError("read failed", err).
			WithDetail("partition", r.part.String()).
			WithDetail("consumed", fmt.Sprintf("%d", r.consumed))
	}
}

// Consumed returns the number of bytes read so far.
func (r *ChunkReader) Consumed() uint64 {
	return r.consumed
}

// Budget returns the number of bytes this reader will consume at most.
func (r *ChunkReader) Budget() uint64 {
	return r.budget
}

// Close releases the file handle.
func (r *ChunkReader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
