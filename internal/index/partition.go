package index

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/taxidx/internal/errors"
)

// Partition is one worker's contiguous byte range of the input file.
type Partition struct {
	Index  int
	Start  uint64
	Length uint64

	// Aligned is set when Start is known to be the first byte of a line.
	Aligned bool
}

// End returns the first byte after the partition.
func (p Partition) End() uint64 {
	return p.Start + p.Length
}

// String implements fmt.Stringer.
func (p Partition) String() string {
	return fmt.Sprintf("partition-%d[%d,%d)", p.Index, p.Start, p.End())
}

// Partitions splits size bytes into one range per worker. Every worker but
// the last gets size/workers bytes; the last takes the remainder so that
// the ranges cover [0, size) with no gap and no overlap.
func Partitions(size int64, workers int) ([]Partition, error) {
	if workers <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidWorkers,
			fmt.Sprintf("worker count must be at least 1, got %d", workers), nil)
	}
	if size < 0 {
		return nil, errors.ConfigError(fmt.Sprintf("invalid file size %d", size), nil)
	}

	total := uint64(size)
	k := uint64(workers)
	base := total / k

	parts := make([]Partition, workers)
	for i := range parts {
		parts[i] = Partition{
			Index:  i,
			Start:  uint64(i) * base,
			Length: base,
		}
	}
	parts[workers-1].Length = total - (k-1)*base
	parts[0].Aligned = true
	return parts, nil
}

// PartitionFile stats path and partitions it.
func PartitionFile(path string, workers int) ([]Partition, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, errors.New(errors.ErrCodeInputNotFound,
			fmt.Sprintf("cannot determine size of %s", path), err)
	}
	if !info.Mode().IsRegular() {
		return nil, 0, errors.New(errors.ErrCodeInputUnreadable,
			fmt.Sprintf("%s is not a regular file", path), nil)
	}
	parts, err := Partitions(info.Size(), workers)
	if err != nil {
		return nil, 0, err
	}
	return parts, info.Size(), nil
}

// AlignPartitions moves every interior boundary forward to the start of the
// next line, so that no line is split between two workers. Boundaries are
// scanned concurrently. A partition may end up empty when a single line
// spans it entirely.
func AlignPartitions(ctx context.Context, path string, parts []Partition) ([]Partition, error) {
	if len(parts) <= 1 {
		out := append([]Partition(nil), parts...)
		for i := range out {
			out[i].Aligned = true
		}
		return out, nil
	}

	size := parts[len(parts)-1].End()
	starts := make([]uint64, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i < len(parts); i++ {
		g.Go(func() error {
			next, err := nextLineStart(gctx, path, parts[i].Start, size)
			if err != nil {
				return err
			}
			starts[i] = next
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A long line can push a boundary past the following ones.
	for i := 1; i < len(starts); i++ {
		if starts[i] < starts[i-1] {
			starts[i] = starts[i-1]
		}
	}

	out := make([]Partition, len(parts))
	for i := range parts {
		end := size
		if i+1 < len(parts) {
			end = starts[i+1]
		}
		out[i] = Partition{
			Index:   i,
			Start:   starts[i],
			Length:  end - starts[i],
			Aligned: true,
		}
	}
	return out, nil
}

// nextLineStart returns the offset of the first line that starts at or
// after offset. A boundary that already sits right after a terminator is
// kept as is.
func nextLineStart(ctx context.Context, path string, offset, size uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if offset == 0 || offset >= size {
		return min(offset, size), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, errors.IOError(fmt.Sprintf("open %s", path), err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(int64(offset-1), io.SeekStart); err != nil {
		return 0, errors.IOError(fmt.Sprintf("seek %s to %d", path, offset-1), err)
	}

	r := bufio.NewReaderSize(f, 64*1024)
	pos := offset - 1
	for {
		if pos > offset && pos%(1<<20) == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		b, err := r.ReadByte()
		if err == io.EOF {
			return size, nil
		}
		if err != nil {
			return 0, errors.IOError(fmt.Sprintf("scan %s for line boundary", path), err)
		}
		pos++
		if b == '\n' {
			return min(pos, size), nil
		}
	}
}
