package index

import (
	"bytes"
	"strings"
)

// LineReconstructor rebuilds complete lines from a sequence of chunks whose
// boundaries ignore line structure. It is owned by a single worker.
type LineReconstructor struct {
	tail []byte
}

// Feed splits chunk on '\n' and emits every completed line in order. The
// pending tail is prepended to the first line of the chunk. Bytes after the
// last terminator become the new tail; a chunk without any terminator is
// appended to the tail. The chunk is not retained.
func (l *LineReconstructor) Feed(chunk []byte, emit func(string) error) error {
	for {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			break
		}

		var line string
		if len(l.tail) > 0 {
			l.tail = append(l.tail, chunk[:i]...)
			line = string(l.tail)
			l.tail = l.tail[:0]
		} else {
			line = string(chunk[:i])
		}
		chunk = chunk[i+1:]

		if err := emitLine(line, emit); err != nil {
			return err
		}
	}
	l.tail = append(l.tail, chunk...)
	return nil
}

// Flush emits the pending tail as the final line of the partition.
func (l *LineReconstructor) Flush(emit func(string) error) error {
	if len(l.tail) == 0 {
		return nil
	}
	line := string(l.tail)
	l.tail = l.tail[:0]
	return emitLine(line, emit)
}

// Pending returns the number of bytes waiting for a terminator.
func (l *LineReconstructor) Pending() int {
	return len(l.tail)
}

func emitLine(line string, emit func(string) error) error {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return nil
	}
	return emit(line)
}
