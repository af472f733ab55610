package index

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readLines drains one partition through a ChunkReader and a LineReconstructor.
func readLines(t *testing.T, path string, part Partition, capacity int, opts ...ChunkOption) []string {
	t.Helper()

	r, err := NewChunkReader(path, part, capacity, opts...)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	var lines []string
	collect := func(line string) error {
		lines = append(lines, line)
		return nil
	}

	var rec LineReconstructor
	for {
		chunk, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.NoError(t, rec.Feed(chunk, collect))
	}
	require.NoError(t, rec.Flush(collect))
	return lines
}

func TestLineReconstructor_CapacityIdempotence(t *testing.T) {
	// Given: a file whose lines straddle any small buffer size
	var want []string
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		line := fmt.Sprintf(`{"n":%d,"pad":"%s"}`, i, strings.Repeat("p", i%13))
		want = append(want, line)
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	content := sb.String()
	path := writeFile(t, content)
	whole := Partition{Start: 0, Length: uint64(len(content))}

	for _, capacity := range []int{1, 7, 1024, len(content)} {
		t.Run(fmt.Sprintf("capacity=%d", capacity), func(t *testing.T) {
			// When: reading with this buffer size
			got := readLines(t, path, whole, capacity)

			// Then: the same lines come out in file order
			assert.Equal(t, want, got)
		})
	}
}

func TestLineReconstructor_TerminatorOnChunkBoundary(t *testing.T) {
	// Given: chunks that end exactly at a terminator
	var rec LineReconstructor
	var got []string
	collect := func(s string) error { got = append(got, s); return nil }

	require.NoError(t, rec.Feed([]byte("ab\n"), collect))
	require.NoError(t, rec.Feed([]byte("cd\n"), collect))
	require.NoError(t, rec.Feed([]byte("e"), collect))
	require.NoError(t, rec.Feed([]byte("f\ngh"), collect))
	require.NoError(t, rec.Flush(collect))

	// Then: no empty or merged lines
	assert.Equal(t, []string{"ab", "cd", "ef", "gh"}, got)
	assert.Zero(t, rec.Pending())
}

func TestLineReconstructor_TailAccumulatesWithoutTerminator(t *testing.T) {
	var rec LineReconstructor
	var got []string
	collect := func(s string) error { got = append(got, s); return nil }

	require.NoError(t, rec.Feed([]byte("abc"), collect))
	require.NoError(t, rec.Feed([]byte("def"), collect))
	assert.Equal(t, 6, rec.Pending())
	assert.Empty(t, got)

	require.NoError(t, rec.Feed([]byte("g\n"), collect))
	assert.Equal(t, []string{"abcdefg"}, got)
}

func TestLineReconstructor_ChunkNotRetained(t *testing.T) {
	// Given: a reused buffer, as ChunkReader does
	var rec LineReconstructor
	var got []string
	collect := func(s string) error { got = append(got, s); return nil }

	buf := []byte("xy")
	require.NoError(t, rec.Feed(buf, collect))
	copy(buf, "\nz")
	require.NoError(t, rec.Feed(buf, collect))
	require.NoError(t, rec.Flush(collect))

	assert.Equal(t, []string{"xy", "z"}, got)
}

func TestLineReconstructor_SkipsBlankLinesAndCarriageReturns(t *testing.T) {
	var rec LineReconstructor
	var got []string
	collect := func(s string) error { got = append(got, s); return nil }

	require.NoError(t, rec.Feed([]byte("a\r\n\n  \n\r\nb\r\n"), collect))
	require.NoError(t, rec.Flush(collect))

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestLineReconstructor_FlushEmptyTail(t *testing.T) {
	var rec LineReconstructor
	called := false

	require.NoError(t, rec.Flush(func(string) error { called = true; return nil }))
	assert.False(t, called)
}

func TestLineReconstructor_EmitErrorStopsFeed(t *testing.T) {
	var rec LineReconstructor
	var got []string
	stop := fmt.Errorf("stop")

	err := rec.Feed([]byte("a\nb\nc\n"), func(s string) error {
		got = append(got, s)
		if s == "b" {
			return stop
		}
		return nil
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestPartitionBoundary_DefaultModeReexaminesPreviousByte(t *testing.T) {
	// Given: the boundary sits right after a terminator
	path := writeFile(t, "abc\ndef\n")
	parts, err := Partitions(8, 2)
	require.NoError(t, err)

	// When: reading each partition in default mode
	first := readLines(t, path, parts[0], 3)
	second := readLines(t, path, parts[1], 3)

	// Then: the re-read terminator yields a blank line that is dropped
	assert.Equal(t, []string{"abc"}, first)
	assert.Equal(t, []string{"def"}, second)
}

func TestPartitionBoundary_DefaultModeSplitsLine(t *testing.T) {
	// Given: the boundary falls inside a line
	path := writeFile(t, "abcdef\nxy\n")
	parts, err := Partitions(10, 2)
	require.NoError(t, err)

	first := readLines(t, path, parts[0], 4)
	second := readLines(t, path, parts[1], 4)

	// Then: each side flushes its fragment of the split line
	assert.Equal(t, []string{"abcde"}, first)
	assert.Equal(t, []string{"ef", "xy"}, second)
}

func TestPartitionBoundary_StrictModeKeepsLinesWhole(t *testing.T) {
	content := "abcdef\nxy\nlonger line here\nq\n"
	path := writeFile(t, content)

	for k := 1; k <= 6; k++ {
		parts, err := Partitions(int64(len(content)), k)
		require.NoError(t, err)
		aligned, err := AlignPartitions(t.Context(), path, parts)
		require.NoError(t, err)

		var got []string
		for _, p := range aligned {
			got = append(got, readLines(t, path, p, 5, WithExactStart())...)
		}
		assert.Equal(t, []string{"abcdef", "xy", "longer line here", "q"}, got, "k=%d", k)
	}
}
