package splits

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, contents string, split, splits int) []string {
	r, err := NewReader(strings.NewReader(contents), int64(len(contents)), split, splits)
	require.NoError(t, err)
	var lines []string
	for {
		line, err := r.ReadLine()
		if err == io.EOF {
			return lines
		}
		require.NoError(t, err)
		lines = append(lines, string(line))
	}
}

func TestSplitsCoverEveryLineOnce(t *testing.T) {
	inputs := []string{
		"a\nbb\nccc\ndddd\neeeee\nf\n",
		"a\nbb\nccc\ndddd\neeeee\nf",
		"\n\nx\n\n",
		"single line",
		"",
	}
	for _, input := range inputs {
		want := readAll(t, input, 0, 1)
		assert.Equal(t, input, strings.Join(want, ""))
		for splits := 2; splits <= len(input)+3; splits++ {
			var got []string
			for split := 0; split < splits; split++ {
				got = append(got, readAll(t, input, split, splits)...)
			}
			assert.Equal(t, want, got, "input: %q, splits: %d", input, splits)
		}
	}
}

func TestRange(t *testing.T) {
	start, end := Range(10, 0, 3)
	assert.Equal(t, []int64{0, 3}, []int64{start, end})
	start, end = Range(10, 2, 3)
	assert.Equal(t, []int64{6, 10}, []int64{start, end})
}

func TestReaderIsIOReader(t *testing.T) {
	input := "1|a|\n2|b|\n"
	r, err := NewReader(strings.NewReader(input), int64(len(input)), 0, 1)
	require.NoError(t, err)
	r.TrailingDelimiter = '|'
	var out bytes.Buffer
	_, err = io.Copy(&out, r)
	require.NoError(t, err)
	assert.Equal(t, "1|a\n2|b\n", out.String())
}

func TestStripTrailingDelimiter(t *testing.T) {
	assert.Equal(t, "1|a\n", string(stripTrailingDelimiter([]byte("1|a|\n"), '|')))
	assert.Equal(t, "1|a\r\n", string(stripTrailingDelimiter([]byte("1|a|\r\n"), '|')))
	assert.Equal(t, "1|a", string(stripTrailingDelimiter([]byte("1|a|"), '|')))
	assert.Equal(t, "1|a\n", string(stripTrailingDelimiter([]byte("1|a\n"), '|')))
	assert.Equal(t, "\n", string(stripTrailingDelimiter([]byte("\n"), '|')))
}
