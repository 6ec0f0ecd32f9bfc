package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortText(t *testing.T) {
	chunks := Split("The rook moves in straight lines.", 1000, 200)
	assert.Equal(t, []string{"The rook moves in straight lines."}, chunks)
}

func TestSplitEmpty(t *testing.T) {
	assert.Nil(t, Split("", 1000, 200))
	assert.Nil(t, Split("   \n\n  ", 1000, 200))
}

func TestSplitHonorsSize(t *testing.T) {
	text := strings.Repeat("All pawns promote on the eighth rank. ", 200)
	chunks := Split(text, 500, 100)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 500)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestSplitOverlapsNeighbours(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString("word ")
	}
	chunks := Split(b.String(), 300, 100)
	require.Greater(t, len(chunks), 1)

	// The tail of one chunk reappears at the head of the next.
	tail := chunks[0][len(chunks[0])-20:]
	assert.Contains(t, chunks[1], strings.TrimSpace(tail))
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	para := strings.Repeat("a", 400) + "\n\n" + strings.Repeat("b", 400)
	chunks := Split(para, 500, 0)

	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 400), chunks[0])
	assert.Equal(t, strings.Repeat("b", 400), chunks[1])
}

func TestSplitSeparatorFreeTextMakesProgress(t *testing.T) {
	text := strings.Repeat("x", 2500)
	chunks := Split(text, 1000, 200)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 900)
}

func TestSplitZeroSize(t *testing.T) {
	assert.Nil(t, Split("anything", 0, 0))
}
