package textproc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaultCollapsesWhitespaceAndNewlines(t *testing.T) {
	out := Normalize("hello   \n\n  world", DefaultOptions())
	assert.Equal(t, "hello world", out)
}

func TestNormalizeStripsControlAndZeroWidthChars(t *testing.T) {
	out := Normalize("a​b\x07c", DefaultOptions())
	assert.Equal(t, "abc", out)
}

func TestNormalizeStripsBidiControls(t *testing.T) {
	out := Normalize("a‪b⁦c", DefaultOptions())
	assert.Equal(t, "abc", out)
}

func TestNormalizeConvertsCRLFAndCR(t *testing.T) {
	opts := Options{NormalizeLineBreaks: true, TrimLines: true}
	out := Normalize("a\r\nb\rc", opts)
	assert.Equal(t, "a\nb\nc", out)
}

func TestNormalizePreserveParagraphsKeepsDoubleNewlineMax(t *testing.T) {
	opts := Options{CollapseWhitespace: true, WhitespaceMode: WhitespacePreserveParagraphs, TrimLines: true}
	out := Normalize("para one\n\n\n\npara two", opts)
	assert.Equal(t, "para one\n\npara two", out)
}

func TestNormalizeTruncatesToMaxLength(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxLength = 5
	out := Normalize("abcdefghij", opts)
	assert.Equal(t, "abcde", out)
}

func TestExtractTextFlatConcatenatesTextContent(t *testing.T) {
	html := `<div><p>Hello</p><p>World</p></div>`
	out, err := ExtractText(html, false)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", out)
}

func TestExtractTextStructurePreservingInsertsListMarkers(t *testing.T) {
	html := `<ul><li>one</li><li>two</li></ul>`
	out, err := ExtractText(html, true)
	require.NoError(t, err)
	assert.Contains(t, out, "- ")
	assert.True(t, strings.Contains(out, "one"))
	assert.True(t, strings.Contains(out, "two"))
}

func TestMarkupToTextPreservesLongSentences(t *testing.T) {
	sentence := "This sentence has at least five words in it for the round trip test."
	html := "<p>" + sentence + "</p>"
	out, err := ExtractText(html, false)
	require.NoError(t, err)
	assert.Contains(t, out, sentence)
}
