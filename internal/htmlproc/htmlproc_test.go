package htmlproc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessEmptyHTMLReturnsEmptyResult(t *testing.T) {
	res, err := Process("", Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.OriginalLen)
}

func TestProcessRemovesScriptsAndStyles(t *testing.T) {
	html := `<html><body><script>alert(1)</script><style>.a{}</style><p>hi</p></body></html>`
	res, err := Process(html, Options{RemoveScripts: true, RemoveStyles: true})
	require.NoError(t, err)
	assert.NotContains(t, res.CleanMarkup, "alert(1)")
	assert.NotContains(t, res.CleanMarkup, ".a{}")
}

func TestProcessStripsNoiseSelectors(t *testing.T) {
	html := `<html><body><nav>navlinks</nav><main>main page content that is long enough to pass the two hundred character minimum threshold used to decide whether main-content detection actually succeeds for this particular html fixture under test right now.</main></body></html>`
	res, err := Process(html, Options{})
	require.NoError(t, err)
	assert.NotContains(t, res.Text, "navlinks")
}

func TestProcessDetectsMainContentByCandidateOrder(t *testing.T) {
	longText := strings.Repeat("word ", 60)
	html := `<html><body><div class="other">short</div><article>` + longText + `</article></body></html>`
	res, err := Process(html, Options{})
	require.NoError(t, err)
	assert.True(t, res.HasMainContent)
	assert.Contains(t, res.MainContent, "word")
}

func TestProcessFallsBackToBodyWhenNoMainCandidateLongEnough(t *testing.T) {
	html := `<html><body><p>short text</p></body></html>`
	res, err := Process(html, Options{})
	require.NoError(t, err)
	assert.True(t, res.HasMainContent)
}

func TestProcessTruncatesOversizedMarkup(t *testing.T) {
	html := "<p>" + strings.Repeat("a", 100) + "</p>"
	res, err := Process(html, Options{MaxMarkupLength: 10})
	require.NoError(t, err)
	assert.True(t, res.Truncated)
}

func TestProcessSanitizesDisallowedTagsAndAttributes(t *testing.T) {
	html := `<div onclick="evil()"><script>bad()</script><custom-tag>kept text</custom-tag><a href="javascript:evil()">link</a></div>`
	res, err := Process(html, Options{RemoveScripts: true})
	require.NoError(t, err)
	assert.NotContains(t, res.CleanMarkup, "onclick")
	assert.NotContains(t, res.CleanMarkup, "<custom-tag")
	assert.Contains(t, res.CleanMarkup, "kept text")
	assert.NotContains(t, res.CleanMarkup, `href="javascript:evil()"`)
}

func TestProcessAllowsHTTPAndDataImageSchemes(t *testing.T) {
	html := `<img src="data:image/png;base64,AAAA"><a href="https://example.com/x">ok</a>`
	res, err := Process(html, Options{})
	require.NoError(t, err)
	assert.Contains(t, res.CleanMarkup, "data:image/png")
	assert.Contains(t, res.CleanMarkup, "https://example.com/x")
}
