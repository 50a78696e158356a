package mdconvert

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertEmitsFencedCodeBlockWithLanguage(t *testing.T) {
	html := `<pre><code class="language-go">fmt.Println("hi")</code></pre>`
	res, err := Convert(html, "")
	require.NoError(t, err)
	assert.Contains(t, res.Markdown, "```go")
	assert.Contains(t, res.Markdown, `fmt.Println("hi")`)
}

func TestConvertEmitsHorizontalRule(t *testing.T) {
	res, err := Convert(`<p>a</p><hr><p>b</p>`, "")
	require.NoError(t, err)
	assert.Contains(t, res.Markdown, "---")
}

func TestConvertCollapsesExcessiveNewlines(t *testing.T) {
	html := `<p>a</p><p>b</p>`
	res, err := Convert(html, "")
	require.NoError(t, err)
	assert.False(t, strings.Contains(res.Markdown, "\n\n\n"))
}

func TestConvertCollectsLinkAndImageRefsInDocumentOrder(t *testing.T) {
	html := `<a href="/one">one</a><img src="/pic.png"><a href="#frag">jump</a>`
	res, err := Convert(html, "")
	require.NoError(t, err)
	require.Len(t, res.Links, 3)
	assert.Equal(t, "/one", res.Links[0].URL)
	assert.Equal(t, LinkNav, res.Links[0].Kind)
	assert.Equal(t, LinkImage, res.Links[1].Kind)
	assert.Equal(t, LinkAnchor, res.Links[2].Kind)
}

func TestConvertPassesTablesThroughAsHTML(t *testing.T) {
	table := `<table><tr><th>Name</th><th>Age</th></tr><tr><td>Ada</td><td>36</td></tr></table>`
	res, err := Convert(`<p>before</p>`+table+`<p>after</p>`, "")
	require.NoError(t, err)
	assert.Contains(t, res.Markdown, "<table>")
	assert.Contains(t, res.Markdown, "<td>Ada</td>")
	assert.NotContains(t, res.Markdown, "| Name | Age |")
}

func TestFallbackTextExtractStripsTags(t *testing.T) {
	out := fallbackTextExtract("<p>hello   <b>world</b></p>")
	assert.Equal(t, "hello world", out)
}
