// Package mdconvert implements spec.md §4.6: converting sanitized HTML into
// Markdown, preserving link/image references and table structure. Grounded
// on the teacher's inline htmlmd.NewConverter call in scraper.go and
// rod_scraper.go, generalized into its own pipeline stage with an explicit
// link-reference extraction step in the manner of the pack's docs-crawler
// mdconvert package.
package mdconvert

import (
	"bytes"
	"regexp"
	"strings"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/md"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// LinkKind classifies a reference extracted alongside the converted markdown.
type LinkKind string

const (
	LinkAnchor LinkKind = "anchor"
	LinkImage  LinkKind = "image"
	LinkNav    LinkKind = "navigation"
)

// LinkRef is one <a>/<img> reference found in the source markup, in
// document order.
type LinkRef struct {
	URL  string
	Kind LinkKind
}

// Result is the Markdown Converter's output.
type Result struct {
	Markdown string
	Links    []LinkRef
}

var languageClassRe = regexp.MustCompile(`language-(\S+)`)

// Convert turns sanitized HTML into markdown using CommonMark + GFM rules,
// overridden by three custom rules: tables pass through as raw HTML wrapped
// in blank lines, <pre> blocks become fenced code carrying a
// `class="language-XXX"` hint, and <hr> becomes `---`; blockquotes are left
// to the base converter. It also collects ordered link/image references in
// Result.Links (the Processing Pipeline uses only Result.Markdown).
// On a converter exception it falls back to plain text extraction, per
// §4.6's "fall back to text extraction (strip tags, collapse whitespace)".
func Convert(source, domainHint string) (Result, error) {
	conv := htmlmd.NewConverter(domainHint, true, nil)
	conv.Use(plugin.GitHubFlavored())
	conv.AddRules(
		md.Rule{
			// spec.md §4.6: tables "pass through (wrapped in blank lines)"
			// rather than being rewritten into GFM pipe-table syntax, so
			// this overrides plugin.GitHubFlavored()'s table conversion.
			Filter: []string{"table"},
			Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
				var buf bytes.Buffer
				for _, node := range selec.Nodes {
					_ = html.Render(&buf, node)
				}
				out := "\n\n" + buf.String() + "\n\n"
				return &out
			},
		},
		md.Rule{
			Filter: []string{"pre"},
			Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
				codeSel := selec.Find("code").First()
				code := content
				lang := ""
				if codeSel.Length() > 0 {
					code = codeSel.Text()
					if class, ok := codeSel.Attr("class"); ok {
						if m := languageClassRe.FindStringSubmatch(class); m != nil {
							lang = m[1]
						}
					}
				}
				code = strings.Trim(code, "\n")
				fenced := "\n\n```" + lang + "\n" + code + "\n```\n\n"
				return &fenced
			},
		},
		md.Rule{
			Filter: []string{"hr"},
			Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
				out := "\n\n---\n\n"
				return &out
			},
		},
	)

	markdown, err := conv.ConvertString(source)
	if err != nil {
		return Result{Markdown: fallbackTextExtract(source)}, nil
	}
	markdown = normalizeMarkdown(markdown)

	links, parseErr := extractLinkRefs(source)
	if parseErr != nil {
		return Result{Markdown: markdown}, nil
	}

	return Result{Markdown: markdown, Links: links}, nil
}

// normalizeMarkdown is the post-pass §4.6 describes: collapse runs of three
// or more newlines to two, and trim leading/trailing blank lines.
func normalizeMarkdown(s string) string {
	s = multiNewlineRe.ReplaceAllString(s, "\n\n")
	return strings.Trim(s, "\n") + "\n"
}

var multiNewlineRe = regexp.MustCompile(`\n{3,}`)
var tagRe = regexp.MustCompile(`<[^>]+>`)
var spaceRunRe = regexp.MustCompile(`[ \t]+`)

// fallbackTextExtract strips tags and collapses whitespace, the degraded
// path §4.6 names for a converter exception.
func fallbackTextExtract(htmlSrc string) string {
	stripped := tagRe.ReplaceAllString(htmlSrc, " ")
	stripped = spaceRunRe.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(stripped)
}

// extractLinkRefs walks the DOM collecting <a href> and <img src> targets,
// in document order, the way the pack's docs-crawler mdconvert does.
func extractLinkRefs(html string) ([]LinkRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var refs []LinkRef
	doc.Find("a[href], img[src]").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "a":
			href, ok := s.Attr("href")
			if !ok || href == "" {
				return
			}
			kind := LinkNav
			if len(href) > 0 && href[0] == '#' {
				kind = LinkAnchor
			}
			refs = append(refs, LinkRef{URL: href, Kind: kind})
		case "img":
			src, ok := s.Attr("src")
			if !ok || src == "" {
				return
			}
			refs = append(refs, LinkRef{URL: src, Kind: LinkImage})
		}
	})
	return refs, nil
}
