// Package htmlproc implements spec.md §4.5: noise stripping, main-content
// detection, and tag/attribute sanitization over a parsed DOM. Generalizes
// the inline goquery selector logic the teacher repeats in scraper.go and
// rod_scraper.go into the single pipeline stage spec.md names.
package htmlproc

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ncecere-raito/scrapeengine/internal/domadapter"
)

const defaultMaxMarkupLength = 10 * 1024 * 1024 // 10 MiB

const mainContentMinLen = 200

// noiseSelectors are removed outright before main-content detection, per
// spec.md §4.5.
var noiseSelectors = []string{
	".ad", ".ads", ".advertisement", "[class*=ad-]", "[id*=ad-]",
	".social", ".social-share", ".share-buttons",
	"nav", "footer", "aside", ".sidebar", "#sidebar",
	".cookie-banner", ".cookie-consent", "#cookie-banner",
	"[role=banner]", "[role=navigation]", "[role=complementary]", "[role=contentinfo]",
}

// mainContentCandidates are tried in order; the first whose trimmed,
// whitespace-collapsed textContent is at least mainContentMinLen chars wins.
var mainContentCandidates = []string{
	"main", "article", "[role=main]", ".content", "#content",
	".post", ".article", ".entry-content", ".post-content",
	".article-content", ".main-content", ".page-content",
	"section", ".body-content",
}

var defaultSafeTags = map[string]struct{}{
	"a": {}, "abbr": {}, "b": {}, "blockquote": {}, "br": {}, "code": {},
	"div": {}, "em": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"hr": {}, "i": {}, "li": {}, "ol": {}, "p": {}, "pre": {}, "span": {},
	"strong": {}, "sub": {}, "sup": {}, "table": {}, "tbody": {}, "td": {},
	"th": {}, "thead": {}, "tr": {}, "u": {}, "ul": {},
	"img": {}, "figure": {}, "figcaption": {},
}

var defaultSafeAttrs = map[string]struct{}{
	"href": {}, "src": {}, "alt": {}, "title": {}, "class": {}, "id": {},
	"colspan": {}, "rowspan": {}, "lang": {},
}

var allowedSchemes = []string{"http://", "https://", "mailto:", "tel:"}

var whitespaceRunRe = regexp.MustCompile(`[ \t\f\v]+`)
var blankLineRunRe = regexp.MustCompile(`\n{3,}`)

// Options configures one Process call.
type Options struct {
	MaxMarkupLength int // 0 uses defaultMaxMarkupLength
	RemoveScripts   bool
	RemoveStyles    bool
	RemoveComments  bool
	ExtraSafeTags   []string
	ExtraSafeAttrs  []string
}

// Result is the HTML Processor's output: the fields the Processing
// Pipeline folds into model.ProcessedContent, plus a warning when the
// input was truncated.
type Result struct {
	RawMarkup      string
	CleanMarkup    string
	MainContent    string
	HasMainContent bool
	Text           string
	Truncated      bool
	OriginalLen    int
	CleanLen       int
	MainLen        int
}

// Process runs the full §4.5 pipeline: optional truncation, noise removal,
// main-content detection, sanitization, and text extraction.
func Process(html string, opts Options) (Result, error) {
	res := Result{RawMarkup: html, OriginalLen: len(html)}

	maxLen := opts.MaxMarkupLength
	if maxLen <= 0 {
		maxLen = defaultMaxMarkupLength
	}
	if len(html) > maxLen {
		html = html[:maxLen]
		res.Truncated = true
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return res, err
	}

	if opts.RemoveScripts {
		doc.Find("script").Remove()
	}
	if opts.RemoveStyles {
		doc.Find("style").Remove()
	}
	if opts.RemoveComments {
		removeComments(doc.Selection)
	}

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	cleanHTML, _ := doc.Html()
	res.CleanMarkup = cleanHTML
	res.CleanLen = len(cleanHTML)

	mainSel, found := findMainContent(doc)
	if found {
		mainHTML, _ := goquery.OuterHtml(mainSel)
		res.MainContent = mainHTML
		res.HasMainContent = true
		res.MainLen = len(stripAndCollapse(mainSel.Text()))
	}

	safeTags := mergeSet(defaultSafeTags, opts.ExtraSafeTags)
	safeAttrs := mergeSet(defaultSafeAttrs, opts.ExtraSafeAttrs)
	sanitize(doc.Selection, safeTags, safeAttrs)
	sanitizedHTML, _ := doc.Html()
	res.CleanMarkup = sanitizedHTML

	textDoc, err := goquery.NewDocumentFromReader(strings.NewReader(cleanHTML))
	if err == nil {
		textDoc.Find("script, style").Remove()
		res.Text = stripAndCollapse(textDoc.Text())
	}

	return res, nil
}

// ParseDOM exposes a domadapter.Document for callers that need
// adapter-level access rather than htmlproc's higher-level Result. No
// package in this module calls it; the Link Discoverer parses with goquery
// directly.
func ParseDOM(html string) (*domadapter.Document, error) {
	return domadapter.Parse(html)
}

func findMainContent(doc *goquery.Document) (*goquery.Selection, bool) {
	for _, candidate := range mainContentCandidates {
		sel := doc.Find(candidate).First()
		if sel.Length() == 0 {
			continue
		}
		text := stripAndCollapse(sel.Text())
		if len(text) >= mainContentMinLen {
			return sel, true
		}
	}
	body := doc.Find("body").First()
	if body.Length() > 0 {
		return body, true
	}
	return nil, false
}

func stripAndCollapse(s string) string {
	s = strings.TrimSpace(s)
	s = whitespaceRunRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = blankLineRunRe.ReplaceAllString(s, "\n\n")
	return s
}

func removeComments(sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#comment" {
			s.Remove()
			return
		}
		removeComments(s)
	})
}

func mergeSet(base map[string]struct{}, extra []string) map[string]struct{} {
	out := make(map[string]struct{}, len(base)+len(extra))
	for k := range base {
		out[k] = struct{}{}
	}
	for _, k := range extra {
		out[strings.ToLower(k)] = struct{}{}
	}
	return out
}

// sanitize walks the tree removing disallowed tags (their children are
// promoted to the parent) and stripping disallowed attributes, with
// scheme filtering on href/src.
func sanitize(sel *goquery.Selection, safeTags, safeAttrs map[string]struct{}) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		if strings.HasPrefix(name, "#") {
			return
		}
		sanitize(s, safeTags, safeAttrs)

		if _, ok := safeTags[name]; !ok {
			s.ReplaceWithSelection(s.Contents())
			return
		}

		for _, attr := range attrNames(s) {
			lower := strings.ToLower(attr)
			if _, ok := safeAttrs[lower]; !ok {
				s.RemoveAttr(attr)
				continue
			}
			if lower == "href" || lower == "src" {
				val, _ := s.Attr(attr)
				if !schemeAllowed(val, lower == "src") {
					s.RemoveAttr(attr)
				}
			}
		}
	})
}

func attrNames(s *goquery.Selection) []string {
	if s.Length() == 0 || s.Nodes[0].Attr == nil {
		return nil
	}
	names := make([]string, 0, len(s.Nodes[0].Attr))
	for _, a := range s.Nodes[0].Attr {
		names = append(names, a.Key)
	}
	return names
}

func schemeAllowed(val string, allowData bool) bool {
	val = strings.TrimSpace(val)
	if val == "" {
		return true
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") || strings.HasPrefix(val, "?") {
		return true
	}
	if allowData && strings.HasPrefix(val, "data:image/") {
		return true
	}
	for _, scheme := range allowedSchemes {
		if strings.HasPrefix(strings.ToLower(val), scheme) {
			return true
		}
	}
	// Relative paths with no scheme separator are allowed; only a
	// disallowed explicit scheme (e.g. javascript:) is rejected.
	if !strings.Contains(val, ":") {
		return true
	}
	return false
}
