// Package linkdiscovery implements spec.md §4.4: extracting candidate
// child pages (and AJAX/frame endpoints) from parsed markup, scoring them
// by priority, and filtering out visited/disallowed/too-deep links.
package linkdiscovery

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ncecere-raito/scrapeengine/internal/model"
	"github.com/ncecere-raito/scrapeengine/internal/urlnorm"
)

var positiveTextWords = []string{"read", "more", "view", "details", "article", "post", "page"}
var negativeTextWords = []string{"login", "signup", "register", "logout", "cart", "checkout"}
var digitRe = regexp.MustCompile(`\d+`)

// ajaxPatterns are the regexes §4.4 names for scanning inline script text.
var ajaxPatterns = []*regexp.Regexp{
	regexp.MustCompile(`fetch\(\s*["']([^"']+)["']`),
	regexp.MustCompile(`\.get\(\s*["']([^"']+)["']`),
	regexp.MustCompile(`\.post\(\s*["']([^"']+)["']`),
	regexp.MustCompile(`ajax\(\s*["']([^"']+)["']`),
	regexp.MustCompile(`url:\s*["']([^"']+)["']`),
	regexp.MustCompile(`endpoint:\s*["']([^"']+)["']`),
}

// Visited reports whether a normalized URL has already been seen; the
// Duplicate Detector satisfies this.
type Visited interface {
	Contains(url string) bool
}

// Options carries the crawl config and context DiscoverLinks needs.
type Options struct {
	Base            string
	CurrentDepth    int
	MaxDepth        int
	TaskDescription string
	Follow          urlnorm.FollowConfig
}

// DiscoverLinks extracts anchors from html, resolves/normalizes/filters
// them against base, and returns CrawlPages at depth+1, sorted by priority
// descending (stable), per spec.md §4.4.
func DiscoverLinks(html string, visited Visited, opts Options) ([]model.CrawlPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	childDepth := opts.CurrentDepth + 1
	if opts.MaxDepth > 0 && childDepth > opts.MaxDepth {
		return nil, nil
	}

	taskWords := significantWords(opts.TaskDescription)

	var pages []model.CrawlPage
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}

		normalized := urlnorm.Normalize(href, opts.Base)
		if _, dup := seen[normalized]; dup {
			return
		}
		if visited != nil && visited.Contains(normalized) {
			return
		}
		if !urlnorm.ShouldFollow(normalized, opts.Base, opts.Follow) {
			return
		}

		text := strings.TrimSpace(sel.Text())
		title := sel.AttrOr("title", "")

		priority := scorePriority(normalized, text, title, taskWords)

		seen[normalized] = struct{}{}
		pages = append(pages, model.CrawlPage{
			URL:          normalized,
			Depth:        childDepth,
			ParentURL:    opts.Base,
			DiscoveredAt: time.Now(),
			Status:       model.PagePending,
			Priority:     priority,
		})
	})

	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Priority > pages[j].Priority
	})

	return pages, nil
}

func scorePriority(link, text, title string, taskWords []string) int {
	priority := 0

	textLen := len(text)
	if textLen > 5 && textLen < 100 {
		priority++
	}

	lowerText := strings.ToLower(text + " " + title)
	for _, w := range positiveTextWords {
		if strings.Contains(lowerText, w) {
			priority += 2
			break
		}
	}
	for _, w := range negativeTextWords {
		if strings.Contains(lowerText, w) {
			priority -= 2
			break
		}
	}

	if digitRe.MatchString(link) {
		priority++
	}

	if len(taskWords) > 0 {
		lowerLink := strings.ToLower(link)
		segments := splitPathSegments(link)
		for _, w := range taskWords {
			for _, seg := range segments {
				if strings.Contains(seg, w) || strings.Contains(w, seg) {
					priority += 2
					break
				}
			}
			if strings.Contains(lowerLink, w) {
				priority++
			}
		}
	}

	return priority
}

// significantWords lowercases and keeps words longer than 3 chars, per
// spec.md §4.4's task-relevance rule.
func significantWords(task string) []string {
	if task == "" {
		return nil
	}
	fields := strings.Fields(strings.ToLower(task))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 3 {
			out = append(out, f)
		}
	}
	return out
}

// splitPathSegments splits a URL's path-like portion on /, -, _, . so task
// words can be matched against individual segments.
func splitPathSegments(link string) []string {
	path := link
	if u, err := url.Parse(link); err == nil {
		path = u.Path
	}
	lower := strings.ToLower(path)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return r == '/' || r == '-' || r == '_' || r == '.'
	})
}

// Endpoint is one discovered AJAX or frame target.
type Endpoint struct {
	URL string
}

// DiscoverAjaxEndpoints scans inline <script> text for the fetch/get/post/
// ajax/url/endpoint call patterns §4.4 names, dropping javascript:/#
// targets and de-duplicating after resolve+normalize.
func DiscoverAjaxEndpoints(html string, base string) ([]Endpoint, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []Endpoint

	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		text := sel.Text()
		for _, re := range ajaxPatterns {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				if len(m) < 2 {
					continue
				}
				candidate := strings.TrimSpace(m[1])
				if candidate == "" || strings.HasPrefix(candidate, "javascript:") || strings.HasPrefix(candidate, "#") {
					continue
				}
				normalized := urlnorm.Normalize(candidate, base)
				if _, dup := seen[normalized]; dup {
					continue
				}
				seen[normalized] = struct{}{}
				out = append(out, Endpoint{URL: normalized})
			}
		}
	})

	return out, nil
}

// DiscoverFrames resolves iframe/frame src attributes the same way
// DiscoverAjaxEndpoints resolves script-derived endpoints.
func DiscoverFrames(html string, base string) ([]Endpoint, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []Endpoint

	doc.Find("iframe[src], frame[src]").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok {
			return
		}
		src = strings.TrimSpace(src)
		if src == "" {
			return
		}
		normalized := urlnorm.Normalize(src, base)
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		out = append(out, Endpoint{URL: normalized})
	})

	return out, nil
}
