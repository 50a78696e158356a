// Package urlnorm implements spec.md §4.1: URL canonicalization, same-domain
// comparison, and the ordered should-follow policy crawl runs use to decide
// whether a discovered link is worth enqueueing.
package urlnorm

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var blockedExtensions = []string{
	".pdf", ".zip", ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg",
	".css", ".js", ".xml",
}

var blockedPathSubstrings = []string{
	"/api/", "/ajax/", "/json/", "/xml/", "/rss/", "/feed/",
}

// Normalize canonicalizes url relative to an optional base, per spec.md
// §4.1 / §8 scenario 1. On any parse failure it returns the input
// verbatim; it never panics.
func Normalize(raw string, base string) string {
	u, err := parse(raw, base)
	if err != nil {
		return raw
	}

	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)

	if u.RawQuery != "" {
		u.RawQuery = sortQuery(u.RawQuery)
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}

func parse(raw, base string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() && base != "" {
		b, berr := url.Parse(base)
		if berr != nil {
			return nil, berr
		}
		u = b.ResolveReference(u)
	}
	return u, nil
}

func sortQuery(raw string) string {
	pairs := strings.Split(raw, "&")
	type kv struct{ k, v string }
	decoded := make([]kv, 0, len(pairs))
	for _, p := range pairs {
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, "=", 2)
		k := parts[0]
		v := ""
		if len(parts) == 2 {
			v = parts[1]
		}
		decoded = append(decoded, kv{k, v})
	}
	sort.Slice(decoded, func(i, j int) bool {
		if decoded[i].k != decoded[j].k {
			return decoded[i].k < decoded[j].k
		}
		return decoded[i].v < decoded[j].v
	})
	parts := make([]string, 0, len(decoded))
	for _, d := range decoded {
		if d.v == "" {
			parts = append(parts, d.k)
		} else {
			parts = append(parts, d.k+"="+d.v)
		}
	}
	return strings.Join(parts, "&")
}

// registrableHost strips a leading "www." so SameDomain can compare hosts
// the way a user would expect example.com and www.example.com to match.
func registrableHost(host string) string {
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}

// SameDomain reports whether the normalized registrable hosts of a and b
// match, ignoring a "www." prefix on either side.
func SameDomain(a, b string) bool {
	ua, err := url.Parse(Normalize(a, ""))
	if err != nil {
		return false
	}
	ub, err := url.Parse(Normalize(b, ""))
	if err != nil {
		return false
	}
	return registrableHost(ua.Hostname()) == registrableHost(ub.Hostname())
}

// FollowConfig carries the subset of CrawlConfig ShouldFollow consults.
type FollowConfig struct {
	FollowExternalLinks bool
	AllowedDomains      []string
	BlockedPatterns     []string
}

// ShouldFollow applies spec.md §4.1's ordered filter chain: blocked regex
// patterns, external-link policy, allowed-domain whitelist, blocked file
// extensions, then blocked path substrings. A link that does not parse is
// rejected; an invalid blocked-pattern regex is skipped rather than
// rejecting the link.
func ShouldFollow(link string, base string, cfg FollowConfig) bool {
	u, err := url.Parse(Normalize(link, base))
	if err != nil {
		return false
	}

	for _, pattern := range cfg.BlockedPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue // invalid regex is ignored, per §4.1 step (1)
		}
		if re.MatchString(u.String()) {
			return false
		}
	}

	if !cfg.FollowExternalLinks && base != "" {
		if !SameDomain(u.String(), base) {
			return false
		}
	}

	if len(cfg.AllowedDomains) > 0 {
		host := registrableHost(u.Hostname())
		allowed := false
		for _, d := range cfg.AllowedDomains {
			d = registrableHost(d)
			if host == d || strings.HasSuffix(host, "."+d) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	lowerPath := strings.ToLower(u.Path)
	for _, ext := range blockedExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return false
		}
	}

	for _, sub := range blockedPathSubstrings {
		if strings.Contains(lowerPath, sub) {
			return false
		}
	}

	return true
}
