// Package textproc implements spec.md §4.7: Unicode text normalization
// and whitespace/encoding cleanup applied to extracted text before it
// reaches the Content Validator or Extraction Manager, plus the HTML→text
// extraction modes (flat and structure-preserving) the Text Processor
// offers on top of the HTML Processor's own stripped-DOM text. golang.org/
// x/text rides along as an indirect dependency in the teacher's go.mod
// without a direct caller; this package is its first real consumer.
package textproc

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/ncecere-raito/scrapeengine/internal/domadapter"
)

// Form selects a Unicode normalization form, mirroring norm.Form's four
// values under names spec.md uses.
type Form int

const (
	NFC Form = iota
	NFD
	NFKC
	NFKD
)

func (f Form) normForm() norm.Form {
	switch f {
	case NFD:
		return norm.NFD
	case NFKC:
		return norm.NFKC
	case NFKD:
		return norm.NFKD
	default:
		return norm.NFC
	}
}

// WhitespaceMode picks between §4.7's two whitespace-cleanup behaviors.
type WhitespaceMode int

const (
	// WhitespaceAggressive collapses every run of whitespace (including
	// newlines) to a single space.
	WhitespaceAggressive WhitespaceMode = iota
	// WhitespacePreserveParagraphs preserves at most a double newline
	// between paragraphs and trims each line's leading/trailing spaces.
	WhitespacePreserveParagraphs
)

// Options configures Normalize.
type Options struct {
	Form                Form
	CollapseWhitespace  bool
	WhitespaceMode      WhitespaceMode
	StripControlChars   bool
	StripZeroWidth      bool
	NormalizeLineBreaks bool
	TrimLines           bool
	MaxLength           int // 0 means unbounded
}

// DefaultOptions matches spec.md §4.7's default behavior: NFC, collapse
// whitespace aggressively, normalize line breaks, strip control and
// zero-width characters.
func DefaultOptions() Options {
	return Options{
		Form:                NFC,
		CollapseWhitespace:  true,
		WhitespaceMode:      WhitespaceAggressive,
		StripControlChars:   true,
		StripZeroWidth:      true,
		NormalizeLineBreaks: true,
		TrimLines:           true,
	}
}

var zeroWidthChars = map[rune]struct{}{
	'​': {}, // zero width space
	'‌': {}, // zero width non-joiner
	'‍': {}, // zero width joiner
	'﻿': {}, // byte order mark
	'⁠': {}, // word joiner
}

// bidiControlChars are the directional-override/isolate controls spec.md
// §4.7 names: U+202A–U+202E and U+2066–U+2069.
func isBidiControl(r rune) bool {
	return (r >= 0x202A && r <= 0x202E) || (r >= 0x2066 && r <= 0x2069)
}

var whitespaceRunRe = regexp.MustCompile(`[ \t\f\v]+`)
var blankLineRunRe = regexp.MustCompile(`\n{3,}`)
var crlfRe = regexp.MustCompile(`\r\n|\r`)

// Normalize applies the configured Unicode normalization form, line-break
// normalization, control/zero-width/bidi stripping, whitespace cleanup, and
// optional truncation, per spec.md §4.7's ordered pipeline.
func Normalize(text string, opts Options) string {
	normalized := opts.Form.normForm().String(text)

	if opts.NormalizeLineBreaks {
		normalized = crlfRe.ReplaceAllString(normalized, "\n")
	}

	if opts.StripControlChars || opts.StripZeroWidth {
		normalized = stripChars(normalized, opts.StripControlChars, opts.StripZeroWidth)
	}

	if opts.CollapseWhitespace {
		switch opts.WhitespaceMode {
		case WhitespacePreserveParagraphs:
			normalized = collapsePreservingParagraphs(normalized)
		default:
			normalized = whitespaceRunRe.ReplaceAllString(normalized, " ")
			normalized = strings.ReplaceAll(normalized, "\n", " ")
			normalized = whitespaceRunRe.ReplaceAllString(normalized, " ")
		}
	}

	if opts.TrimLines {
		lines := strings.Split(normalized, "\n")
		for i, l := range lines {
			lines[i] = strings.TrimSpace(l)
		}
		normalized = strings.Join(lines, "\n")
		normalized = blankLineRunRe.ReplaceAllString(normalized, "\n\n")
	}

	normalized = strings.TrimSpace(normalized)

	if opts.MaxLength > 0 && len(normalized) > opts.MaxLength {
		normalized = normalized[:opts.MaxLength]
	}

	return normalized
}

// collapsePreservingParagraphs implements the "preserve paragraphs" mode:
// at most one blank line survives between paragraphs, and each line is
// trimmed of leading/trailing spaces, but single newlines within a
// paragraph are kept rather than flattened to spaces.
func collapsePreservingParagraphs(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		l = whitespaceRunRe.ReplaceAllString(l, " ")
		lines[i] = strings.TrimSpace(l)
	}
	joined := strings.Join(lines, "\n")
	return blankLineRunRe.ReplaceAllString(joined, "\n\n")
}

func stripChars(s string, stripControl, stripZeroWidth bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if stripZeroWidth {
			if _, ok := zeroWidthChars[r]; ok {
				continue
			}
			if isBidiControl(r) {
				continue
			}
		}
		if stripControl && unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsNormalized reports whether text is already in the given form, useful
// for the Content Validator's cheap pre-check before a full re-normalize.
func IsNormalized(text string, form Form) bool {
	return form.normForm().IsNormalString(text)
}

// structuralBlockTags get blank lines injected around them in
// structure-preserving extraction mode.
var structuralBlockTags = map[string]struct{}{
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"p": {}, "div": {}, "section": {}, "article": {},
}

// ExtractText renders html as plain text in one of two modes, per spec.md
// §4.7: flat (concatenated textContent, whitespace-normalized) or
// structure-preserving (blank lines around block-level elements, "- "
// before list items, a line break before <br>/<hr>).
func ExtractText(html string, structurePreserving bool) (string, error) {
	doc, err := domadapter.Parse(html)
	if err != nil {
		return "", err
	}
	if !structurePreserving {
		return whitespaceRunRe.ReplaceAllString(strings.TrimSpace(doc.Root().TextContent()), " "), nil
	}

	var b strings.Builder
	walkStructural(doc.Root(), &b)
	out := blankLineRunRe.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out), nil
}

func walkStructural(n *domadapter.Node, b *strings.Builder) {
	if n.Len() == 0 {
		return
	}
	tag := n.TagName()

	if tag == "br" || tag == "hr" {
		b.WriteString("\n")
		return
	}

	_, isBlock := structuralBlockTags[tag]
	if isBlock {
		b.WriteString("\n\n")
	}
	if tag == "li" {
		b.WriteString("\n- ")
	}

	children := n.QuerySelectorAll("> *")
	if len(children) == 0 {
		b.WriteString(n.TextContent())
	} else {
		for _, c := range children {
			walkStructural(c, b)
		}
	}

	if isBlock {
		b.WriteString("\n\n")
	}
}
