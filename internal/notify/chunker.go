// Package notify splits reports into transport-sized chunks and delivers
// them in order over a messaging transport.
package notify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
)

const (
	// MaxMessageLength is the transport's hard per-message ceiling.
	MaxMessageLength = 4096
	// DefaultChunkLimit is the escaped-body budget per chunk.
	DefaultChunkLimit = 3500
	// MaxWrapOverhead bounds the title and part header added by Wrap.
	MaxWrapOverhead = 64
	// MinChunkLimit keeps rune-level cuts making progress.
	MinChunkLimit = 16
)

var (
	paragraphSep = regexp.MustCompile(`\n[ \t]*\n\s*`)
	tokenRe      = regexp.MustCompile(`\S+\s*|\s+`)
	htmlEscaper  = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	// formatTag matches an escaped tag from Telegram's HTML subset.
	formatTag    = regexp.MustCompile(`(?i)&lt;(/?(?:b|strong|i|em|u|ins|s|strike|del|code|pre|a|span|tg-spoiler))((?:\s+[a-z-]+="[^"<>]*")*\s*)&gt;`)
)

// EscapeHTML escapes the characters Telegram's HTML mode reserves.
func EscapeHTML(s string) string { return htmlEscaper.Replace(s) }

// measure is the length of s once escaped, in UTF-16 code units.
func measure(s string) int {
	n := 0
	for _, r := range s {
		n += runeCost(r)
	}
	return n
}

func runeCost(r rune) int {
	switch r {
	case '&':
		return 5
	case '<', '>':
		return 4
	default:
		return utf16Len(r)
	}
}

// utf16Len is 2 for runes outside the Basic Multilingual Plane.
func utf16Len(r rune) int {
	if r > 0xFFFF {
		return 2
	}
	return 1
}

// Chunk splits text into bodies whose escaped length stays below limit.
// Paragraphs (separated by blank lines) are packed greedily; a paragraph
// that alone reaches the limit is split on whitespace, and a single word
// that reaches it is cut between runes. Separators stay attached to the
// paragraph before them, so Reassemble(Chunk(t, n)) == t.
func Chunk(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit < MinChunkLimit {
		limit = MinChunkLimit
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	seal := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, seg := range segments(text) {
		for _, piece := range fit(seg, limit) {
			n := measure(piece)
			if curLen > 0 && curLen+n >= limit {
				seal()
			}
			cur.WriteString(piece)
			curLen += n
		}
	}
	seal()
	return chunks
}

// Split chunks text and numbers the pieces for delivery.
func Split(text string, limit int) []models.MessageChunk {
	bodies := Chunk(text, limit)
	out := make([]models.MessageChunk, len(bodies))
	for i, b := range bodies {
		out[i] = models.MessageChunk{Index: i + 1, Total: len(bodies), Body: b}
	}
	return out
}

// Reassemble concatenates chunk bodies in order.
func Reassemble(chunks []string) string {
	return strings.Join(chunks, "")
}

// segments splits text into paragraphs, each keeping its trailing
// separator.
func segments(text string) []string {
	var out []string
	start := 0
	for _, loc := range paragraphSep.FindAllStringIndex(text, -1) {
		out = append(out, text[start:loc[1]])
		start = loc[1]
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// fit returns seg unchanged when it is under limit, otherwise pieces of it
// that each are.
func fit(seg string, limit int) []string {
	if measure(seg) < limit {
		return []string{seg}
	}

	var (
		out    []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, tok := range tokenRe.FindAllString(seg, -1) {
		n := measure(tok)
		if n >= limit {
			flush()
			out = append(out, cutRunes(tok, limit)...)
			continue
		}
		if curLen+n >= limit {
			flush()
		}
		cur.WriteString(tok)
		curLen += n
	}
	flush()
	return out
}

// cutRunes slices s at rune boundaries into pieces under limit.
func cutRunes(s string, limit int) []string {
	var out []string
	start, n := 0, 0
	for i, r := range s {
		c := runeCost(r)
		if n+c >= limit {
			out = append(out, s[start:i])
			start, n = i, 0
		}
		n += c
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// ReportTitle heads the first message of a report.
const ReportTitle = "🚀 <b>STRATEGIC ALPHA REPORT</b>"

// header is the title and part marker placed before chunk i of n.
func header(i, n int, rich bool) string {
	var sb strings.Builder
	if i == 1 {
		if rich {
			sb.WriteString(ReportTitle)
		} else {
			sb.WriteString("🚀 STRATEGIC ALPHA REPORT")
		}
		sb.WriteString("\n\n")
	}
	if n > 1 {
		fmt.Fprintf(&sb, "[PART %d/%d]\n", i, n)
	}
	return sb.String()
}

// Wrap renders chunk i of n for the HTML parse mode.
func Wrap(body string, i, n int) string {
	return header(i, n, true) + EscapeHTML(body)
}

// WrapPlain renders chunk i of n as plain text with markup stripped.
func WrapPlain(body string, i, n int) string {
	return header(i, n, false) + StripMarkup(body)
}

var markdownEmphasis = strings.NewReplacer("**", "", "__", "", "`", "")

// NormalizeNewlines rewrites CRLF and lone CR line endings as LF.
func NormalizeNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}

// StripMarkup removes Telegram formatting tags and markdown emphasis.
// Any other '<', '>' or '&' is kept as literal text. Line endings come
// back as LF, and a newline directly after an opening <pre> tag is
// dropped, as HTML parsing does.
func StripMarkup(s string) string {
	s = NormalizeNewlines(s)
	text := s
	marked := formatTag.ReplaceAllString(EscapeHTML(s), "<$1$2>")
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(marked)); err == nil {
		text = doc.Text()
	}
	return markdownEmphasis.Replace(text)
}

// WrappedLength is the length the transport sees for a wrapped message,
// in UTF-16 code units.
func WrappedLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16Len(r)
	}
	return n
}
