// Package extract recovers named sections from loosely formatted model output.
//
// Vision models are asked to answer with a numbered template but rarely follow it
// exactly: headers may be bold, prefixed with "#", missing their numbers or
// missing altogether. Extract tries a fixed cascade of strategies, from the most
// precise (numbered headers) to the most permissive (a window around the first
// keyword occurrence), and returns the first non-empty result.
package extract

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Strategy locates the section introduced by one of the start keywords.
// Keywords are matched case-insensitively. An empty result means no match.
type Strategy func(text string, start, end []string) string

// Strategies lists the cascade in priority order.
var Strategies = []Strategy{Numbered, Header, LineScan, Proximity}

const (
	proximityBefore = 100
	proximityAfter  = 200
)

// maxPasses bounds the search for a stable result in Extract.
const maxPasses = 4

// Extract returns the content of the section introduced by any of the start
// keywords. end lists keywords that terminate the section for the strategies
// that need one; it may be nil. The result is empty only when no strategy finds
// content, which in practice means no start keyword occurs in text.
//
// The result is stable: extracting it again with the same keywords yields the
// same string or "".
func Extract(text string, start, end []string) string {
	out := cascade(text, start, end)
	for range maxPasses {
		if out == "" {
			return ""
		}
		again := cascade(out, start, end)
		if again == "" || again == out {
			return out
		}
		out = again
	}
	return ""
}

func cascade(text string, start, end []string) string {
	if strings.TrimSpace(text) == "" || len(start) == 0 {
		return ""
	}
	for _, s := range Strategies {
		if out := s(text, start, end); out != "" {
			return out
		}
	}
	return ""
}

var (
	// A line ending the current section: another numbered item, a bold
	// header line or a markdown heading.
	nextHeader = regexp.MustCompile(`\n[ \t]*(?:#{1,6}[ \t]*)?(?:\*\*?|__)?[ \t]*\d{1,2}[.)](?:[ \t]|\*)|\n[ \t]*\*\*[^*\n]+\*\*|\n[ \t]*#`)

	leadingMarks  = regexp.MustCompile(`^(?:[-•*_>#]+[ \t]*)+`)
	trailingMarks = regexp.MustCompile(`[*_\s]+$`)
	markupOnly    = regexp.MustCompile(`^[\s#*_>•\-\d.)]*$`)

	numberedLine = regexp.MustCompile(`^\d+[.)]`)
	emphasisLine = regexp.MustCompile(`^\*.*\*$`)

	patternCache sync.Map
)

// Numbered matches template items such as "**2. Severity Level:** High" or
// "3. **AFFECTED COMPONENTS**: door panel". The keyword must appear in the item
// header, before its colon if it has one. Content runs to the next header line.
func Numbered(text string, start, _ []string) string {
	for _, kw := range keywords(start) {
		re := cached("numbered", kw, func(q string) string {
			return `(?i)(?:^|\n)[ \t]*(?:#{1,6}[ \t]*)?(?:\*\*?|__)?[ \t]*\d{1,2}[.)][^\n:]*?` + q + `(?:[^\n:]*:)?`
		})
		for _, loc := range re.FindAllStringIndex(text, -1) {
			body := text[loc[1]:]
			if cut := nextHeader.FindStringIndex(body); cut != nil {
				body = body[:cut[0]]
			}
			if out := clean(body); out != "" {
				return out
			}
		}
	}
	return ""
}

// Header matches an emphasized header ("**Safety Concerns**") or a line that
// starts with the keyword and ends its header with a colon. Content runs to the
// first end keyword or to the end of the text.
func Header(text string, start, end []string) string {
	ends := keywords(end)
	for _, kw := range keywords(start) {
		re := cached("header", kw, func(q string) string {
			return `(?i)\*\*[^*\n]*?` + q + `[^*\n]*\*\*[ \t]*:?|(?:^|\n)[ \t]*(?:[-•*][ \t]+)?(?:#{1,6}[ \t]*)?` + q + `[^\n:]*:`
		})
		for _, loc := range re.FindAllStringIndex(text, -1) {
			body := cutAtKeyword(text[loc[1]:], ends)
			if out := clean(body); out != "" {
				return out
			}
		}
	}
	return ""
}

// LineScan walks the text line by line. The first line containing a start
// keyword opens the section; following lines are collected until a line holding
// an end keyword or another header. The opening line contributes what follows
// its header, or the whole line when the keyword is not used as a header.
func LineScan(text string, start, end []string) string {
	starts := keywords(start)
	ends := keywords(end)

	var parts []string
	open := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lower := asciiLower(trimmed)

		if !open {
			for _, kw := range starts {
				if i := strings.Index(lower, kw); i >= 0 {
					open = true
					rest := trimmed
					if asHeader(trimmed, i+len(kw)) {
						rest = afterHeader(trimmed[i+len(kw):])
					}
					if c := clean(rest); c != "" {
						parts = append(parts, c)
					}
					break
				}
			}
			continue
		}

		if containsAny(lower, ends) || isHeaderLine(trimmed) {
			break
		}
		if c := clean(trimmed); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Proximity is the last resort: it returns the text surrounding the first raw
// occurrence of a start keyword, minus the keyword header itself when the
// keyword introduces one.
func Proximity(text string, start, _ []string) string {
	lower := asciiLower(text)
	for _, kw := range keywords(start) {
		i := strings.Index(lower, kw)
		if i < 0 {
			continue
		}
		from := runeFloor(text, max(0, i-proximityBefore))
		to := runeFloor(text, min(len(text), i+proximityAfter))
		if to < i+len(kw) {
			to = i + len(kw)
		}

		window := text[from:to]
		k := i - from
		lineStart := strings.LastIndexByte(window[:k], '\n') + 1
		line := window[lineStart:]
		if nl := strings.IndexByte(line, '\n'); nl >= 0 {
			line = line[:nl]
		}
		if !asHeader(strings.TrimSpace(line), k-lineStart+len(kw)-leadingSpace(line)) {
			if out := clean(window); out != "" {
				return out
			}
			continue
		}
		tail := window[k+len(kw):]
		line, rest, found := strings.Cut(tail, "\n")
		tail = afterHeader(line)
		if found {
			tail += "\n" + rest
		}

		if out := clean(window[:lineStart] + tail); out != "" {
			return out
		}
	}
	return ""
}

// asHeader reports whether the keyword ending at offset kwEnd of the trimmed
// line introduces a header: a colon follows it on the line, or the line is
// numbered, bold or a markdown heading.
func asHeader(line string, kwEnd int) bool {
	if kwEnd >= 0 && kwEnd <= len(line) && strings.Contains(line[kwEnd:], ":") {
		return true
	}
	return numberedLine.MatchString(line) || strings.HasPrefix(line, "**") || strings.HasPrefix(line, "__") || strings.HasPrefix(line, "#")
}

func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
}

// afterHeader drops the remainder of a header ("Level (Low/High):") that sits
// between a keyword and its colon.
func afterHeader(s string) string {
	if _, after, ok := strings.Cut(s, ":"); ok {
		return after
	}
	return s
}

// cutAtKeyword truncates body before the earliest end keyword that starts a
// word. When only markup precedes the keyword on its line, the whole line goes.
func cutAtKeyword(body string, ends []string) string {
	if len(ends) == 0 {
		return body
	}
	lower := asciiLower(body)
	cut := -1
	for _, kw := range ends {
		if i := indexWordStart(lower, kw); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	if cut < 0 {
		return body
	}
	body = body[:cut]
	if nl := strings.LastIndexByte(body, '\n'); nl >= 0 && markupOnly.MatchString(body[nl+1:]) {
		body = body[:nl]
	}
	return body
}

func indexWordStart(s, kw string) int {
	offset := 0
	for {
		i := strings.Index(s[offset:], kw)
		if i < 0 {
			return -1
		}
		i += offset
		if i == 0 || !isWordByte(s[i-1]) {
			return i
		}
		offset = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func isHeaderLine(line string) bool {
	return numberedLine.MatchString(line) || emphasisLine.MatchString(line) || strings.HasPrefix(line, "#")
}

func containsAny(s string, kws []string) bool {
	for _, kw := range kws {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	s = leadingMarks.ReplaceAllString(s, "")
	s = trailingMarks.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func keywords(kws []string) []string {
	out := make([]string, 0, len(kws))
	for _, kw := range kws {
		kw = asciiLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// asciiLower lowercases ASCII letters only, so byte offsets stay valid
// against the original string.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func runeFloor(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func cached(kind, kw string, build func(quoted string) string) *regexp.Regexp {
	key := kind + "\x00" + kw
	if re, ok := patternCache.Load(key); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(build(regexp.QuoteMeta(kw)))
	patternCache.Store(key, re)
	return re
}
