package render

import "strings"

const fence = "---"

// SplitFrontMatter separates a leading front-matter block (between --- lines)
// from the body. front includes both fences and any leading blank lines, so
// front+body always equals s. When there is no opening fence, or the closing
// fence is missing, ok is false and body is s unchanged.
func SplitFrontMatter(s string) (front, body string, ok bool) {
	start := len(s) - len(strings.TrimLeft(s, "\r\n"))
	if !strings.HasPrefix(s[start:], fence) {
		return "", s, false
	}
	firstNL := strings.IndexByte(s[start:], '\n')
	if firstNL < 0 || strings.TrimSpace(s[start:start+firstNL]) != fence {
		return "", s, false
	}
	pos := start + firstNL + 1
	for pos < len(s) {
		end := strings.IndexByte(s[pos:], '\n')
		line := s[pos:]
		next := len(s)
		if end >= 0 {
			line = s[pos : pos+end]
			next = pos + end + 1
		}
		if strings.TrimSpace(line) == fence {
			return s[:next], s[next:], true
		}
		if end < 0 {
			break
		}
		pos = next
	}
	return "", s, false
}

// StripFrontMatter returns s without its leading front-matter block. An
// unclosed block leaves s unmodified.
func StripFrontMatter(s string) string {
	_, body, _ := SplitFrontMatter(s)
	return body
}
