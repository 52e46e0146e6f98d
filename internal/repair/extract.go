package repair

import "strings"

// ExtractSource pulls the candidate source buffer out of a model reply. The
// first fenced code block wins when several are present; a reply with no
// fence at all is used whole when it plausibly is source. The language tag on
// the fence line is discarded. ok is false when nothing usable remains.
func ExtractSource(reply string) (candidate string, ok bool) {
	idx := strings.Index(reply, "```")
	if idx == -1 {
		trimmed := strings.TrimSpace(reply)
		if trimmed == "" || !looksLikeSource(trimmed) {
			return "", false
		}
		return trimmed, true
	}

	rest := reply[idx+3:]
	nl := strings.IndexByte(rest, '\n')
	if nl == -1 {
		return "", false
	}
	rest = rest[nl+1:]

	if end := strings.Index(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	rest = strings.TrimRight(rest, "\n")
	if strings.TrimSpace(rest) == "" {
		return "", false
	}
	return rest, true
}

// looksLikeSource is a cheap plausibility filter for unfenced replies: prose
// apologies and refusals rarely contain statement or block syntax.
func looksLikeSource(s string) bool {
	return strings.ContainsAny(s, ";{}") || strings.Contains(s, "#include")
}
