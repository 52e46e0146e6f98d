package chat

import (
	"strings"

	"github.com/esbmc/esbmc-ai/internal/llm"
)

// Canonical template variable names the repair loop supplies. Callers may add
// their own variables freely, but these four are reserved.
const (
	VarSourceCode     = "source_code"
	VarVerifierOutput = "verifier_output"
	VarErrorLine      = "error_line"
	VarErrorType      = "error_type"
)

// MessageStack is the ordered conversation state sent to a model. System
// messages form a contiguous prefix; exchanged turns follow.
type MessageStack struct {
	msgs      []llm.ChatMessage
	systemLen int
}

// NewMessageStack builds a stack seeded with the given system messages.
func NewMessageStack(system ...string) *MessageStack {
	s := &MessageStack{}
	for _, content := range system {
		s.PushSystem(content)
	}
	return s
}

// Push appends a non-system turn.
func (s *MessageStack) Push(role llm.Role, content string) {
	if role == llm.RoleSystem {
		s.PushSystem(content)
		return
	}
	s.msgs = append(s.msgs, llm.ChatMessage{Role: role, Content: content})
}

// PushSystem inserts a system message at the end of the system prefix,
// keeping the prefix contiguous even when turns already exist.
func (s *MessageStack) PushSystem(content string) {
	msg := llm.ChatMessage{Role: llm.RoleSystem, Content: content}
	s.msgs = append(s.msgs, llm.ChatMessage{})
	copy(s.msgs[s.systemLen+1:], s.msgs[s.systemLen:])
	s.msgs[s.systemLen] = msg
	s.systemLen++
}

// Render returns a snapshot of the stack safe to hand to a provider.
func (s *MessageStack) Render() []llm.ChatMessage {
	out := make([]llm.ChatMessage, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Len returns the total number of messages.
func (s *MessageStack) Len() int {
	return len(s.msgs)
}

// SystemLen returns the length of the system prefix.
func (s *MessageStack) SystemLen() int {
	return s.systemLen
}

// DropOldestTurns removes the n oldest non-system turns. Used by the session
// after deciding how much history must go to fit the context window.
func (s *MessageStack) DropOldestTurns(n int) {
	if n <= 0 {
		return
	}
	avail := len(s.msgs) - s.systemLen
	if n > avail {
		n = avail
	}
	s.msgs = append(s.msgs[:s.systemLen], s.msgs[s.systemLen+n:]...)
}

// ApplyTemplateValue substitutes every $name occurrence across all stored
// messages. $$ escapes a literal dollar; unknown names are left untouched.
// Substitution is permanent: calling twice with overlapping names on the same
// stack is a caller bug, so each stack is templated exactly once.
func (s *MessageStack) ApplyTemplateValue(values map[string]string) {
	for i := range s.msgs {
		s.msgs[i].Content = ExpandTemplate(s.msgs[i].Content, values)
	}
}

// ExpandTemplate resolves $name and $$ tokens in a single left-to-right pass.
// Substituted values are never rescanned, which rules out double-substitution.
func ExpandTemplate(text string, values map[string]string) string {
	if !strings.ContainsRune(text, '$') {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); {
		c := text[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(text) && text[i+1] == '$' {
			b.WriteByte('$')
			i += 2
			continue
		}

		j := i + 1
		for j < len(text) && isNameByte(text[j]) {
			j++
		}
		if j == i+1 {
			// Bare dollar with no name after it.
			b.WriteByte('$')
			i++
			continue
		}

		name := text[i+1 : j]
		if v, ok := values[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(text[i:j])
		}
		i = j
	}

	return b.String()
}

func isNameByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
