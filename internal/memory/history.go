package memory

import (
	"strings"

	"omnichat/internal/gemini"
	"omnichat/internal/store"
)

// ToContents converts stored history into Gemini request contents.
// Past attachments are not re-sent; their text context carries forward.
func ToContents(msgs []store.Message) []gemini.Content {
	contents := make([]gemini.Content, 0, len(msgs))
	for _, msg := range msgs {
		role := gemini.RoleUser
		if msg.Role == store.RoleModel {
			role = gemini.RoleModel
		}
		contents = append(contents, gemini.TextContent(role, msg.Content))
	}
	return contents
}

// IsSummary reports whether a stored turn is a compaction summary
// rather than something the user typed.
func IsSummary(content string) bool {
	return strings.HasPrefix(content, summaryPrefix)
}

// Preview shortens text for session listings: at most limit runes,
// cut back to the last sentence end when one lands past the midpoint.
func Preview(text string, limit int) string {
	if limit <= 0 {
		limit = 500
	}
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	window := string(runes[:limit])
	cut := -1
	for _, sep := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if idx := strings.LastIndex(window, sep); idx > cut {
			cut = idx
		}
	}
	if cut > limit/2 {
		return strings.TrimSpace(window[:cut+1])
	}
	return strings.TrimSpace(window) + "..."
}
