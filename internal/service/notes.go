package service

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const maxNotesRunes = 1000

var notesPolicy = bluemonday.StrictPolicy()

// sanitizeNotes 去掉用户备注中的所有标记，只保留纯文本并限制长度。
func sanitizeNotes(raw string) string {
	cleaned := strings.TrimSpace(html.UnescapeString(notesPolicy.Sanitize(raw)))
	if utf8.RuneCountInString(cleaned) > maxNotesRunes {
		cleaned = string([]rune(cleaned)[:maxNotesRunes])
	}
	return cleaned
}
