package telegram

import (
	"html"
	"sort"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// messageHTML rebuilds the HTML source of a received message. Telegram hands
// back entity-stripped plain text, so editing a message requires re-escaping
// the text and re-applying the markup recorded in its entities. Entity
// offsets are in UTF-16 code units.
func messageHTML(msg *tgbotapi.Message) string {
	if msg == nil {
		return ""
	}
	if len(msg.Entities) == 0 {
		return html.EscapeString(msg.Text)
	}

	type span struct {
		start, end        int
		openTag, closeTag string
	}
	u16 := utf16.Encode([]rune(msg.Text))
	spans := make([]span, 0, len(msg.Entities))
	for _, e := range msg.Entities {
		var openTag, closeTag string
		switch e.Type {
		case "bold":
			openTag, closeTag = "<b>", "</b>"
		case "italic":
			openTag, closeTag = "<i>", "</i>"
		case "code":
			openTag, closeTag = "<code>", "</code>"
		case "text_link":
			openTag, closeTag = `<a href="`+html.EscapeString(e.URL)+`">`, "</a>"
		default:
			continue
		}
		end := e.Offset + e.Length
		if e.Offset < 0 || end > len(u16) || e.Offset >= end {
			continue
		}
		spans = append(spans, span{start: e.Offset, end: end, openTag: openTag, closeTag: closeTag})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	pos := 0
	for _, sp := range spans {
		if sp.start < pos {
			continue // nested or overlapping entity, keep the outer one
		}
		b.WriteString(html.EscapeString(string(utf16.Decode(u16[pos:sp.start]))))
		b.WriteString(sp.openTag)
		b.WriteString(html.EscapeString(string(utf16.Decode(u16[sp.start:sp.end]))))
		b.WriteString(sp.closeTag)
		pos = sp.end
	}
	b.WriteString(html.EscapeString(string(utf16.Decode(u16[pos:]))))
	return b.String()
}
