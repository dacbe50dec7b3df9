// File: internal/usecase/format.go
package usecase

import (
	"html"
	"regexp"
	"strings"

	"notion-telegram-relay/internal/domain/model"
)

const statusLinePrefix = "🔹 <b>Status:</b> "

const descriptionLimit = 200 // runes

// The Reflected step substitutes only this line in an already-sent message.
var statusLineRe = regexp.MustCompile(`(?m)^🔹 (?:<b>)?Status:(?:</b>)? .*$`)

// RenderNotification renders a PageRecord as Telegram HTML with emoji-tagged
// sections. Empty fields are omitted; user content is escaped.
func RenderNotification(rec *model.PageRecord, eventType model.EventType) string {
	var b strings.Builder

	switch eventType {
	case model.EventCreated:
		b.WriteString("🆕 <b>NEW TASK</b>\n")
	case model.EventPropertiesUpdated:
		b.WriteString("📝 <b>TASK UPDATE</b>\n")
	default:
		b.WriteString("🔄 <b>TASK CHANGE</b>\n")
	}
	b.WriteString("📝 <b>Title:</b> " + html.EscapeString(rec.Title) + "\n")

	if rec.Status != "" {
		b.WriteString(statusLinePrefix + html.EscapeString(rec.Status) + "\n")
	}
	if rec.Project != "" {
		b.WriteString("📁 <b>Project:</b> " + html.EscapeString(rec.Project) + "\n")
	}
	if len(rec.Hierarchy) > 0 {
		b.WriteString("🗂 <b>Board:</b> " + html.EscapeString(strings.Join(rec.Hierarchy, " / ")) + "\n")
	}
	if rec.Description != "" {
		b.WriteString("📄 <b>Description:</b> " + html.EscapeString(cutDescription(rec.Description)) + "\n")
	}
	if rec.Executor != "" {
		b.WriteString("👤 <b>Executor:</b> " + html.EscapeString(rec.Executor) + "\n")
	}
	if rec.AssignedBy != "" {
		b.WriteString("👨‍💼 <b>Assigned by:</b> " + html.EscapeString(rec.AssignedBy) + "\n")
	}
	if rec.Deadline != "" {
		b.WriteString("⏰ <b>Deadline:</b> " + html.EscapeString(rec.Deadline) + "\n")
	}
	if len(rec.Tags) > 0 {
		tags := make([]string, 0, len(rec.Tags))
		for _, t := range rec.Tags {
			tags = append(tags, "#"+html.EscapeString(t))
		}
		b.WriteString("🏷 " + strings.Join(tags, " ") + "\n")
	}
	if len(rec.TelegramUsers) > 0 {
		b.WriteString("📱 <b>Telegram:</b> " + html.EscapeString(strings.Join(rec.TelegramUsers, " ")) + "\n")
	}
	if len(rec.Files) > 0 {
		b.WriteString("📎 <b>Files:</b> " + html.EscapeString(strings.Join(rec.Files, ", ")) + "\n")
	}
	if rec.LastEditedTime != "" {
		b.WriteString("🕒 <b>Modified:</b> " + rec.LastEditedTime + "\n")
	}
	if rec.URL != "" {
		b.WriteString("\n🔗 <a href=\"" + html.EscapeString(rec.URL) + "\">Open in Notion</a>")
	}
	return b.String()
}

// ReplaceStatusLine rewrites the status line of a rendered notification,
// leaving every other byte untouched. ok is false when no status line was
// found.
func ReplaceStatusLine(text, newStatus string) (out string, ok bool) {
	if !statusLineRe.MatchString(text) {
		return text, false
	}
	return statusLineRe.ReplaceAllLiteralString(text, statusLinePrefix+html.EscapeString(newStatus)), true
}

func cutDescription(s string) string {
	runes := []rune(s)
	if len(runes) <= descriptionLimit {
		return s
	}
	return string(runes[:descriptionLimit]) + "..."
}
