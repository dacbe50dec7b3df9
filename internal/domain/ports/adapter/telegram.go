// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// MessageRef points at an already-sent chat message.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// TelegramBotAdapter is the outbound port to the messaging platform.
// SendMessage and SendButtons return the reference of the sent message so
// callers can record it. In-place edits and callback acknowledgments stay
// inside the adapter; they never leave the vendor boundary.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, chatID int64, text string) (MessageRef, error)
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) (MessageRef, error)
}
