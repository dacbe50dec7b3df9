// File: internal/domain/model/token.go
package model

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"notion-telegram-relay/internal/domain"
)

// CallbackDataLimit is the Telegram ceiling for callback_data bytes.
const CallbackDataLimit = 64

const statusCallbackPrefix = "status"

// CallbackToken is the decoded form of a status button's opaque identifier.
type CallbackToken struct {
	PageID string
	Status string
	// Truncated is true when the raw data is close enough to the byte budget
	// that the status segment may have been cut at encode time. A rune-boundary
	// cut can land up to utf8.UTFMax-1 bytes short of the limit, so the flag
	// covers that window, not just an exact fill.
	Truncated bool
}

// EncodeStatusCallback builds "status:<page_id>:<status>" callback data.
// When the status name would push the data past CallbackDataLimit it is cut
// deterministically on a rune boundary and truncated=true is returned; the
// caller is expected to log that. Page IDs must not contain colons so the
// decoder can treat everything after the second colon as the status name.
func EncodeStatusCallback(pageID, status string) (data string, truncated bool, err error) {
	if pageID == "" || strings.ContainsRune(pageID, ':') {
		return "", false, fmt.Errorf("%w: bad page id %q", domain.ErrInvalidArgument, pageID)
	}
	budget := CallbackDataLimit - len(statusCallbackPrefix) - len(pageID) - 2
	if budget < 1 {
		return "", false, fmt.Errorf("%w: page id %q leaves no room for a status name", domain.ErrInvalidArgument, pageID)
	}
	if len(status) > budget {
		status = cutRunes(status, budget)
		truncated = true
	}
	return statusCallbackPrefix + ":" + pageID + ":" + status, truncated, nil
}

// DecodeStatusCallback parses callback data produced by EncodeStatusCallback.
// The status segment may itself contain colons.
func DecodeStatusCallback(data string) (*CallbackToken, error) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0] != statusCallbackPrefix {
		return nil, fmt.Errorf("%w: %q", domain.ErrBadCallbackData, data)
	}
	if parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrBadCallbackData, data)
	}
	return &CallbackToken{
		PageID:    parts[1],
		Status:    parts[2],
		Truncated: len(data) > CallbackDataLimit-utf8.UTFMax,
	}, nil
}

// cutRunes trims s to at most n bytes without splitting a rune.
func cutRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
