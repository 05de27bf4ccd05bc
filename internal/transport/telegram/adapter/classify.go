package adapter

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	kit "releasebot/internal/transport"
)

var goneErrors = []error{
	tele.ErrBlockedByUser,
	tele.ErrUserIsDeactivated,
	tele.ErrKickedFromGroup,
	tele.ErrKickedFromSuperGroup,
	tele.ErrChatNotFound,
}

// Classify maps a send error to a delivery outcome.
//
// Undeliverable: the Bot API refused the chat itself (403 Forbidden, or
// "chat not found"). Everything else, including flood waits, timeouts and
// 5xx, is a transient failure.
func Classify(err error) kit.Outcome {
	if err == nil {
		return kit.Outcome{Status: kit.Delivered}
	}
	for _, g := range goneErrors {
		if errors.Is(err, g) {
			return kit.Outcome{Status: kit.Undeliverable, Err: err}
		}
	}
	var te *tele.Error
	if errors.As(err, &te) {
		desc := strings.ToLower(te.Description)
		if te.Code == 403 || strings.Contains(desc, "chat not found") || strings.Contains(desc, "user is deactivated") {
			return kit.Outcome{Status: kit.Undeliverable, Err: err}
		}
	}
	// Unrecognized API errors may arrive as plain wrapped text.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "forbidden:") || strings.Contains(msg, "chat not found") {
		return kit.Outcome{Status: kit.Undeliverable, Err: err}
	}
	return kit.Outcome{Status: kit.TransientFailure, Err: err}
}
