package transport

import "context"

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// DeliveryStatus classifies the result of a single send.
//
// Only Undeliverable means the recipient is gone for good (blocked the bot,
// deleted the account, chat vanished). TransientFailure covers everything else
// (network, flood wait, 5xx) and must never cause a subscriber to be dropped.
type DeliveryStatus int

const (
	Delivered DeliveryStatus = iota
	Undeliverable
	TransientFailure
)

func (s DeliveryStatus) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case Undeliverable:
		return "undeliverable"
	case TransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of a send. Err is nil for Delivered.
type Outcome struct {
	Status DeliveryStatus
	Err    error
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
