// Package transport defines how the bot talks to chat users and adapts
// those ports to Telegram.
package transport

import (
	"context"

	"github.com/abhisek/speakbot/internal/transcribe"
)

// Button is an inline button. Exactly one of Action or URL is set.
type Button struct {
	Text   string
	Action string
	URL    string
}

// Message is one outgoing chat message. Users talk to the bot in private
// chats, so UserID doubles as the chat address.
type Message struct {
	UserID  int64
	Text    string
	Buttons [][]Button

	// ForceReply asks the client to open a reply to this message.
	ForceReply bool
}

// Messenger delivers messages to users.
type Messenger interface {
	Send(ctx context.Context, msg Message) error
}

// Kind classifies an incoming update.
type Kind int

const (
	KindCommand Kind = iota + 1
	KindAction
	KindVoice
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindAction:
		return "action"
	case KindVoice:
		return "voice"
	case KindText:
		return "text"
	}
	return "unknown"
}

// Update is one incoming user interaction.
type Update struct {
	UserID      int64
	DisplayName string
	Kind        Kind

	Command string // KindCommand, without the leading slash
	Args    string // KindCommand
	Action  string // KindAction, the pressed button's Action
	Text    string // KindText

	Clip transcribe.Clip // KindVoice

	// CallbackID acknowledges a button press; empty otherwise.
	CallbackID string
}

// Source yields incoming updates.
type Source interface {
	// Updates streams updates until ctx is done, then closes the channel.
	Updates(ctx context.Context) (<-chan Update, error)

	// Ack answers a button press so the client stops its spinner.
	Ack(ctx context.Context, callbackID string) error
}
