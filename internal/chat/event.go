// Package chat defines the typed boundary between the bot and a chat
// platform: who spoke, where, what was said, and how the bot answers.
package chat

import (
	"fmt"
	"time"
)

// UserID identifies a chat user.
type UserID string

// ChannelID is the stable key identifying a chat channel.
type ChannelID string

// MessageID identifies a message sent on the platform.
type MessageID string

// ChannelKind classifies a channel. The set is closed; adapters map any
// platform-specific kind they do not recognise to KindOther.
type ChannelKind int

const (
	KindOther ChannelKind = iota
	KindText
	KindVoice
	KindDirect
)

// String returns the lowercase kind name.
func (k ChannelKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindVoice:
		return "voice"
	case KindDirect:
		return "direct"
	default:
		return "other"
	}
}

// Author is the user behind an inbound event.
type Author struct {
	ID   UserID
	Name string
	// Automated is true for bot and system accounts.
	Automated bool
}

// Mention renders the author the way commands accept them as arguments.
func (a Author) Mention() string {
	return "@" + a.Name
}

// Channel is a chat channel as seen by the bot.
type Channel struct {
	ID   ChannelID
	Name string
	Kind ChannelKind
}

// String returns a log-friendly description of the channel.
func (c Channel) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, c.Kind)
}

// Event is a single inbound chat message.
type Event struct {
	ID         string
	Author     Author
	Channel    Channel
	Content    string
	ReceivedAt time.Time
}
