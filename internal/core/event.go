package core

// EventKind is a notification the core emits to sessions.
type EventKind int

const (
	// EventChatMessage carries a chat line from a channel member.
	EventChatMessage EventKind = iota
	// EventUserJoined notifies members about a user taking a seat.
	EventUserJoined
	// EventUserLeft notifies members about a user leaving a channel.
	EventUserLeft
	// EventHistory replays the channel history to a (re)joining session.
	EventHistory
	// EventMembers lists the live members of a channel.
	EventMembers
	// EventActiveSessions lists every connected session.
	EventActiveSessions
	// EventNotice is a plain status line.
	EventNotice
	// EventError notifies a session about a domain error.
	EventError
)

// Message is a chat line posted to a channel.
type Message struct {
	Channel string
	From    string
	Text    string
	// Own is set on the copy delivered back to the author.
	Own bool
}

// Event is sent to sessions to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Channel string
	User    string
	Message Message
	History []HistoryEntry
	Names   []string // For EventMembers and EventActiveSessions
	Text    string   // For EventNotice
	Error   *CoreError
}

func noticeEvent(text string) *Event {
	return &Event{Kind: EventNotice, Text: text}
}

func errorEvent(err *CoreError) *Event {
	return &Event{Kind: EventError, Error: err}
}
