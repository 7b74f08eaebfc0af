package domain

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// Session holds the recent turns of one conversation, keyed by an
// opaque identifier handed back to the client. The server keeps at most
// a configured number of turns; older ones are dropped silently.
type Session struct {
	ID         string
	Turns      []Turn
	LastActive time.Time
}

// Trim drops the oldest turns so that at most max remain.
func (s *Session) Trim(max int) {
	if max > 0 && len(s.Turns) > max {
		s.Turns = s.Turns[len(s.Turns)-max:]
	}
}
