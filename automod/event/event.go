package event

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindMessage Kind = "message"
	KindJoin    Kind = "join"
)

// Mentions carried by a message. @everyone and @here both set Everyone.
type Mentions struct {
	Users    []string `json:"users,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Everyone bool     `json:"everyone,omitempty"`
}

// Total number of mention targets, counting @everyone as one.
func (m Mentions) Count() int {
	n := len(m.Users) + len(m.Roles)
	if m.Everyone {
		n++
	}
	return n
}

// A single user-generated event, as delivered by the platform adapter.
//
// Message events carry content; join events carry only the author identity (AuthorName is checked against word lists).
type Message struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author_name,omitempty"`
	AuthorRoles []string  `json:"author_roles,omitempty"`
	GuildID     string    `json:"guild_id"`
	ChannelID   string    `json:"channel_id,omitempty"`
	Content     string    `json:"content,omitempty"`
	Mentions    Mentions  `json:"mentions"`
	Timestamp   time.Time `json:"timestamp"`
}

func (m *Message) Validate() error {
	if m.AuthorID == "" {
		return fmt.Errorf("event missing author_id")
	}
	if m.GuildID == "" {
		return fmt.Errorf("event missing guild_id")
	}
	switch m.Kind {
	case KindMessage, KindJoin:
	case "":
		m.Kind = KindMessage
	default:
		return fmt.Errorf("unsupported event kind: %s", m.Kind)
	}
	return nil
}
