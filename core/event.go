package core

import (
	"time"

	"github.com/google/uuid"
)

// Event is the unit of output produced by an executing capability. After
// emission it should be treated as immutable. Content may be nil for control
// events. Partial marks streaming fragments that will be followed by a final
// event composing the complete turn; the dispatcher aggregates text across
// the full sequence regardless.
type Event struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Content   *Content  `json:"content,omitempty"`
	Partial   bool      `json:"partial,omitempty"`
}

// NewEvent creates a bare event authored by 'author'.
func NewEvent(author string) Event {
	return Event{ID: NewID(), Author: author, Timestamp: time.Now().UTC()}
}

// NewMessageEvent creates an assistant-authored text message event.
func NewMessageEvent(author, text string) Event {
	e := NewEvent(author)
	c := NewAssistantText(text)
	e.Content = &c
	return e
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(text string) Event {
	e := NewEvent("user")
	c := NewUserText(text)
	e.Content = &c
	return e
}

// Text returns the concatenated text of all text parts in the event content,
// or the empty string for content-free events.
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}
	return e.Content.Text()
}

// NewID generates a new unique identifier for events, sessions and handles.
func NewID() string { return uuid.NewString() }
