// Copyright 2022-2026 aquova et al.

package curator

import "time"

// Post is an immutable user-authored message as seen by the curator. The
// platform owns it; the curator only ever attaches marker reactions to it.
type Post struct {
	ID        string
	ChannelID string
	AuthorID  string
	Text      string
	// Attachments holds resolved URLs for the post's file attachments,
	// in upload order.
	Attachments []string
	// Blocks holds any rich blocks already carried by the post, e.g. a
	// link preview. The first block is the one the formatter inspects.
	Blocks []RichBlock
	CreateAt time.Time
	// AuthorIsSelf is true when the post was authored by the bot identity
	// itself, i.e. it is one of our own relays or reposts.
	AuthorIsSelf bool
}

// Block returns the post's first rich block, or nil if it has none.
func (p *Post) Block() *RichBlock {
	if p == nil || len(p.Blocks) == 0 {
		return nil
	}
	return &p.Blocks[0]
}

// RichBlock is the display block attached to a repost: title, body, image,
// attribution and the locator URL that points back at the original post.
type RichBlock struct {
	Title      string
	Text       string
	URL        string
	ImageURL   string
	ThumbURL   string
	Pretext    string
	AuthorName string
	AuthorIcon string
	AuthorLink string
	Color      string
}

// Member is a full community member. A user who has left the community or
// exists only as a bare identity has no Member and therefore no roles.
type Member struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
	// Color is the display colour derived from the member's roles.
	Color string
	Roles []string
	IsBot bool
}

// Channel is the minimal channel view the curator needs.
type Channel struct {
	ID          string
	Name        string
	DisplayName string
}

// Reaction is a single emoji reaction on a message.
type Reaction struct {
	UserID string
	Emoji  string
}

// EventKind enumerates the inbound events the dispatcher understands.
type EventKind int

const (
	// EventMessageCreated fires when a user posts a new message.
	EventMessageCreated EventKind = iota
	// EventActionInvoked fires when a user invokes the publish/remove
	// action on a target message.
	EventActionInvoked
)

// Event is an inbound notification from the platform gateway.
type Event struct {
	Kind EventKind
	// Post is the new message for EventMessageCreated, or the acted-upon
	// target message for EventActionInvoked.
	Post *Post
	// ActorID identifies the acting user for EventActionInvoked.
	ActorID string
}
