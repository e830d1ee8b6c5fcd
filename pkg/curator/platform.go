// Copyright 2022-2026 aquova et al.

package curator

import "context"

// Platform is the chat platform as seen by the curator. All durable state
// lives on the platform itself (messages, reactions); the curator keeps
// nothing between invocations. Implementations must return
// ErrPlatformNotFound for lookups that miss so the resolver can treat a
// deleted original as a normal outcome.
type Platform interface {
	// SelfID returns the bot's own user ID.
	SelfID() string

	// SendMessage posts text and an optional rich block to a channel and
	// returns the created message.
	SendMessage(ctx context.Context, channelID, text string, block *RichBlock) (*Post, error)

	// SendDirect delivers a private acknowledgment to a user.
	SendDirect(ctx context.Context, userID, text string) error

	// DeleteMessage removes a message.
	DeleteMessage(ctx context.Context, messageID string) error

	// AddReaction attaches an emoji reaction from the bot identity.
	AddReaction(ctx context.Context, messageID, emoji string) error

	// RemoveReaction removes the bot identity's own emoji reaction.
	RemoveReaction(ctx context.Context, messageID, emoji string) error

	// Reactions enumerates all reactions currently on a message.
	Reactions(ctx context.Context, messageID string) ([]Reaction, error)

	// FetchChannel looks up a channel by ID within the community.
	FetchChannel(ctx context.Context, channelID string) (*Channel, error)

	// FetchMessage looks up a message by ID within the given channel.
	FetchMessage(ctx context.Context, channelID, messageID string) (*Post, error)

	// FetchMember looks up a full community member by user ID. Users who
	// are not community members yield ErrPlatformNotFound.
	FetchMember(ctx context.Context, userID string) (*Member, error)

	// JumpLink builds the jump reference for a message. The last two
	// path segments must be the channel ID and message ID so the link
	// doubles as a locator.
	JumpLink(channelID, messageID string) string

	// Mention renders an in-text mention of a member.
	Mention(m *Member) string

	// ChannelLink renders an in-text reference to a channel.
	ChannelLink(channelID string) string

	// RoleName renders an in-text reference to a role.
	RoleName(roleID string) string
}
