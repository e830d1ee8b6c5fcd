// Copyright 2022-2026 aquova et al.

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/aquova/leah/pkg/curator"
)

var _ curator.Platform = (*Gateway)(nil)

// SelfID returns the bot's own user ID.
func (g *Gateway) SelfID() string {
	return g.selfID
}

// SendMessage posts text and an optional rich block to a channel.
func (g *Gateway) SendMessage(ctx context.Context, channelID, text string, block *curator.RichBlock) (*curator.Post, error) {
	post := &model.Post{
		ChannelId: channelID,
		Message:   text,
	}
	if block != nil {
		model.ParseSlackAttachment(post, []*model.SlackAttachment{toSlackAttachment(block)})
	}
	created, _, err := g.client.CreatePost(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return g.convertPost(created), nil
}

// SendDirect delivers a private message to a user via a direct channel.
func (g *Gateway) SendDirect(ctx context.Context, userID, text string) error {
	channel, _, err := g.client.CreateDirectChannel(ctx, g.selfID, userID)
	if err != nil {
		return fmt.Errorf("failed to open direct channel: %w", err)
	}
	_, _, err = g.client.CreatePost(ctx, &model.Post{
		ChannelId: channel.Id,
		Message:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send direct message: %w", err)
	}
	return nil
}

// DeleteMessage removes a post.
func (g *Gateway) DeleteMessage(ctx context.Context, messageID string) error {
	if _, err := g.client.DeletePost(ctx, messageID); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

// AddReaction attaches an emoji reaction from the bot identity.
func (g *Gateway) AddReaction(ctx context.Context, messageID, emoji string) error {
	_, _, err := g.client.SaveReaction(ctx, &model.Reaction{
		UserId:    g.selfID,
		PostId:    messageID,
		EmojiName: emoji,
	})
	if err != nil {
		return fmt.Errorf("failed to save reaction: %w", err)
	}
	return nil
}

// RemoveReaction removes the bot's own emoji reaction. A reaction that is
// not there counts as removed.
func (g *Gateway) RemoveReaction(ctx context.Context, messageID, emoji string) error {
	resp, err := g.client.DeleteReaction(ctx, &model.Reaction{
		UserId:    g.selfID,
		PostId:    messageID,
		EmojiName: emoji,
	})
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest) {
			return nil
		}
		return fmt.Errorf("failed to remove reaction: %w", err)
	}
	return nil
}

// Reactions enumerates the reactions on a post.
func (g *Gateway) Reactions(ctx context.Context, messageID string) ([]curator.Reaction, error) {
	reactions, _, err := g.client.GetReactions(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reactions: %w", err)
	}
	out := make([]curator.Reaction, 0, len(reactions))
	for _, r := range reactions {
		out = append(out, curator.Reaction{
			UserID: r.UserId,
			Emoji:  r.EmojiName,
		})
	}
	return out, nil
}

// FetchChannel looks up a channel by ID.
func (g *Gateway) FetchChannel(ctx context.Context, channelID string) (*curator.Channel, error) {
	channel, resp, err := g.client.GetChannel(ctx, channelID, "")
	if err != nil {
		if notFound(resp) {
			return nil, curator.ErrPlatformNotFound
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return &curator.Channel{
		ID:          channel.Id,
		Name:        channel.Name,
		DisplayName: channel.DisplayName,
	}, nil
}

// FetchMessage looks up a post by ID and verifies it still lives in the
// given channel.
func (g *Gateway) FetchMessage(ctx context.Context, channelID, messageID string) (*curator.Post, error) {
	post, resp, err := g.client.GetPost(ctx, messageID, "")
	if err != nil {
		if notFound(resp) {
			return nil, curator.ErrPlatformNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post.ChannelId != channelID || post.DeleteAt != 0 {
		return nil, curator.ErrPlatformNotFound
	}
	return g.convertPost(post), nil
}

// FetchMember looks up a user and their team membership. Users outside the
// configured team are not community members and yield ErrPlatformNotFound.
func (g *Gateway) FetchMember(ctx context.Context, userID string) (*curator.Member, error) {
	user, resp, err := g.client.GetUser(ctx, userID, "")
	if err != nil {
		if notFound(resp) {
			return nil, curator.ErrPlatformNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	teamMember, resp, err := g.client.GetTeamMember(ctx, g.teamID, userID, "")
	if err != nil {
		if notFound(resp) {
			return nil, curator.ErrPlatformNotFound
		}
		return nil, fmt.Errorf("failed to get team member: %w", err)
	}
	if teamMember.DeleteAt != 0 {
		return nil, curator.ErrPlatformNotFound
	}

	roles := append(strings.Fields(user.Roles), strings.Fields(teamMember.Roles)...)
	return &curator.Member{
		ID:          user.Id,
		Username:    user.Username,
		DisplayName: displayName(user),
		AvatarURL:   g.cfg.ServerURL + "/api/v4/users/" + user.Id + "/image",
		Color:       g.cfg.RoleColor(roles),
		Roles:       roles,
		IsBot:       user.IsBot,
	}, nil
}

// JumpLink builds a channel-scoped message link. Mattermost permalinks
// carry only a post ID; this form keeps the channel ID in the path so the
// link doubles as a locator.
func (g *Gateway) JumpLink(channelID, messageID string) string {
	return fmt.Sprintf("%s/%s/channels/%s/%s", g.cfg.ServerURL, g.teamName, channelID, messageID)
}

// Mention renders an @-mention for a member.
func (g *Gateway) Mention(m *curator.Member) string {
	return "@" + m.Username
}

// ChannelLink renders a clickable reference to a channel.
func (g *Gateway) ChannelLink(channelID string) string {
	return fmt.Sprintf("%s/%s/channels/%s", g.cfg.ServerURL, g.teamName, channelID)
}

// RoleName renders a role for display in denial messages.
func (g *Gateway) RoleName(roleID string) string {
	return "`" + roleID + "`"
}

func toSlackAttachment(block *curator.RichBlock) *model.SlackAttachment {
	return &model.SlackAttachment{
		Fallback:   block.Title,
		Title:      block.Title,
		TitleLink:  block.URL,
		Text:       block.Text,
		ImageURL:   block.ImageURL,
		ThumbURL:   block.ThumbURL,
		Pretext:    block.Pretext,
		AuthorName: block.AuthorName,
		AuthorIcon: block.AuthorIcon,
		AuthorLink: block.AuthorLink,
		Color:      block.Color,
	}
}

// displayName follows the usual Mattermost convention: nickname, then
// full name, then username.
func displayName(u *model.User) string {
	if u.Nickname != "" {
		return u.Nickname
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Username
}

func notFound(resp *model.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}
