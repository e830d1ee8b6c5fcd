// Copyright 2022-2026 aquova et al.

package curator

import (
	"context"
	"fmt"
	"sync"

	"go.mau.fi/util/exsync"
)

// Guard is the deduplication guard. The only "already handled" state is
// the bot's own marker reactions on the platform, rediscovered per event;
// nothing is cached in-process.
type Guard struct {
	platform Platform
	success  string
	failure  string
	locks    *exsync.Map[string, *sync.Mutex]
}

// NewGuard builds a Guard using the configured marker emoji.
func NewGuard(platform Platform, emoji EmojiConfig) *Guard {
	return &Guard{
		platform: platform,
		success:  emoji.Success,
		failure:  emoji.Failure,
		locks:    exsync.NewMap[string, *sync.Mutex](),
	}
}

// AlreadyHandled reports whether the bot identity has attached the success
// marker to the message.
func (g *Guard) AlreadyHandled(ctx context.Context, messageID string) (bool, error) {
	reactions, err := g.platform.Reactions(ctx, messageID)
	if err != nil {
		return false, fmt.Errorf("failed to enumerate reactions: %w", err)
	}
	self := g.platform.SelfID()
	for _, r := range reactions {
		if r.UserID == self && r.Emoji == g.success {
			return true, nil
		}
	}
	return false, nil
}

// EnsureUnhandled returns ErrAlreadyHandled when the message already
// carries the success marker, nil when it is still fresh.
func (g *Guard) EnsureUnhandled(ctx context.Context, messageID string) error {
	handled, err := g.AlreadyHandled(ctx, messageID)
	if err != nil {
		return err
	}
	if handled {
		return ErrAlreadyHandled
	}
	return nil
}

// MarkHandled attaches the success or failure marker to the message.
func (g *Guard) MarkHandled(ctx context.Context, messageID string, outcome bool) error {
	emoji := g.failure
	if outcome {
		emoji = g.success
	}
	if err := g.platform.AddReaction(ctx, messageID, emoji); err != nil {
		return fmt.Errorf("failed to attach %s marker: %w", emoji, err)
	}
	return nil
}

// ClearHandled removes both bot-owned markers from a message. Used only
// during showcase-repost removal so the original can be republished.
func (g *Guard) ClearHandled(ctx context.Context, messageID string) error {
	for _, emoji := range []string{g.success, g.failure} {
		if err := g.platform.RemoveReaction(ctx, messageID, emoji); err != nil {
			return fmt.Errorf("failed to remove %s marker: %w", emoji, err)
		}
	}
	return nil
}

// Lock acquires a per-message mutex and returns its unlock func. Holding
// it across the check/send/mark sequence keeps two concurrent publish
// actions on the same message from both observing "not yet handled".
// Entries are tiny and retained for the process lifetime.
func (g *Guard) Lock(messageID string) func() {
	mu, _ := g.locks.GetOrSet(messageID, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}
