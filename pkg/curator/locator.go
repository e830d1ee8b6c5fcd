// Copyright 2022-2026 aquova et al.

package curator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Locator is the back-pointer a repost carries to its source post. It is
// the only persistent linkage mechanism; there is no side database.
type Locator struct {
	ChannelID string
	MessageID string
}

// ParseLocator interprets the last two slash-delimited segments of a
// locator string as channel ID and message ID, in that order.
func ParseLocator(s string) (Locator, bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) < 2 {
		return Locator{}, false
	}
	loc := Locator{
		ChannelID: parts[len(parts)-2],
		MessageID: parts[len(parts)-1],
	}
	if loc.ChannelID == "" || loc.MessageID == "" {
		return Locator{}, false
	}
	return loc, true
}

// ExtractLocator pulls the locator out of a repost. Rich-block reposts
// carry it in the block's URL field; plain-text relays carry it on the
// second-to-last line of the body.
func ExtractLocator(repost *Post) (Locator, bool) {
	if block := repost.Block(); block != nil && block.URL != "" {
		return ParseLocator(block.URL)
	}
	lines := strings.Split(repost.Text, "\n")
	if len(lines) < 2 {
		return Locator{}, false
	}
	return ParseLocator(lines[len(lines)-2])
}

// Resolver recovers original posts from the locators embedded in reposts.
type Resolver struct {
	platform Platform
}

// NewResolver builds a Resolver over the given platform.
func NewResolver(platform Platform) *Resolver {
	return &Resolver{platform: platform}
}

// ResolveOriginal returns the source post a repost points back to.
// A missing channel or message yields ErrLinkageNotFound; callers must
// treat that as a normal outcome, the original may simply be gone.
func (r *Resolver) ResolveOriginal(ctx context.Context, repost *Post) (*Post, error) {
	loc, ok := ExtractLocator(repost)
	if !ok {
		return nil, ErrLinkageNotFound
	}
	if _, err := r.platform.FetchChannel(ctx, loc.ChannelID); err != nil {
		if errors.Is(err, ErrPlatformNotFound) {
			return nil, ErrLinkageNotFound
		}
		return nil, fmt.Errorf("failed to fetch source channel: %w", err)
	}
	original, err := r.platform.FetchMessage(ctx, loc.ChannelID, loc.MessageID)
	if err != nil {
		if errors.Is(err, ErrPlatformNotFound) {
			return nil, ErrLinkageNotFound
		}
		return nil, fmt.Errorf("failed to fetch source message: %w", err)
	}
	return original, nil
}

// ResolveAuthor returns the author of the resolved original as a fresh
// community member lookup, so name, colour and role changes are reflected.
func (r *Resolver) ResolveAuthor(ctx context.Context, repost *Post) (*Member, error) {
	original, err := r.ResolveOriginal(ctx, repost)
	if err != nil {
		return nil, err
	}
	member, err := r.platform.FetchMember(ctx, original.AuthorID)
	if err != nil {
		if errors.Is(err, ErrPlatformNotFound) {
			return nil, ErrLinkageNotFound
		}
		return nil, fmt.Errorf("failed to fetch original author: %w", err)
	}
	return member, nil
}
