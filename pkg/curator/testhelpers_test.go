// Copyright 2022-2026 aquova et al.

package curator

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aquova/leah/pkg/catalog"
)

const testBaseURL = "https://chat.test/team"

// fakePlatform is an in-memory Platform for workflow tests. All durable
// state (posts, reactions) lives here the way it lives on the real
// platform, so the guard and resolver exercise their actual contracts.
type fakePlatform struct {
	mu        sync.Mutex
	selfID    string
	posts     map[string]*Post
	channels  map[string]*Channel
	members   map[string]*Member
	reactions map[string][]Reaction
	directs   map[string][]string
	sent      []*Post
	deleted   []string
	nextID    int

	failSend      error
	failReactions error
	failFetch     error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		selfID:    "bot-id",
		posts:     make(map[string]*Post),
		channels:  make(map[string]*Channel),
		members:   make(map[string]*Member),
		reactions: make(map[string][]Reaction),
		directs:   make(map[string][]string),
	}
}

func (f *fakePlatform) SelfID() string { return f.selfID }

func (f *fakePlatform) SendMessage(_ context.Context, channelID, text string, block *RichBlock) (*Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend != nil {
		return nil, f.failSend
	}
	f.nextID++
	post := &Post{
		ID:           fmt.Sprintf("sent-%d", f.nextID),
		ChannelID:    channelID,
		AuthorID:     f.selfID,
		Text:         text,
		AuthorIsSelf: true,
	}
	if block != nil {
		post.Blocks = []RichBlock{*block}
	}
	f.posts[post.ID] = post
	f.sent = append(f.sent, post)
	return post, nil
}

func (f *fakePlatform) SendDirect(_ context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directs[userID] = append(f.directs[userID], text)
	return nil
}

func (f *fakePlatform) DeleteMessage(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[messageID]; !ok {
		return ErrPlatformNotFound
	}
	delete(f.posts, messageID)
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakePlatform) AddReaction(_ context.Context, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions[messageID] = append(f.reactions[messageID], Reaction{UserID: f.selfID, Emoji: emoji})
	return nil
}

func (f *fakePlatform) RemoveReaction(_ context.Context, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.reactions[messageID][:0]
	for _, r := range f.reactions[messageID] {
		if r.UserID == f.selfID && r.Emoji == emoji {
			continue
		}
		kept = append(kept, r)
	}
	f.reactions[messageID] = kept
	return nil
}

func (f *fakePlatform) Reactions(_ context.Context, messageID string) ([]Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReactions != nil {
		return nil, f.failReactions
	}
	out := make([]Reaction, len(f.reactions[messageID]))
	copy(out, f.reactions[messageID])
	return out, nil
}

func (f *fakePlatform) FetchChannel(_ context.Context, channelID string) (*Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFetch != nil {
		return nil, f.failFetch
	}
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, ErrPlatformNotFound
	}
	return ch, nil
}

func (f *fakePlatform) FetchMessage(_ context.Context, channelID, messageID string) (*Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFetch != nil {
		return nil, f.failFetch
	}
	post, ok := f.posts[messageID]
	if !ok || post.ChannelID != channelID {
		return nil, ErrPlatformNotFound
	}
	return post, nil
}

func (f *fakePlatform) FetchMember(_ context.Context, userID string) (*Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFetch != nil {
		return nil, f.failFetch
	}
	m, ok := f.members[userID]
	if !ok {
		return nil, ErrPlatformNotFound
	}
	return m, nil
}

func (f *fakePlatform) JumpLink(channelID, messageID string) string {
	return testBaseURL + "/channels/" + channelID + "/" + messageID
}

func (f *fakePlatform) Mention(m *Member) string {
	return "@" + m.Username
}

func (f *fakePlatform) ChannelLink(channelID string) string {
	return testBaseURL + "/channels/" + channelID
}

func (f *fakePlatform) RoleName(roleID string) string {
	return "`" + roleID + "`"
}

// addPost stores a post and backfills its channel if missing.
func (f *fakePlatform) addPost(post *Post) *Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[post.ID] = post
	if _, ok := f.channels[post.ChannelID]; !ok {
		f.channels[post.ChannelID] = &Channel{
			ID:          post.ChannelID,
			Name:        post.ChannelID,
			DisplayName: post.ChannelID,
		}
	}
	return post
}

func (f *fakePlatform) addMember(m *Member) *Member {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[m.ID] = m
	return m
}

// sentPosts returns every message sent so far, in order.
func (f *fakePlatform) sentPosts() []*Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Post, len(f.sent))
	copy(out, f.sent)
	return out
}

// sentTo filters sent messages by channel.
func (f *fakePlatform) sentTo(channelID string) []*Post {
	var out []*Post
	for _, p := range f.sentPosts() {
		if p.ChannelID == channelID {
			out = append(out, p)
		}
	}
	return out
}

// acks returns the private acknowledgments delivered to a user.
func (f *fakePlatform) acks(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.directs[userID]))
	copy(out, f.directs[userID])
	return out
}

// hasReaction reports whether the bot attached the given emoji.
func (f *fakePlatform) hasReaction(messageID, emoji string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reactions[messageID] {
		if r.UserID == f.selfID && r.Emoji == emoji {
			return true
		}
	}
	return false
}

func testConfig() *Config {
	cfg := &Config{
		ServerURL: "https://chat.test",
		Token:     "test-token",
		Team:      "team",
		Channels: ChannelConfig{
			Listening:    []string{"chan-listen"},
			Verification: "chan-verify",
			Gallery:      "chan-gallery",
			SelfCurated:  []string{"chan-self"},
			Showcase:     "chan-showcase",
			Roles:        "chan-roles",
		},
		Roles: RoleConfig{
			Verify:   []string{"verifier"},
			Showcase: []string{"showcaser"},
		},
	}
	cfg.applyDefaults()
	return cfg
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	return cat
}

// newTestDispatcher wires a dispatcher over a fresh fake platform.
func newTestDispatcher(t *testing.T) (*Dispatcher, *fakePlatform) {
	t.Helper()
	platform := newFakePlatform()
	d := NewDispatcher(zerolog.Nop(), testConfig(), platform, testCatalog(t))
	return d, platform
}
