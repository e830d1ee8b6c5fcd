// Copyright 2022-2026 aquova et al.

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"

	"github.com/aquova/leah/pkg/curator"
)

var wsUpgrader = websocket.Upgrader{}

// endpointCall records which API endpoints were hit during a test.
type endpointCall struct {
	Method string
	Path   string
	Body   string
}

// fakeMM wraps an httptest.Server simulating the Mattermost API surface the
// gateway touches. It records calls and serves canned responses.
type fakeMM struct {
	Server *httptest.Server

	mu    sync.Mutex
	calls []endpointCall

	// Me is the bot's own user, served from /users/me.
	Me *model.User
	// Users maps user ID to model.User.
	Users map[string]*model.User
	// TeamsByName maps team name to model.Team.
	TeamsByName map[string]*model.Team
	// TeamMembers maps user ID to the bot team's membership record.
	TeamMembers map[string]*model.TeamMember
	// Channels maps channel ID to model.Channel.
	Channels map[string]*model.Channel
	// Posts maps post ID to model.Post.
	Posts map[string]*model.Post
	// Reactions maps post ID to its reaction list.
	Reactions map[string][]*model.Reaction
	// FailEndpoints causes matching path substrings to return 500.
	FailEndpoints map[string]bool
	// ReactionDeleteStatus overrides the status for reaction deletes.
	ReactionDeleteStatus int
}

func newFakeMM() *fakeMM {
	f := &fakeMM{
		Me:            &model.User{Id: "bot-id", Username: "leah", IsBot: true},
		Users:         make(map[string]*model.User),
		TeamsByName:   make(map[string]*model.Team),
		TeamMembers:   make(map[string]*model.TeamMember),
		Channels:      make(map[string]*model.Channel),
		Posts:         make(map[string]*model.Post),
		Reactions:     make(map[string][]*model.Reaction),
		FailEndpoints: make(map[string]bool),
	}
	f.TeamsByName["team"] = &model.Team{Id: "team-id", Name: "team"}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handler))
	return f
}

func (f *fakeMM) Close() {
	f.Server.Close()
}

func (f *fakeMM) record(method, path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpointCall{Method: method, Path: path, Body: body})
}

func (f *fakeMM) Calls() []endpointCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]endpointCall, len(f.calls))
	copy(cp, f.calls)
	return cp
}

func (f *fakeMM) CalledPath(path string) bool {
	for _, c := range f.Calls() {
		if strings.Contains(c.Path, path) {
			return true
		}
	}
	return false
}

func (f *fakeMM) handler(w http.ResponseWriter, r *http.Request) {
	// Accept websocket connections and hold them open; events are never
	// pushed, the connection just lives until either side closes it.
	if r.URL.Path == "/api/v4/websocket" {
		f.record(r.Method, r.URL.Path, "")
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		return
	}

	body, _ := io.ReadAll(r.Body)
	f.record(r.Method, r.URL.Path, string(body))

	for prefix := range f.FailEndpoints {
		if strings.Contains(r.URL.Path, prefix) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "fake error"})
			return
		}
	}

	path := r.URL.Path

	switch {
	// GET /api/v4/users/me
	case r.Method == "GET" && path == "/api/v4/users/me":
		_ = json.NewEncoder(w).Encode(f.Me)

	// GET /api/v4/users/{user_id}
	case r.Method == "GET" && strings.HasPrefix(path, "/api/v4/users/") && !strings.Contains(path[len("/api/v4/users/"):], "/"):
		uid := path[len("/api/v4/users/"):]
		if u, ok := f.Users[uid]; ok {
			_ = json.NewEncoder(w).Encode(u)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "user not found"})

	// GET /api/v4/teams/name/{team_name}
	case r.Method == "GET" && strings.HasPrefix(path, "/api/v4/teams/name/"):
		name := path[len("/api/v4/teams/name/"):]
		if team, ok := f.TeamsByName[name]; ok {
			_ = json.NewEncoder(w).Encode(team)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "team not found"})

	// GET /api/v4/teams/{team_id}/members/{user_id}
	case r.Method == "GET" && strings.HasPrefix(path, "/api/v4/teams/") && strings.Contains(path, "/members/"):
		parts := strings.Split(path, "/")
		// /api/v4/teams/{tid}/members/{uid}
		if len(parts) >= 7 {
			if tm, ok := f.TeamMembers[parts[6]]; ok {
				_ = json.NewEncoder(w).Encode(tm)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "team member not found"})

	// GET /api/v4/channels/{channel_id}
	case r.Method == "GET" && strings.HasPrefix(path, "/api/v4/channels/") && !strings.Contains(path[len("/api/v4/channels/"):], "/"):
		chID := path[len("/api/v4/channels/"):]
		if ch, ok := f.Channels[chID]; ok {
			_ = json.NewEncoder(w).Encode(ch)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "channel not found"})

	// GET /api/v4/posts/{post_id}/reactions
	case r.Method == "GET" && strings.HasPrefix(path, "/api/v4/posts/") && strings.HasSuffix(path, "/reactions"):
		parts := strings.Split(path, "/")
		if len(parts) >= 6 {
			_ = json.NewEncoder(w).Encode(f.Reactions[parts[4]])
			return
		}
		_ = json.NewEncoder(w).Encode([]*model.Reaction{})

	// GET /api/v4/posts/{post_id}
	case r.Method == "GET" && strings.HasPrefix(path, "/api/v4/posts/"):
		postID := path[len("/api/v4/posts/"):]
		if p, ok := f.Posts[postID]; ok {
			_ = json.NewEncoder(w).Encode(p)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "post not found"})

	// POST /api/v4/posts
	case r.Method == "POST" && path == "/api/v4/posts":
		var post model.Post
		_ = json.Unmarshal(body, &post)
		post.Id = "created-post-id"
		f.mu.Lock()
		f.Posts[post.Id] = &post
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(&post)

	// DELETE /api/v4/users/{user_id}/posts/{post_id}/reactions/{emoji_name}
	case r.Method == "DELETE" && strings.Contains(path, "/posts/") && strings.Contains(path, "/reactions/"):
		if f.ReactionDeleteStatus != 0 {
			w.WriteHeader(f.ReactionDeleteStatus)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "reaction delete rejected"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

	// DELETE /api/v4/posts/{post_id}
	case r.Method == "DELETE" && strings.HasPrefix(path, "/api/v4/posts/"):
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

	// POST /api/v4/reactions
	case r.Method == "POST" && path == "/api/v4/reactions":
		var reaction model.Reaction
		_ = json.Unmarshal(body, &reaction)
		f.mu.Lock()
		f.Reactions[reaction.PostId] = append(f.Reactions[reaction.PostId], &reaction)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(&reaction)

	// POST /api/v4/channels/direct
	case r.Method == "POST" && path == "/api/v4/channels/direct":
		_ = json.NewEncoder(w).Encode(&model.Channel{Id: "dm-channel"})

	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "not found: " + path})
	}
}

// newWebSocketEvent creates a model.WebSocketEvent for testing handlers.
func newWebSocketEvent(eventType model.WebsocketEventType, channelID string, data map[string]any) *model.WebSocketEvent {
	evt := model.NewWebSocketEvent(eventType, "", channelID, "", nil, "")
	return evt.SetData(data)
}

// mockHandler delivers translated events to a channel for assertions.
type mockHandler struct {
	events chan curator.Event
}

func newMockHandler() *mockHandler {
	return &mockHandler{events: make(chan curator.Event, 8)}
}

func (m *mockHandler) Handle(_ context.Context, evt curator.Event) {
	m.events <- evt
}

func testGatewayConfig(serverURL string) *curator.Config {
	return &curator.Config{
		ServerURL: serverURL,
		Token:     "test-token",
		Team:      "team",
		Channels: curator.ChannelConfig{
			Listening:    []string{"chan-listen"},
			Verification: "chan-verify",
			Gallery:      "chan-gallery",
			SelfCurated:  []string{"chan-self"},
			Showcase:     "chan-showcase",
			Roles:        "chan-roles",
		},
		Roles: curator.RoleConfig{
			Verify:   []string{"verifier"},
			Showcase: []string{"showcaser"},
			Colors:   map[string]string{"verifier": "#ff0000"},
		},
		Emoji: curator.EmojiConfig{
			Trigger: "star",
			Success: "white_check_mark",
			Failure: "x",
		},
	}
}

// newConnectedGateway builds a gateway wired to a fake server, already past
// the Connect handshake.
func newConnectedGateway(f *fakeMM) *Gateway {
	g := New(testGatewayConfig(f.Server.URL), zerolog.Nop())
	g.selfID = "bot-id"
	g.teamID = "team-id"
	g.teamName = "team"
	return g
}
