// Copyright 2022-2026 aquova et al.

// Package gateway connects the curator to a Mattermost server. It owns the
// websocket session, translates platform events into curator events, and
// implements curator.Platform over the REST client.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"

	"github.com/aquova/leah/pkg/curator"
)

// handler receives translated curator events. Satisfied by
// *curator.Dispatcher; tests inject a mock.
type handler interface {
	Handle(ctx context.Context, evt curator.Event)
}

// eventTimeout bounds the platform calls made while handling one event.
const eventTimeout = time.Minute

// Gateway is a single authenticated Mattermost bot connection.
type Gateway struct {
	cfg     *curator.Config
	log     zerolog.Logger
	client  *model.Client4
	handler handler

	// wsMu guards ws, which is written by reconnects on the listener
	// goroutine and by Close.
	wsMu sync.Mutex
	ws   *model.WebSocketClient

	selfID   string
	teamID   string
	teamName string

	stopOnce sync.Once
	stopChan chan struct{}
}

// New builds a Gateway from config. Connect must be called before Listen.
func New(cfg *curator.Config, log zerolog.Logger) *Gateway {
	client := model.NewAPIv4Client(cfg.ServerURL)
	client.SetToken(cfg.Token)
	return &Gateway{
		cfg:      cfg,
		log:      log.With().Str("component", "gateway").Logger(),
		client:   client,
		teamName: cfg.Team,
		stopChan: make(chan struct{}),
	}
}

// SetHandler wires the event consumer. Must be called before Listen.
func (g *Gateway) SetHandler(h handler) {
	g.handler = h
}

// Connect verifies the bot token and resolves the configured team.
func (g *Gateway) Connect(ctx context.Context) error {
	me, _, err := g.client.GetMe(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to verify session: %w", err)
	}
	g.selfID = me.Id
	g.log.Info().Str("user_id", me.Id).Str("username", me.Username).Msg("Authenticated")

	team, _, err := g.client.GetTeamByName(ctx, g.cfg.Team, "")
	if err != nil {
		return fmt.Errorf("failed to resolve team %q: %w", g.cfg.Team, err)
	}
	g.teamID = team.Id
	g.teamName = team.Name
	return nil
}

// Listen opens the websocket and starts the event loop.
func (g *Gateway) Listen() error {
	if g.handler == nil {
		return fmt.Errorf("gateway has no event handler")
	}
	return g.connectWebSocket()
}

func (g *Gateway) connectWebSocket() error {
	wsURL := httpToWS(g.cfg.ServerURL)
	ws, err := model.NewWebSocketClient4(wsURL, g.client.AuthToken)
	if err != nil {
		return fmt.Errorf("failed to create websocket client: %w", err)
	}
	ws.Listen()

	g.wsMu.Lock()
	g.ws = ws
	g.wsMu.Unlock()

	go g.listenWebSocket(ws)

	g.log.Info().Str("ws_url", wsURL).Msg("WebSocket connected")
	return nil
}

// httpToWS converts an HTTP(S) URL to a WS(S) URL.
func httpToWS(url string) string {
	if strings.HasPrefix(url, "https://") {
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	if strings.HasPrefix(url, "http://") {
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

func (g *Gateway) listenWebSocket(ws *model.WebSocketClient) {
	for {
		select {
		case <-g.stopChan:
			return
		case evt, ok := <-ws.EventChannel:
			if !ok {
				g.log.Warn().Msg("WebSocket event channel closed, reconnecting")
				g.handleWebSocketDisconnect()
				return
			}
			if evt == nil {
				continue
			}
			g.handleEvent(evt)
		}
	}
}

func (g *Gateway) handleWebSocketDisconnect() {
	select {
	case <-g.stopChan:
		return
	default:
	}
	if err := g.connectWebSocket(); err != nil {
		g.log.Error().Err(err).Msg("Failed to reconnect WebSocket")
	}
}

// Close stops the event loop and closes the websocket. Safe to call more
// than once and concurrently with a reconnect.
func (g *Gateway) Close() {
	g.stopOnce.Do(func() {
		close(g.stopChan)
	})
	g.wsMu.Lock()
	if g.ws != nil {
		g.ws.Close()
		g.ws = nil
	}
	g.wsMu.Unlock()
}

// handleEvent dispatches a websocket event to the matching translator.
func (g *Gateway) handleEvent(evt *model.WebSocketEvent) {
	switch evt.EventType() {
	case model.WebsocketEventPosted:
		g.handlePosted(evt)
	case model.WebsocketEventReactionAdded:
		g.handleReactionAdded(evt)
	default:
		g.log.Trace().Str("event_type", string(evt.EventType())).Msg("Unhandled event type")
	}
}

// parsePostedEvent extracts and validates a post from a websocket event.
// Returns (nil, nil) to skip silently, (nil, err) to log an error, or
// (post, nil) to proceed.
func (g *Gateway) parsePostedEvent(evt *model.WebSocketEvent) (*model.Post, error) {
	postJSON, ok := evt.GetData()["post"].(string)
	if !ok {
		return nil, fmt.Errorf("posted event missing post data")
	}

	var post model.Post
	if err := json.Unmarshal([]byte(postJSON), &post); err != nil {
		return nil, fmt.Errorf("failed to unmarshal post: %w", err)
	}

	// Echo prevention: our own relays and reposts come back as posted
	// events too.
	if post.UserId == g.selfID {
		return nil, nil
	}

	// Skip system messages (joins, headers, and so on).
	if post.Type != "" && post.Type != model.PostTypeDefault {
		return nil, nil
	}

	return &post, nil
}

// parseReactionEvent extracts a trigger reaction from a websocket event.
// Non-trigger emoji and the bot's own marker reactions are skipped.
func (g *Gateway) parseReactionEvent(evt *model.WebSocketEvent) (*model.Reaction, error) {
	reactionJSON, ok := evt.GetData()["reaction"].(string)
	if !ok {
		return nil, nil
	}

	var reaction model.Reaction
	if err := json.Unmarshal([]byte(reactionJSON), &reaction); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reaction: %w", err)
	}

	if reaction.UserId == g.selfID {
		return nil, nil
	}
	if reaction.EmojiName != g.cfg.Emoji.Trigger {
		return nil, nil
	}

	return &reaction, nil
}

func (g *Gateway) handlePosted(evt *model.WebSocketEvent) {
	post, err := g.parsePostedEvent(evt)
	if err != nil {
		g.log.Warn().Err(err).Msg("Failed to parse posted event")
		return
	}
	if post == nil {
		return
	}

	g.log.Debug().
		Str("post_id", post.Id).
		Str("channel_id", post.ChannelId).
		Str("user_id", post.UserId).
		Msg("Received new message")

	g.dispatch(curator.Event{
		Kind: curator.EventMessageCreated,
		Post: g.convertPost(post),
	})
}

func (g *Gateway) handleReactionAdded(evt *model.WebSocketEvent) {
	reaction, err := g.parseReactionEvent(evt)
	if err != nil {
		g.log.Warn().Err(err).Msg("Failed to parse reaction event")
		return
	}
	if reaction == nil {
		return
	}

	g.log.Debug().
		Str("post_id", reaction.PostId).
		Str("user_id", reaction.UserId).
		Msg("Action trigger received")

	// Each handler runs to completion against its own deadline; the
	// dispatcher resolves the target message itself via the platform so
	// the event loop is never blocked on network calls.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		target, _, err := g.client.GetPost(ctx, reaction.PostId, "")
		if err != nil {
			g.log.Error().Err(err).Str("post_id", reaction.PostId).Msg("Failed to fetch action target")
			return
		}
		g.handler.Handle(ctx, curator.Event{
			Kind:    curator.EventActionInvoked,
			Post:    g.convertPost(target),
			ActorID: reaction.UserId,
		})
	}()
}

func (g *Gateway) dispatch(evt curator.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		g.handler.Handle(ctx, evt)
	}()
}

// convertPost maps a Mattermost post onto the curator's view of it.
func (g *Gateway) convertPost(post *model.Post) *curator.Post {
	attachments := make([]string, 0, len(post.FileIds))
	for _, fileID := range post.FileIds {
		attachments = append(attachments, g.fileURL(fileID))
	}

	var blocks []curator.RichBlock
	for _, sa := range post.Attachments() {
		blocks = append(blocks, curator.RichBlock{
			Title:      sa.Title,
			Text:       sa.Text,
			URL:        sa.TitleLink,
			ImageURL:   sa.ImageURL,
			ThumbURL:   sa.ThumbURL,
			Pretext:    sa.Pretext,
			AuthorName: sa.AuthorName,
			AuthorIcon: sa.AuthorIcon,
			AuthorLink: sa.AuthorLink,
			Color:      sa.Color,
		})
	}

	return &curator.Post{
		ID:           post.Id,
		ChannelID:    post.ChannelId,
		AuthorID:     post.UserId,
		Text:         post.Message,
		Attachments:  attachments,
		Blocks:       blocks,
		CreateAt:     time.UnixMilli(post.CreateAt),
		AuthorIsSelf: post.UserId == g.selfID,
	}
}

func (g *Gateway) fileURL(fileID string) string {
	return g.cfg.ServerURL + "/api/v4/files/" + fileID
}
