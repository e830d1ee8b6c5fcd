// Copyright 2022-2026 aquova et al.

package curator

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aquova/leah/pkg/catalog"
)

// Dispatcher is the publication workflow. Every inbound event enters
// through Handle, which sequences classifier, authorization gate,
// deduplication guard, linkage resolver and formatter, then performs the
// channel-level side effects. Handlers are stateless between invocations;
// everything durable is rediscovered from the platform.
type Dispatcher struct {
	log       zerolog.Logger
	cfg       *Config
	platform  Platform
	stages    *StageMap
	guard     *Guard
	resolver  *Resolver
	formatter *Formatter
	catalog   *catalog.Catalog
}

// NewDispatcher wires the workflow from read-only config.
func NewDispatcher(log zerolog.Logger, cfg *Config, platform Platform, cat *catalog.Catalog) *Dispatcher {
	return &Dispatcher{
		log:       log.With().Str("component", "dispatcher").Logger(),
		cfg:       cfg,
		platform:  platform,
		stages:    NewStageMap(cfg.Channels),
		guard:     NewGuard(platform, cfg.Emoji),
		resolver:  NewResolver(platform),
		formatter: NewFormatter(cat),
		catalog:   cat,
	}
}

// Handle is the single entry point for inbound events. It never panics or
// propagates errors; every user action terminates in exactly one private
// acknowledgment.
func (d *Dispatcher) Handle(ctx context.Context, evt Event) {
	switch evt.Kind {
	case EventMessageCreated:
		d.handleMessageCreated(ctx, evt.Post)
	case EventActionInvoked:
		d.handleActionInvoked(ctx, evt.ActorID, evt.Post)
	}
}

// handleMessageCreated relays new listening-channel posts into the
// verification channel. Unconditional, no role check: the relay is for
// staff visibility only.
func (d *Dispatcher) handleMessageCreated(ctx context.Context, post *Post) {
	if post.AuthorIsSelf || d.stages.Classify(post.ChannelID) != StageListening {
		return
	}

	// An author we cannot resolve is referenced by plain ID; a mention of
	// an unknown name would never resolve in clients.
	author := post.AuthorID
	if member, err := d.platform.FetchMember(ctx, post.AuthorID); err == nil {
		author = d.platform.Mention(member)
	} else {
		d.log.Warn().Err(err).Str("author_id", post.AuthorID).Msg("Failed to fetch relay author")
	}

	jump := d.platform.JumpLink(post.ChannelID, post.ID)
	for _, attachment := range post.Attachments {
		// Line order matters: the jump link must stay second-to-last so
		// the relay's locator can be recovered later.
		text := d.catalog.Format("relay_header", author) + "\n" + post.Text + "\n" + jump + "\n" + attachment
		if _, err := d.platform.SendMessage(ctx, d.cfg.Channels.Verification, text, nil); err != nil {
			d.log.Error().Err(err).Str("post_id", post.ID).Msg("Failed to relay post for verification")
		}
	}
}

// handleActionInvoked decides what a publish/remove action means from the
// target message's stage.
func (d *Dispatcher) handleActionInvoked(ctx context.Context, actorID string, target *Post) {
	stage := d.stages.Classify(target.ChannelID)
	d.log.Debug().
		Str("stage", stage.String()).
		Str("target_id", target.ID).
		Str("actor_id", actorID).
		Msg("Action invoked")

	switch stage {
	case StageVerification:
		d.publishVerified(ctx, actorID, target)
	case StageSelfCurated:
		d.publishSelfCurated(ctx, actorID, target)
	case StageShowcase:
		d.removeShowcase(ctx, actorID, target)
	case StageListening, StageUnhandled:
		d.log.Debug().Err(ErrWrongChannel).Str("channel_id", target.ChannelID).Msg("Action rejected")
		d.ack(ctx, actorID, d.catalog.Get("ack_wrong_channel"))
	}
}

// publishVerified publishes the original behind a verification relay into
// the gallery channel.
func (d *Dispatcher) publishVerified(ctx context.Context, actorID string, relay *Post) {
	unlock := d.guard.Lock(relay.ID)
	defer unlock()

	actor, err := d.platform.FetchMember(ctx, actorID)
	if err != nil && !errors.Is(err, ErrPlatformNotFound) {
		d.reject(ctx, actorID, relay.ID, d.catalog.Get("ack_failure"))
		return
	}
	if err := RequireRoles(actor, d.cfg.Roles.Verify); err != nil {
		d.reject(ctx, actorID, relay.ID, d.unauthorizedMessage(d.cfg.Roles.Verify))
		return
	}

	if err := d.guard.EnsureUnhandled(ctx, relay.ID); err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			// Idempotent no-op: no re-marking, just tell the actor.
			d.ack(ctx, actorID, d.catalog.Get("ack_already_handled"))
			return
		}
		d.reject(ctx, actorID, relay.ID, d.catalog.Get("ack_failure"))
		return
	}

	if !relay.AuthorIsSelf {
		d.reject(ctx, actorID, relay.ID, d.catalog.Get("ack_not_relay"))
		return
	}

	original, err := d.resolver.ResolveOriginal(ctx, relay)
	if err != nil {
		d.rejectResolution(ctx, actorID, relay.ID, err)
		return
	}
	author, err := d.platform.FetchMember(ctx, original.AuthorID)
	if err != nil {
		d.rejectResolution(ctx, actorID, relay.ID, asLinkage(err))
		return
	}

	if _, err := d.sendRepost(ctx, RepostGallery, d.cfg.Channels.Gallery, original, author, ""); err != nil {
		d.reject(ctx, actorID, relay.ID, d.catalog.Get("ack_failure"))
		return
	}

	if err := d.guard.MarkHandled(ctx, relay.ID, true); err != nil {
		d.log.Error().Err(err).Str("relay_id", relay.ID).Msg("Failed to mark relay handled")
	}
	d.ack(ctx, actorID, d.catalog.Format("ack_published_gallery",
		d.platform.ChannelLink(d.cfg.Channels.Gallery)))
	d.log.Info().Str("original_id", original.ID).Msg("Published to gallery")
}

// publishSelfCurated publishes a member's own curated post into the
// showcase channel, watermarked when published on another's behalf.
func (d *Dispatcher) publishSelfCurated(ctx context.Context, actorID string, post *Post) {
	unlock := d.guard.Lock(post.ID)
	defer unlock()

	actor, err := d.platform.FetchMember(ctx, actorID)
	if err != nil && !errors.Is(err, ErrPlatformNotFound) {
		d.reject(ctx, actorID, post.ID, d.catalog.Get("ack_failure"))
		return
	}
	if err := RequireRoles(actor, d.cfg.Roles.Showcase); err != nil {
		d.reject(ctx, actorID, post.ID, d.unauthorizedMessage(d.cfg.Roles.Showcase))
		return
	}
	if actorID != post.AuthorID && !d.cfg.AllowPublishForOthers {
		d.reject(ctx, actorID, post.ID, d.catalog.Get("ack_not_author"))
		return
	}

	if err := d.guard.EnsureUnhandled(ctx, post.ID); err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			d.ack(ctx, actorID, d.catalog.Get("ack_already_handled"))
			return
		}
		d.reject(ctx, actorID, post.ID, d.catalog.Get("ack_failure"))
		return
	}

	author := actor
	watermark := ""
	if actorID != post.AuthorID {
		author, err = d.platform.FetchMember(ctx, post.AuthorID)
		if err != nil {
			d.rejectResolution(ctx, actorID, post.ID, asLinkage(err))
			return
		}
		watermark = d.platform.Mention(actor)
	}

	repostLink, err := d.sendRepost(ctx, RepostShowcase, d.cfg.Channels.Showcase, post, author, watermark)
	if err != nil {
		d.reject(ctx, actorID, post.ID, d.catalog.Get("ack_failure"))
		return
	}

	if err := d.guard.MarkHandled(ctx, post.ID, true); err != nil {
		d.log.Error().Err(err).Str("post_id", post.ID).Msg("Failed to mark post handled")
	}
	d.ack(ctx, actorID, d.catalog.Format("ack_published_showcase", repostLink))
	d.log.Info().Str("original_id", post.ID).Msg("Published to showcase")
}

// removeShowcase deletes a showcase repost and clears the original's
// markers so it can be published again. No marker step: the acted-upon
// message is deleted.
func (d *Dispatcher) removeShowcase(ctx context.Context, actorID string, repost *Post) {
	original, err := d.resolver.ResolveOriginal(ctx, repost)
	if err != nil {
		if errors.Is(err, ErrLinkageNotFound) {
			d.ack(ctx, actorID, d.catalog.Get("ack_linkage_not_found"))
		} else {
			d.ack(ctx, actorID, d.catalog.Get("ack_remove_failure"))
		}
		return
	}

	authorized := actorID == original.AuthorID
	if !authorized {
		// The publisher-on-behalf is named in the repost's own watermark.
		if block := repost.Block(); block != nil && block.Pretext != "" {
			if actor, err := d.platform.FetchMember(ctx, actorID); err == nil &&
				containsMention(block.Pretext, d.platform.Mention(actor)) {
				authorized = true
			}
		}
	}
	if !authorized {
		d.ack(ctx, actorID, d.catalog.Get("ack_not_remover"))
		return
	}

	if err := d.platform.DeleteMessage(ctx, repost.ID); err != nil {
		d.ack(ctx, actorID, d.catalog.Get("ack_remove_failure"))
		return
	}
	if err := d.guard.ClearHandled(ctx, original.ID); err != nil {
		d.log.Error().Err(err).Str("original_id", original.ID).Msg("Failed to clear markers after removal")
	}
	d.ack(ctx, actorID, d.catalog.Format("ack_removed",
		d.platform.JumpLink(original.ChannelID, original.ID)))
	d.log.Info().Str("repost_id", repost.ID).Str("original_id", original.ID).Msg("Removed showcase repost")
}

// sendRepost builds and sends a repost block for the given source post,
// returning the new repost's jump link.
func (d *Dispatcher) sendRepost(ctx context.Context, kind RepostKind, targetChannel string, source *Post, author *Member, watermark string) (string, error) {
	channelName := source.ChannelID
	if ch, err := d.platform.FetchChannel(ctx, source.ChannelID); err == nil {
		channelName = ch.DisplayName
	}

	block := d.formatter.Build(FormatInput{
		Kind:             kind,
		Source:           source,
		Author:           author,
		ChannelName:      channelName,
		JumpLink:         d.platform.JumpLink(source.ChannelID, source.ID),
		PublisherMention: watermark,
	})

	repost, err := d.platform.SendMessage(ctx, targetChannel, "", block)
	if err != nil {
		d.log.Error().Err(err).Str("channel_id", targetChannel).Msg("Failed to send repost")
		return "", err
	}
	return d.platform.JumpLink(targetChannel, repost.ID), nil
}

// reject attaches a failure marker to the acted-upon message and delivers
// the acknowledgment. Marker failure is logged, never surfaced: the ack is
// the one response the actor gets.
func (d *Dispatcher) reject(ctx context.Context, actorID, targetID, text string) {
	if err := d.guard.MarkHandled(ctx, targetID, false); err != nil {
		d.log.Error().Err(err).Str("target_id", targetID).Msg("Failed to attach failure marker")
	}
	d.ack(ctx, actorID, text)
}

// rejectResolution maps a resolver error to the right acknowledgment.
func (d *Dispatcher) rejectResolution(ctx context.Context, actorID, targetID string, err error) {
	if errors.Is(err, ErrLinkageNotFound) {
		d.reject(ctx, actorID, targetID, d.catalog.Get("ack_linkage_not_found"))
		return
	}
	d.reject(ctx, actorID, targetID, d.catalog.Get("ack_failure"))
}

func (d *Dispatcher) ack(ctx context.Context, userID, text string) {
	if err := d.platform.SendDirect(ctx, userID, text); err != nil {
		d.log.Error().Err(err).Str("user_id", userID).Msg("Failed to deliver acknowledgment")
	}
}

func (d *Dispatcher) unauthorizedMessage(required []string) string {
	names := make([]string, len(required))
	for i, role := range required {
		names[i] = d.platform.RoleName(role)
	}
	return d.catalog.Format("ack_unauthorized",
		strings.Join(names, ", "),
		d.platform.ChannelLink(d.cfg.Channels.Roles))
}

func asLinkage(err error) error {
	if errors.Is(err, ErrPlatformNotFound) {
		return ErrLinkageNotFound
	}
	return err
}

// containsMention reports whether text names mention as a whole token. A
// plain substring check would let @cura match a watermark naming @curator.
func containsMention(text, mention string) bool {
	if mention == "" {
		return false
	}
	for off := 0; ; {
		idx := strings.Index(text[off:], mention)
		if idx < 0 {
			return false
		}
		end := off + idx + len(mention)
		if end == len(text) || !isUsernameByte(text[end]) {
			return true
		}
		off = end
	}
}

// isUsernameByte matches the characters Mattermost allows in usernames.
func isUsernameByte(b byte) bool {
	return b == '.' || b == '-' || b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
