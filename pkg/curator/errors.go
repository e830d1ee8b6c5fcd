// Copyright 2022-2026 aquova et al.

package curator

import "errors"

// The workflow's error taxonomy. Every action terminates in exactly one of
// these (or a wrapped transport error) and the dispatcher maps each to a
// single private acknowledgment; none of them ever crashes the process.
var (
	// ErrUnauthorized means the role check failed or the actor may not
	// act on this particular post.
	ErrUnauthorized = errors.New("actor is not authorized")

	// ErrAlreadyHandled means the post already carries a success marker.
	// Idempotent no-op: markers are never re-attached for it.
	ErrAlreadyHandled = errors.New("post already handled")

	// ErrLinkageNotFound means the original post or its channel is no
	// longer resolvable. An expected outcome, not an exceptional one.
	ErrLinkageNotFound = errors.New("original post not found")

	// ErrWrongChannel means the action was invoked outside any
	// recognized stage.
	ErrWrongChannel = errors.New("action invoked in unrecognized channel")

	// ErrPlatformNotFound is returned by Platform lookups that miss
	// (deleted message, unknown channel, departed member).
	ErrPlatformNotFound = errors.New("not found on platform")
)
