package pipeline

import "context"

// Platform is the outbound slice of the Chat-platform Interface (C10,
// spec §6/§4.10) the Message Pipeline needs: posting/deleting messages
// and downloading attachment bytes. The inbound direction (receiving
// events, routing DMs to this package's Handle) lives in
// internal/platform's concrete adapters, which depend on this package —
// not the reverse — so this interface is declared here to avoid a
// cycle.
type Platform interface {
	// PostMessage posts text to a channel (optionally threaded) and
	// returns the platform's message id, needed to later delete a
	// transient "working" indicator.
	PostMessage(ctx context.Context, channel, text, threadID string) (string, error)
	// DeleteMessage removes a previously posted message, e.g. the
	// "working" indicator once the real response is ready.
	DeleteMessage(ctx context.Context, channel, messageID string) error
	// DownloadFile fetches attachment bytes using the platform's bearer
	// token, mirroring file_uploader.py's download_file_from_slack_async.
	DownloadFile(ctx context.Context, url, bearerToken string) ([]byte, error)
}

// SaveAffordance is an optional capability: platforms that support
// interactive components (buttons) can implement this to offer a
// "save to notes" action per spec §4.9 step 12. Platforms without
// interactive UI (or callers that don't need it) simply don't
// implement it; the pipeline checks via a type assertion and skips
// silently when absent — this is a UI surface, not core (spec §4.10).
type SaveAffordance interface {
	OfferSaveToNotes(ctx context.Context, channel, threadID, userText string) error
}
