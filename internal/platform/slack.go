// Package platform implements the Chat-platform Interface (C10, spec
// §4.10/§6): the inbound event loop and outbound PostMessage/
// DeleteMessage/DownloadFile binding that internal/pipeline depends on
// but doesn't implement itself. Grounded on the teacher's
// internal/channels/slack/adapter.go for the Socket Mode wiring
// (slack-go/slack + slackevents + socketmode) and on
// original_source/slack_bot/file_uploader.py's
// download_file_from_slack_async for the attachment-download retry and
// expired-link handling.
package platform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/earchibald/brainbridge/internal/models"
	"github.com/earchibald/brainbridge/internal/pipeline"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// Config holds the Slack app credentials, identical in shape to the
// teacher's slack.Config.
type Config struct {
	BotToken string // xoxb- token for Web API calls
	AppToken string // xapp- token for Socket Mode
}

// SlackAdapter routes Slack DM events into a pipeline.Pipeline and
// implements pipeline.Platform (and pipeline.SaveAffordance) for the
// pipeline's outbound calls.
type SlackAdapter struct {
	cfg          Config
	client       *slack.Client
	socketClient *socketmode.Client
	httpClient   *http.Client
	pipe         *pipeline.Pipeline
	useShim      bool
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	botUserIDMu sync.RWMutex
	botUserID   string
}

// NewSlackAdapter wires a Slack Socket Mode client to a pipeline.
// useShim tells the pipeline whether the active provider needs
// shim-mode tool prompting (native-function-calling providers don't).
func NewSlackAdapter(cfg Config, pipe *pipeline.Pipeline, useShim bool, logger *slog.Logger) *SlackAdapter {
	client := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	socketClient := socketmode.New(client, socketmode.OptionDebug(false))
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackAdapter{
		cfg:          cfg,
		client:       client,
		socketClient: socketClient,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pipe:         pipe,
		useShim:      useShim,
		logger:       logger.With("component", "slack_adapter"),
	}
}

// SetPipeline assigns the pipeline after construction, for the case
// where the pipeline's own Config needs this adapter as its Platform
// collaborator before the pipeline exists (see cmd/brainbridge's
// wiring order).
func (a *SlackAdapter) SetPipeline(pipe *pipeline.Pipeline) {
	a.pipe = pipe
}

// Start authenticates, then runs the event loop and Socket Mode
// connection in background goroutines.
func (a *SlackAdapter) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	auth, err := a.client.AuthTest()
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	a.botUserIDMu.Lock()
	a.botUserID = auth.UserID
	a.botUserIDMu.Unlock()
	a.logger.Info("slack adapter authenticated", "bot_user_id", auth.UserID)

	a.wg.Add(1)
	go a.handleEvents()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.socketClient.Run(); err != nil {
			a.logger.Error("socket mode run failed", "error", err)
		}
	}()

	return nil
}

// Stop cancels the event loop and waits (bounded by ctx) for both
// background goroutines to exit.
func (a *SlackAdapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *SlackAdapter) handleEvents() {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case event, ok := <-a.socketClient.Events:
			if !ok {
				return
			}
			switch event.Type {
			case socketmode.EventTypeEventsAPI:
				a.handleEventsAPI(event)
			case socketmode.EventTypeSlashCommand, socketmode.EventTypeInteractive:
				// Slash commands and interactive components are UI
				// surfaces, not core pipeline scope (spec §4.10); just
				// acknowledge so Slack doesn't retry delivery.
				a.socketClient.Ack(*event.Request)
			}
		}
	}
}

func (a *SlackAdapter) handleEventsAPI(event socketmode.Event) {
	eventsAPIEvent, ok := event.Data.(slackevents.EventsAPIEvent)
	if !ok {
		a.socketClient.Ack(*event.Request)
		return
	}
	a.socketClient.Ack(*event.Request)

	if eventsAPIEvent.Type != slackevents.CallbackEvent {
		return
	}
	msgEvent, ok := eventsAPIEvent.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}

	// Bot-originated messages and non-file-share subtypes are filtered
	// here, since only this adapter knows Slack's event shape (spec
	// §4.10 leaves bot/non-DM filtering to the platform adapter).
	if msgEvent.BotID != "" {
		return
	}
	if msgEvent.SubType != "" && msgEvent.SubType != "file_share" {
		return
	}
	if !strings.HasPrefix(msgEvent.Channel, "D") {
		return // only direct messages are in scope, per spec §4.10
	}

	in := a.toInbound(msgEvent)
	a.pipe.Handle(a.ctx, in)
}

func (a *SlackAdapter) toInbound(event *slackevents.MessageEvent) pipeline.Inbound {
	threadID := event.ThreadTimeStamp
	if threadID == "" {
		threadID = event.TimeStamp
	}

	var urls []string
	if event.Message != nil {
		for _, f := range event.Message.Files {
			urls = append(urls, f.URLPrivateDownload)
		}
	}

	createdAt := time.Now()
	if sec, nsec, err := parseSlackTimestamp(event.TimeStamp); err == nil {
		createdAt = time.Unix(sec, nsec)
	}

	evt := &models.InboundEvent{
		EventID:        event.Channel + ":" + event.TimeStamp,
		UserID:         event.User,
		ThreadID:       threadID,
		Text:           stripMentions(event.Text),
		HasAttachments: len(urls) > 0,
		AttachmentURLs: urls,
		Timestamp:      createdAt,
	}

	return pipeline.Inbound{
		Event:       evt,
		Channel:     event.Channel,
		BearerToken: a.cfg.BotToken,
		UseShim:     a.useShim,
	}
}

// stripMentions removes <@USERID> mentions from message text, mirroring
// the teacher's convertSlackMessage mention-stripping loop.
func stripMentions(text string) string {
	for strings.Contains(text, "<@") {
		start := strings.Index(text, "<@")
		end := strings.Index(text[start:], ">")
		if end == -1 {
			break
		}
		text = text[:start] + text[start+end+1:]
	}
	return strings.TrimSpace(text)
}

func parseSlackTimestamp(ts string) (sec, nsec int64, err error) {
	parts := strings.SplitN(ts, ".", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid slack timestamp: %q", ts)
	}
	if _, err := fmt.Sscanf(ts, "%d.%d", &sec, &nsec); err != nil {
		return 0, 0, err
	}
	return sec, nsec * 1000, nil
}

// PostMessage implements pipeline.Platform.
func (a *SlackAdapter) PostMessage(ctx context.Context, channel, text, threadID string) (string, error) {
	options := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadID != "" {
		options = append(options, slack.MsgOptionTS(threadID))
	}
	_, timestamp, err := a.client.PostMessageContext(ctx, channel, options...)
	if err != nil {
		return "", fmt.Errorf("post slack message: %w", err)
	}
	return timestamp, nil
}

// DeleteMessage implements pipeline.Platform.
func (a *SlackAdapter) DeleteMessage(ctx context.Context, channel, messageID string) error {
	_, _, err := a.client.DeleteMessageContext(ctx, channel, messageID)
	if err != nil {
		return fmt.Errorf("delete slack message: %w", err)
	}
	return nil
}

// DownloadFile implements pipeline.Platform, grounded on
// file_uploader.py's download_file_from_slack_async: Bearer-auth GET,
// retried once without the Authorization header on a 401, an HTML
// Content-Type treated as an expired-link login-page redirect, and
// 403/410 surfaced as a friendlier "link expired" error.
func (a *SlackAdapter) DownloadFile(ctx context.Context, url, bearerToken string) ([]byte, error) {
	data, err := a.downloadOnce(ctx, url, bearerToken)
	if err != nil && isUnauthorized(err) {
		a.logger.Warn("slack file download got 401, retrying without auth", "url", url)
		data, err = a.downloadOnce(ctx, url, "")
	}
	return data, err
}

type httpStatusError struct {
	status int
	msg    string
}

func (e *httpStatusError) Error() string { return e.msg }

func isUnauthorized(err error) bool {
	se, ok := err.(*httpStatusError)
	return ok && se.status == http.StatusUnauthorized
}

func (a *SlackAdapter) downloadOnce(ctx context.Context, url, bearerToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusGone:
		return nil, &httpStatusError{status: resp.StatusCode, msg: "file link has expired, please re-upload the file"}
	case http.StatusUnauthorized:
		return nil, &httpStatusError{status: resp.StatusCode, msg: "unauthorized"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, maxDownloadBytes)); err != nil {
		return nil, fmt.Errorf("read download body: %w", err)
	}
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("download file: got an HTML response, the link has likely expired")
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("download file: empty response body")
	}
	return buf.Bytes(), nil
}

const maxDownloadBytes = 50 * 1024 * 1024

// OfferSaveToNotes implements pipeline.SaveAffordance: posts an
// interactive Block Kit button offering to save the user's turn into
// notes, mirroring file_uploader.py's build_folder_selection_blocks
// interactive-button idiom, simplified to a single confirm action
// (folder selection is a richer UI surface out of core scope).
func (a *SlackAdapter) OfferSaveToNotes(ctx context.Context, channel, threadID, userText string) error {
	button := slack.NewButtonBlockElement(
		"save_to_notes",
		threadID,
		slack.NewTextBlockObject(slack.PlainTextType, "Save to notes", false, false),
	)
	actions := slack.NewActionBlock("save_to_notes_actions", button)
	prompt := slack.NewTextBlockObject(slack.MarkdownType, "This looks worth saving — want me to add it to your notes?", false, false)
	section := slack.NewSectionBlock(prompt, nil, nil)

	options := []slack.MsgOption{slack.MsgOptionBlocks(section, actions)}
	if threadID != "" {
		options = append(options, slack.MsgOptionTS(threadID))
	}
	_, _, err := a.client.PostMessageContext(ctx, channel, options...)
	if err != nil {
		return fmt.Errorf("post save-to-notes affordance: %w", err)
	}
	return nil
}
