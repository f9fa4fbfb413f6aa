// Package pipeline implements the Message Pipeline (C9): the top-level
// per-message orchestrator, spec §4.9. Grounded on the teacher's
// internal/gateway/processing.go for the concurrency idiom (a buffered
// channel used as a counting semaphore, one goroutine per inbound
// message, sync.WaitGroup for graceful drain) and on spec.md §4.9's
// exact 12-step control flow for behavior, since original_source's
// retrieval pack has no single orchestrator file — slack_bot.py wires
// the pieces at a higher level than what was captured in the dump.
package pipeline

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/earchibald/brainbridge/internal/compose"
	"github.com/earchibald/brainbridge/internal/conversation"
	"github.com/earchibald/brainbridge/internal/dedupe"
	"github.com/earchibald/brainbridge/internal/hooks"
	"github.com/earchibald/brainbridge/internal/models"
	"github.com/earchibald/brainbridge/internal/providers"
	"github.com/earchibald/brainbridge/internal/toolexec"
)

// maxConcurrentMessages bounds how many inbound messages are processed
// at once, mirroring processing.go's messageSem-guarded handler
// goroutines (there sized from config; here a fixed, generous default
// since the ambient stack has no analogous gateway-wide config knob).
const maxConcurrentMessages = 16

// workingIndicatorText is posted as the transient "thinking" message
// (spec §4.9 step 3) and deleted once the real reply is ready.
const workingIndicatorText = "_thinking…_"

// Inbound is the normalized envelope a platform adapter hands to
// Handle: the event itself plus the platform-specific routing/auth
// details (channel id to post into, bearer token for file downloads)
// that models.InboundEvent intentionally leaves out (it's the
// platform-agnostic core shape; channel/token are platform specifics).
type Inbound struct {
	Event       *models.InboundEvent
	Channel     string
	BearerToken string
	UseShim     bool // true if the active provider needs shim-mode tool prompting
}

// Pipeline wires every other component together behind the single
// Handle entrypoint a platform adapter calls per inbound DM.
type Pipeline struct {
	dedupe    *dedupe.Store
	hookPipe  *hooks.Pipeline
	composer  *compose.Composer
	providers *providers.Manager
	toolExec  *toolexec.ToolExecutor
	conv      *conversation.Manager
	platform  Platform
	extractor AttachmentExtractor
	logger    *slog.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

// Config bundles Pipeline's collaborators.
type Config struct {
	Dedupe       *dedupe.Store
	HookPipeline *hooks.Pipeline
	Composer     *compose.Composer
	Providers    *providers.Manager
	ToolExecutor *toolexec.ToolExecutor
	Conversation *conversation.Manager
	Platform     Platform
	Extractor    AttachmentExtractor
	Logger       *slog.Logger
}

// New builds a Pipeline from its collaborators.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = DefaultExtractor{}
	}
	return &Pipeline{
		dedupe:    cfg.Dedupe,
		hookPipe:  cfg.HookPipeline,
		composer:  cfg.Composer,
		providers: cfg.Providers,
		toolExec:  cfg.ToolExecutor,
		conv:      cfg.Conversation,
		platform:  cfg.Platform,
		extractor: extractor,
		logger:    logger.With("component", "message_pipeline"),
		sem:       make(chan struct{}, maxConcurrentMessages),
	}
}

// Handle dispatches one inbound message for asynchronous processing,
// bounded by the concurrency semaphore — mirrors processMessages'
// select-on-semaphore-then-go idiom. Returns immediately; use Wait to
// drain in-flight work during shutdown.
func (p *Pipeline) Handle(ctx context.Context, in Inbound) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		p.process(ctx, in)
	}()
}

// Wait blocks until every dispatched Handle call has finished, for
// graceful shutdown.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// process runs the full 12-step control flow for one message.
func (p *Pipeline) process(ctx context.Context, in Inbound) {
	event := in.Event

	// Step 1: idempotence.
	if p.dedupe != nil && p.dedupe.SeenBefore(event.EventID) {
		p.logger.Debug("duplicate event id, skipping", "event_id", event.EventID)
		return
	}

	// Step 2: filter empty/whitespace text. Bot-originated and
	// non-DM filtering is the platform adapter's responsibility,
	// since only it knows its own event shape (spec §4.10).
	if strings.TrimSpace(event.Text) == "" {
		return
	}

	// Step 3: acknowledge with a transient working indicator.
	workingID, ackErr := p.platform.PostMessage(ctx, in.Channel, workingIndicatorText, event.ThreadID)
	if ackErr != nil {
		p.logger.Warn("failed to post working indicator", "error", ackErr)
	}
	cleanupWorking := func() {
		if workingID == "" {
			return
		}
		if err := p.platform.DeleteMessage(ctx, in.Channel, workingID); err != nil {
			p.logger.Warn("failed to delete working indicator", "error", err)
		}
	}

	// Step 4: event envelope is already `event` (built by the
	// platform adapter before calling Handle).

	// Step 5: install a fresh per-request source tracker on the context
	// used by the later steps, then run the pre-process hooks (including
	// intent classification), which take the event but not the context.
	reqCtx := hooks.TrackerInstaller{}.Install(ctx)
	if p.hookPipe != nil {
		p.hookPipe.RunPre(event)
	}

	// Step 6: attachment extraction.
	var attachmentContent string
	if event.HasAttachments {
		attachmentContent = p.extractAttachments(reqCtx, event.AttachmentURLs, in.BearerToken)
	}

	// Step 7: compose the prompt.
	summarizer := managerSummarizer{mgr: p.providers, userID: event.UserID}
	composed, err := p.composer.Build(reqCtx, compose.Request{
		Event:             event,
		UseShimToolPrompt: in.UseShim,
		Summarizer:        summarizer,
		AttachmentContent: attachmentContent,
	})
	if err != nil {
		p.logger.Error("context composition failed", "error", err)
		p.respondWithFailure(ctx, in, workingID)
		cleanupWorking()
		return
	}

	// Step 8: generate, with the shim tool loop driving rounds.
	response, genErr := p.generate(reqCtx, event.UserID, composed, in.UseShim)
	if genErr != nil {
		p.logger.Error("generation failed", "user_id", event.UserID, "error", genErr)
		p.respondWithFailure(ctx, in, workingID)
		cleanupWorking()
		return
	}

	// Step 9: post-process hooks (citations, etc).
	if p.hookPipe != nil {
		response = p.hookPipe.RunPost(response, event)
	}
	response = applyCitations(reqCtx, response, event)

	// Step 10: delete the working indicator, post the response. If
	// posting fails, still persist the turns (step 11) so the
	// exchange isn't lost, then report a friendly error.
	cleanupWorking()
	if _, err := p.platform.PostMessage(ctx, in.Channel, response, event.ThreadID); err != nil {
		p.logger.Error("failed to post response", "error", err)
		p.persistTurns(event, attachmentContent, response)
		_, _ = p.platform.PostMessage(ctx, in.Channel, friendlyPostError, event.ThreadID)
		return
	}

	// Step 11: persist both turns.
	p.persistTurns(event, attachmentContent, response)

	// Step 12: offer a "save to notes" affordance for saveable turns.
	if looksSaveable(event.Text) {
		if affordance, ok := p.platform.(SaveAffordance); ok {
			if err := affordance.OfferSaveToNotes(ctx, in.Channel, event.ThreadID, event.Text); err != nil {
				p.logger.Debug("save-to-notes affordance failed", "error", err)
			}
		}
	}
}

const friendlyPostError = "I generated a response but couldn't post it — please try again."
const friendlyBackendError = "Sorry, the backend is temporarily unavailable. Please try again in a moment."

func (p *Pipeline) respondWithFailure(ctx context.Context, in Inbound, workingID string) {
	if workingID != "" {
		_ = p.platform.DeleteMessage(ctx, in.Channel, workingID)
	}
	_, _ = p.platform.PostMessage(ctx, in.Channel, friendlyBackendError, in.Event.ThreadID)
}

func (p *Pipeline) persistTurns(event *models.InboundEvent, attachmentContent, response string) {
	if p.conv == nil {
		return
	}
	userContent := event.Text
	if strings.TrimSpace(attachmentContent) != "" {
		userContent = attachmentContent + "\n\n" + userContent
	}
	if err := p.conv.Save(event.UserID, event.ThreadID, models.RoleUser, userContent, nil); err != nil {
		p.logger.Warn("failed to persist user turn", "error", err)
	}
	if err := p.conv.Save(event.UserID, event.ThreadID, models.RoleAssistant, response, map[string]any{
		"context_flags": classificationFlags(event.Classification),
	}); err != nil {
		p.logger.Warn("failed to persist assistant turn", "error", err)
	}
}

func classificationFlags(c *models.IntentClassification) map[string]any {
	if c == nil {
		return nil
	}
	return map[string]any{
		"intent":       c.Intent,
		"enable_brain": c.EnableBrain,
		"enable_web":   c.EnableWeb,
		"enable_facts": c.EnableFacts,
	}
}

// generate drives the tool loop (shim or native-via-marker-unification,
// see internal/toolexec) against the composed prompt.
func (p *Pipeline) generate(ctx context.Context, userID string, composed compose.Composed, useShim bool) (string, error) {
	genFn := func(ctx context.Context, messages []providers.Message) (string, error) {
		res, err := p.providers.Generate(ctx, userID, providers.GenerateRequest{
			Messages: messages,
			System:   composed.System,
		})
		if err != nil {
			return "", err
		}
		return res.Text, nil
	}

	if p.toolExec == nil {
		return genFn(ctx, composed.Messages)
	}
	return p.toolExec.RunShimLoop(ctx, composed.Messages, userID, genFn, toolexec.MaxToolRounds)
}

func applyCitations(ctx context.Context, response string, event *models.InboundEvent) string {
	hook := hooks.CitationPostHook(ctx)
	if out, replaced := hook(response, event); replaced {
		return out
	}
	return response
}

// managerSummarizer adapts providers.Manager (whose Generate is keyed
// per-user) to conversation.Summarizer's plain Generate(ctx, req)
// signature.
type managerSummarizer struct {
	mgr    *providers.Manager
	userID string
}

func (s managerSummarizer) Generate(ctx context.Context, req providers.GenerateRequest) (string, error) {
	res, err := s.mgr.Generate(ctx, s.userID, req)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// saveablePatterns flags turns worth offering to save, e.g. "I use
// ...", "my strategy ...", per spec §4.9 step 12.
var saveablePatterns = regexp.MustCompile(`(?i)\b(i use|my strategy|my approach|my workflow|i always|i prefer to|my process)\b`)

func looksSaveable(text string) bool {
	return saveablePatterns.MatchString(text)
}
