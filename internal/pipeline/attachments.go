package pipeline

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"
)

// AttachmentExtractor turns one downloaded attachment into LLM-readable
// text, dispatched by content type, per spec §4.9 step 6
// ({text/*, pdf, common code/config types}).
type AttachmentExtractor interface {
	Extract(ctx context.Context, contentType string, data []byte) (string, error)
}

// DefaultExtractor handles text/* and common code/config content by
// reading it as UTF-8 text. No PDF (or other binary document format)
// parser is wired: none of the retrieval pack's example repos or
// other_examples/ files import a PDF-parsing library, so rather than
// fabricate a dependency this degrades to a placeholder string for
// binary formats it can't decode — see DESIGN.md's justification entry
// for internal/pipeline.
type DefaultExtractor struct{}

// Extract returns attachment text, or a short placeholder when the
// content can't be decoded as text.
func (DefaultExtractor) Extract(_ context.Context, contentType string, data []byte) (string, error) {
	if isTextualContentType(contentType) && utf8.Valid(data) {
		return string(data), nil
	}
	return "[attachment: " + contentType + ", " + strconv.Itoa(len(data)) + " bytes — content not extracted]", nil
}

func isTextualContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "text/") {
		return true
	}
	switch {
	case strings.Contains(ct, "json"),
		strings.Contains(ct, "yaml"),
		strings.Contains(ct, "xml"),
		strings.Contains(ct, "x-sh"),
		strings.Contains(ct, "javascript"),
		strings.Contains(ct, "x-python"),
		strings.Contains(ct, "markdown"):
		return true
	}
	return false
}

// extractAttachments downloads and extracts every attachment URL,
// recording but not failing on a per-attachment error, per spec §4.9
// step 6 ("on failure, record but continue").
func (p *Pipeline) extractAttachments(ctx context.Context, urls []string, bearerToken string) string {
	if len(urls) == 0 {
		return ""
	}

	var parts []string
	for _, url := range urls {
		data, err := p.platform.DownloadFile(ctx, url, bearerToken)
		if err != nil {
			p.logger.Warn("attachment download failed", "url", url, "error", err)
			continue
		}
		text, err := p.extractor.Extract(ctx, http.DetectContentType(data), data)
		if err != nil {
			p.logger.Warn("attachment extraction failed", "url", url, "error", err)
			continue
		}
		parts = append(parts, text)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n\n")
}
