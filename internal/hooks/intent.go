package hooks

import (
	"regexp"
	"strings"

	"github.com/earchibald/brainbridge/internal/models"
)

// Keyword sets grounded verbatim on
// _examples/original_source/slack_bot/hooks/intent_classifier.py, in its
// original branch order: greeting → research → personal → knowledge →
// task → general.
var (
	greetingKeywords = set(
		"hi", "hello", "hey", "thanks", "thank you", "bye", "goodbye",
		"good morning", "good evening", "morning", "evening", "howdy",
	)

	personalSignals = set("my", "me", "i", "i'm", "i've", "mine", "myself")

	personalKeywords = set(
		"preference", "prefer", "favorite", "health", "medication",
		"family", "wife", "husband", "son", "daughter", "kids",
		"goal", "goals", "remind", "remember", "stored", "facts",
		"like", "dislike", "allergy", "allergic", "diet",
	)

	knowledgeSignals = set(
		"what", "how", "why", "when", "where", "who", "which",
		"explain", "describe", "tell me about", "what's",
	)

	knowledgeKeywords = set(
		"note", "notes", "document", "project", "plan", "idea",
		"wrote", "written", "saved", "brain", "knowledge base",
	)

	researchKeywords = set(
		"search", "find", "look up", "lookup", "google", "web",
		"current", "latest", "news", "today", "recent", "now",
		"2024", "2025", "2026",
	)

	taskKeywords = set(
		"create", "make", "generate", "write", "draft", "build",
		"update", "change", "modify", "delete", "remove", "add",
	)
)

func set(words ...string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[w] = true
	}
	return out
}

var tokenRe = regexp.MustCompile(`[a-z]+`)

func tokenize(text string) map[string]bool {
	words := tokenRe.FindAllString(strings.ToLower(text), -1)
	return set(words...)
}

func overlaps(words map[string]bool, keywords map[string]bool) bool {
	for w := range words {
		if keywords[w] {
			return true
		}
	}
	return false
}

func containsAny(textLower string, phrases map[string]bool) bool {
	for phrase := range phrases {
		if strings.Contains(textLower, phrase) {
			return true
		}
	}
	return false
}

// ClassifyIntent applies the rule-based keyword classifier to text, in
// the exact branch order of intent_classifier.py's classify_intent.
func ClassifyIntent(text string) models.IntentClassification {
	textLower := strings.ToLower(strings.TrimSpace(text))
	words := tokenize(textLower)

	if len(words) <= 3 && overlaps(words, greetingKeywords) {
		return models.IntentClassification{
			Intent: models.IntentGreeting, Confidence: 0.9,
			EnableBrain: false, EnableWeb: false, EnableFacts: false,
		}
	}

	if containsAny(textLower, researchKeywords) {
		return models.IntentClassification{
			Intent: models.IntentResearch, Confidence: 0.8,
			EnableBrain: false, EnableWeb: true, EnableFacts: false,
		}
	}

	if overlaps(words, personalSignals) && containsAny(textLower, personalKeywords) {
		return models.IntentClassification{
			Intent: models.IntentPersonal, Confidence: 0.85,
			EnableBrain: false, EnableWeb: false, EnableFacts: true,
		}
	}

	if overlaps(words, knowledgeSignals) || containsAny(textLower, knowledgeKeywords) {
		return models.IntentClassification{
			Intent: models.IntentKnowledge, Confidence: 0.75,
			EnableBrain: true, EnableWeb: false, EnableFacts: false,
		}
	}

	if overlaps(words, taskKeywords) {
		return models.IntentClassification{
			Intent: models.IntentTask, Confidence: 0.7,
			EnableBrain: false, EnableWeb: false, EnableFacts: false,
		}
	}

	return models.IntentClassification{
		Intent: models.IntentGeneral, Confidence: 0.5,
		EnableBrain: true, EnableWeb: false, EnableFacts: true,
	}
}

// IntentClassifierPreHook wraps ClassifyIntent as a pipeline PreHook,
// storing the result on the event for the Context Composer to read.
func IntentClassifierPreHook(event *models.InboundEvent) {
	if event == nil || strings.TrimSpace(event.Text) == "" {
		return
	}
	classification := ClassifyIntent(event.Text)
	event.Classification = &classification
}
