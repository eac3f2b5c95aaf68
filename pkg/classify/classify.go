// Package classify implements the deterministic, stateless ticket
// classifier: urgency, sentiment, and actionability from subject/message
// text. Grounded on the keyword-list algorithm of the original
// classify_service.py; matching is substring containment, not word
// boundary — that is part of the contract, not a bug.
package classify

import "strings"

// Urgency levels, ordered low to high.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Sentiment classes.
type Sentiment string

const (
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentPositive Sentiment = "positive"
)

// Result is the classifier's verdict for one ticket.
type Result struct {
	Urgency        Urgency
	Sentiment      Sentiment
	RequiresAction bool
}

var highUrgencyKeywords = []string{
	"urgent", "critical", "emergency", "asap", "immediately", "lawsuit",
	"legal", "lawyer", "attorney", "court", "refund", "chargeback", "fraud",
	"security breach", "data breach", "gdpr", "compliance", "violation",
	"outage", "down", "not working", "broken", "crashed",
}

var mediumUrgencyKeywords = []string{
	"issue", "problem", "error", "bug", "concern", "complaint", "unhappy",
	"dissatisfied", "disappointed",
}

var negativeKeywords = []string{
	"angry", "frustrated", "terrible", "awful", "horrible", "worst", "hate",
	"useless", "broken", "disappointed", "unacceptable", "poor", "bad",
	"annoyed", "upset",
}

var positiveKeywords = []string{
	"thank", "thanks", "appreciate", "great", "excellent", "good", "happy",
	"satisfied", "wonderful", "love",
}

var actionRequiredKeywords = []string{
	"refund", "cancel", "delete", "remove", "fix", "help", "urgent", "asap",
	"immediately", "lawsuit", "legal", "gdpr", "compliance", "broken",
	"not working", "error", "issue",
}

// Classify evaluates a ticket's subject and message and returns the
// derived urgency, sentiment, and requires_action verdict.
func Classify(subject, message string) Result {
	text := strings.ToLower(subject + " " + message)

	return Result{
		Urgency:        classifyUrgency(text),
		Sentiment:      classifySentiment(text),
		RequiresAction: containsAny(text, actionRequiredKeywords),
	}
}

func classifyUrgency(text string) Urgency {
	if containsAny(text, highUrgencyKeywords) {
		return UrgencyHigh
	}
	if containsAny(text, mediumUrgencyKeywords) {
		return UrgencyMedium
	}
	return UrgencyLow
}

func classifySentiment(text string) Sentiment {
	// Negative precedence is deliberate: a ticket mentioning both negative
	// and positive terms is treated as negative.
	if containsAny(text, negativeKeywords) {
		return SentimentNegative
	}
	if containsAny(text, positiveKeywords) {
		return SentimentPositive
	}
	return SentimentNeutral
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
