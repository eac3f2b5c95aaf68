package classify

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		subject        string
		message        string
		wantUrgency    Urgency
		wantSentiment  Sentiment
		wantRequiresAc bool
	}{
		{
			name:           "urgent legal threat",
			subject:        "URGENT: considering legal action",
			message:        "this is unacceptable, my lawyer will be in touch",
			wantUrgency:    UrgencyHigh,
			wantSentiment:  SentimentNegative,
			wantRequiresAc: true,
		},
		{
			name:           "outage report",
			subject:        "Service down",
			message:        "the dashboard is not working since this morning",
			wantUrgency:    UrgencyHigh,
			wantSentiment:  SentimentNeutral,
			wantRequiresAc: true,
		},
		{
			name:           "medium complaint",
			subject:        "Problem with billing",
			message:        "I have an issue with my invoice",
			wantUrgency:    UrgencyMedium,
			wantSentiment:  SentimentNeutral,
			wantRequiresAc: true,
		},
		{
			name:           "thank you note",
			subject:        "Thanks!",
			message:        "Just wanted to say I appreciate the quick help, great service",
			wantUrgency:    UrgencyLow,
			wantSentiment:  SentimentPositive,
			wantRequiresAc: true, // "help" is an action keyword ("quick help")
		},
		{
			name:           "plain question",
			subject:        "Question about pricing",
			message:        "How much does the pro plan cost?",
			wantUrgency:    UrgencyLow,
			wantSentiment:  SentimentNeutral,
			wantRequiresAc: false,
		},
		{
			name:           "negative wins over positive",
			subject:        "Frustrated but thankful",
			message:        "I'm frustrated with the delay, though I appreciate your patience",
			wantUrgency:    UrgencyLow,
			wantSentiment:  SentimentNegative,
			wantRequiresAc: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.subject, tt.message)
			if got.Urgency != tt.wantUrgency {
				t.Errorf("Urgency = %v, want %v", got.Urgency, tt.wantUrgency)
			}
			if got.Sentiment != tt.wantSentiment {
				t.Errorf("Sentiment = %v, want %v", got.Sentiment, tt.wantSentiment)
			}
			if got.RequiresAction != tt.wantRequiresAc {
				t.Errorf("RequiresAction = %v, want %v", got.RequiresAction, tt.wantRequiresAc)
			}
		})
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	got := Classify("URGENT REQUEST", "Please help ASAP")
	if got.Urgency != UrgencyHigh {
		t.Errorf("Urgency = %v, want %v", got.Urgency, UrgencyHigh)
	}
}
