package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// SlackChannel posts high-urgency ticket alerts to a Slack channel,
// independently of the primary HTTP notifier's circuit breaker — a Slack
// outage must never affect notify-endpoint delivery. Adapted from the
// source codebase's messaging.Provider/Registry fan-out pattern
// (pkg/messaging, pkg/slack), collapsed to a single channel with no
// registry; it is enabled only when a bot token is configured.
type SlackChannel struct {
	client  *slack.Client
	channel string
	logger  *slog.Logger
}

// NewSlackChannel builds a SlackChannel. Returns nil if botToken is empty,
// so callers can treat a nil *SlackChannel as "channel disabled".
func NewSlackChannel(botToken, channel string, logger *slog.Logger) *SlackChannel {
	if botToken == "" {
		return nil
	}
	return &SlackChannel{
		client:  slack.New(botToken),
		channel: channel,
		logger:  logger,
	}
}

// Notify posts p as a fire-and-forget Slack message. Failures are logged,
// never propagated.
func (c *SlackChannel) Notify(p Payload) {
	if c == nil {
		return
	}
	go func() {
		text := fmt.Sprintf(":rotating_light: High-urgency ticket %s (tenant %s): %s", p.TicketID, p.TenantID, p.Reason)
		_, _, err := c.client.PostMessageContext(context.Background(), c.channel, slack.MsgOptionText(text, false))
		if err != nil {
			c.logger.Error("slack notify: failed to post message",
				"ticket_id", p.TicketID, "tenant_id", p.TenantID, "error", err)
		}
	}()
}
