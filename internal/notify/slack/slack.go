// Package slack implements the notify Adapter for Slack.
package slack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/dialflow/floorwatch/internal/notify"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// client abstracts the Slack API methods we use, enabling test mocks.
type client interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter posts presence alerts to a single Slack channel.
type Adapter struct {
	client    client
	channelID string
}

// New returns an Adapter posting to channelID with the given bot token.
func New(token, channelID string) (*Adapter, error) {
	if token == "" {
		return nil, fmt.Errorf("slack: token is required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	return &Adapter{client: slackapi.New(token), channelID: channelID}, nil
}

// Send posts the alert as an attachment, retrying on rate limits.
func (a *Adapter) Send(ctx context.Context, alert notify.Alert) error {
	options := []slackapi.MsgOption{
		slackapi.MsgOptionAttachments(toAttachment(alert)),
	}
	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := a.client.PostMessage(a.channelID, options...)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// Close is a no-op; the Slack web API client holds no connection.
func (a *Adapter) Close() error {
	return nil
}

// toAttachment converts an Alert to a Slack Attachment.
func toAttachment(alert notify.Alert) slackapi.Attachment {
	att := slackapi.Attachment{
		Title: alert.Title,
		Text:  alert.Body,
		Color: severityColor(alert.Severity),
	}
	if alert.AgentID != "" {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: "Agent",
			Value: alert.AgentID,
			Short: true,
		})
	}
	if !alert.Timestamp.IsZero() {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: "When",
			Value: alert.Timestamp.Format(time.RFC3339),
			Short: true,
		})
	}
	return att
}

// severityColor maps alert severity to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case notify.SeverityError:
		return "#d50200"
	case notify.SeverityWarning:
		return "#de9e31"
	default:
		return "#36a64f"
	}
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit
// errors. It respects context cancellation.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err // not a rate limit error, don't retry
		}

		if attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
