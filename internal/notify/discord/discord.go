// Package discord implements the notify Adapter for Discord.
package discord

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/dialflow/floorwatch/internal/notify"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff for rate-limited retries.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 2 * time.Minute
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Close() error
}

// Adapter posts presence alerts to a single Discord channel.
type Adapter struct {
	session   session
	channelID string
}

// New returns an Adapter posting to channelID with the given bot token.
func New(token, channelID string) (*Adapter, error) {
	if token == "" {
		return nil, fmt.Errorf("discord: token is required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("discord: channel is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	return &Adapter{session: s, channelID: channelID}, nil
}

// Send posts the alert as an embed, retrying on rate limits.
func (a *Adapter) Send(ctx context.Context, alert notify.Alert) error {
	embed := toEmbed(alert)
	err := retryOnRateLimit(ctx, func() error {
		_, sendErr := a.session.ChannelMessageSendEmbed(a.channelID, embed)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send embed: %w", err)
	}
	return nil
}

// Close shuts down the underlying session.
func (a *Adapter) Close() error {
	return a.session.Close()
}

// toEmbed converts an Alert to a Discord embed.
func toEmbed(alert notify.Alert) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       alert.Title,
		Description: alert.Body,
		Color:       severityColor(alert.Severity),
	}
	if alert.AgentID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Agent",
			Value:  alert.AgentID,
			Inline: true,
		})
	}
	if !alert.Timestamp.IsZero() {
		embed.Timestamp = alert.Timestamp.Format(time.RFC3339)
	}
	return embed
}

// severityColor maps alert severity to an embed sidebar color.
func severityColor(severity string) int {
	switch severity {
	case notify.SeverityError:
		return 0xd50200
	case notify.SeverityWarning:
		return 0xde9e31
	default:
		return 0x36a64f
	}
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// rate limit errors. It respects context cancellation.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != 429 {
			return err // not a rate limit error
		}

		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * baseBackoff
		if wait > maxBackoff {
			wait = maxBackoff
		}

		log.Printf("discord: rate limited (attempt %d/%d), retrying in %v",
			attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
