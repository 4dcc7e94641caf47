package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ryosukesatoh/paperbot/internal/retry"
)

type discordEmbedFooter struct {
	Text string `json:"text"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	URL         string              `json:"url,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      *discordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

const (
	discordColor      = 0xB31B1B // arXiv red
	discordContentMax = 2000
)

// DiscordPublisher posts digests to a Discord channel via webhook.
type DiscordPublisher struct {
	webhookURL  string
	client      *http.Client
	retryConfig retry.Config
	batchDelay  time.Duration
}

// NewDiscordPublisher creates a new DiscordPublisher.
func NewDiscordPublisher(webhookURL string) *DiscordPublisher {
	return &DiscordPublisher{
		webhookURL:  webhookURL,
		client:      &http.Client{Timeout: 30 * time.Second},
		retryConfig: retry.DefaultConfig(),
		batchDelay:  500 * time.Millisecond,
	}
}

// Publish sends the digest to Discord as a series of rich embeds.
func (d *DiscordPublisher) Publish(ctx context.Context, digest *Digest) error {
	batches := batchEmbeds(d.buildEmbeds(digest))

	for i, batch := range batches {
		payload := discordWebhookPayload{Embeds: batch}
		if err := d.send(ctx, payload); err != nil {
			return fmt.Errorf("discord: failed to send batch %d: %w", i+1, err)
		}

		// Delay between batches to avoid rate limits.
		if i < len(batches)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.batchDelay):
			}
		}
	}
	return nil
}

// Notify posts a plain message.
func (d *DiscordPublisher) Notify(ctx context.Context, text string) error {
	if err := d.send(ctx, discordWebhookPayload{Content: truncate(text, discordContentMax)}); err != nil {
		return fmt.Errorf("discord: failed to send message: %w", err)
	}
	return nil
}

func (d *DiscordPublisher) send(ctx context.Context, payload discordWebhookPayload) error {
	return retry.WithBackoff(ctx, d.retryConfig, func(ctx context.Context) error {
		return d.sendWebhook(ctx, payload)
	})
}

// buildEmbeds creates the header embed and one embed per article.
func (d *DiscordPublisher) buildEmbeds(digest *Digest) []discordEmbed {
	embeds := make([]discordEmbed, 0, len(digest.Articles)+1)

	header := discordEmbed{
		Title:       fmt.Sprintf("Found %d papers on arXiv", len(digest.Articles)),
		Description: truncate("Categories: "+digest.CategoriesString(), 4096),
		Color:       discordColor,
		Footer:      &discordEmbedFooter{Text: digest.Date.Format("2006-01-02")},
		Timestamp:   digest.Date.Format(time.RFC3339),
	}
	if len(digest.Keywords) > 0 {
		header.Fields = []discordEmbedField{{
			Name:  "Keywords",
			Value: truncate(strings.Join(digest.Keywords, ", "), 1024),
		}}
	}
	embeds = append(embeds, header)

	for i, a := range digest.Articles {
		e := discordEmbed{
			Title:       truncate(fmt.Sprintf("[%d/%d] %s", i+1, len(digest.Articles), a.Title), 256),
			URL:         a.Link,
			Description: truncate(a.Summary, 4096),
			Color:       discordColor,
		}

		if len(a.Authors) > 0 {
			e.Footer = &discordEmbedFooter{Text: truncate(strings.Join(a.Authors, ", "), 2048)}
		}

		embeds = append(embeds, e)
	}

	return embeds
}

// batchEmbeds splits embeds into batches respecting Discord limits:
// max 10 embeds per message, max 6000 total characters per message.
func batchEmbeds(embeds []discordEmbed) [][]discordEmbed {
	var batches [][]discordEmbed
	var current []discordEmbed
	currentChars := 0

	for _, e := range embeds {
		ec := embedCharCount(e)

		if len(current) > 0 && (len(current) >= 10 || currentChars+ec > 6000) {
			batches = append(batches, current)
			current = nil
			currentChars = 0
		}

		current = append(current, e)
		currentChars += ec
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}

	return batches
}

// sendWebhook posts one payload to the Discord webhook.
func (d *DiscordPublisher) sendWebhook(ctx context.Context, payload discordWebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &retry.StatusError{Code: resp.StatusCode}
	}

	return nil
}

// truncate shortens s to max characters, preferring a sentence boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	cut := s[:max-1]
	if idx := strings.LastIndexAny(cut, ".!?"); idx > max/2 {
		return cut[:idx+1]
	}
	return cut + "…"
}

// embedCharCount returns the total character count of an embed for batching purposes.
func embedCharCount(e discordEmbed) int {
	n := len(e.Title) + len(e.Description)
	for _, f := range e.Fields {
		n += len(f.Name) + len(f.Value)
	}
	if e.Footer != nil {
		n += len(e.Footer.Text)
	}
	return n
}
