// Package youtube streams top-level comments of a video through the
// YouTube Data API v3.
package youtube

import (
	"context"
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/TobiSchelling/hypetrack/internal/collect"
	"github.com/TobiSchelling/hypetrack/internal/config"
	"github.com/TobiSchelling/hypetrack/internal/logging"
)

// Client pages through commentThreads.list. It implements collect.Source.
type Client struct {
	apiKey     string
	pageSize   int64
	order      string
	textFormat string
	limiter    *rate.Limiter
	policy     *bluemonday.Policy
	opts       []option.ClientOption
	logger     *zap.Logger
}

// NewClient builds a client from the source config. The API key is read from
// the configured environment variable; extra options are appended after it,
// which lets tests point the client at a local endpoint.
func NewClient(cfg config.YouTube, logger *zap.Logger, opts ...option.ClientOption) *Client {
	delay := cfg.PageDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	order := cfg.Order
	if order == "" {
		order = "time"
	}
	textFormat := cfg.TextFormat
	if textFormat == "" {
		textFormat = "html"
	}
	return &Client{
		apiKey:     os.Getenv(cfg.APIKeyEnv),
		pageSize:   pageSize,
		order:      order,
		textFormat: textFormat,
		limiter:    rate.NewLimiter(rate.Every(delay), 1),
		policy:     bluemonday.StrictPolicy(),
		opts:       opts,
		logger:     logging.OrNop(logger).Named("youtube"),
	}
}

// IsConfigured returns whether the API key is available.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Comments calls fn for every top-level comment on the video, following
// nextPageToken until the last page. Successive page requests are paced by
// the client's limiter.
func (c *Client) Comments(ctx context.Context, contentID string, fn func(collect.RawComment) error) error {
	if !c.IsConfigured() {
		return fmt.Errorf("youtube: no API key: %w", collect.ErrSourceUnavailable)
	}

	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.opts...)
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("youtube: creating service: %w", err)
	}

	pageToken := ""
	pages := 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		call := svc.CommentThreads.List([]string{"snippet"}).
			VideoId(contentID).
			MaxResults(c.pageSize).
			Order(c.order).
			TextFormat(c.textFormat).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return fmt.Errorf("youtube: page %d of %s: %w", pages+1, contentID, err)
		}
		pages++

		for _, item := range resp.Items {
			if item.Snippet == nil || item.Snippet.TopLevelComment == nil || item.Snippet.TopLevelComment.Snippet == nil {
				continue
			}
			s := item.Snippet.TopLevelComment.Snippet
			if err := fn(collect.RawComment{
				Text:        c.plainText(s.TextDisplay),
				PublishedAt: s.PublishedAt,
			}); err != nil {
				return err
			}
		}

		c.logger.Debug("Fetched comment page",
			zap.String("video", contentID),
			zap.Int("page", pages),
			zap.Int("items", len(resp.Items)))

		if resp.NextPageToken == "" {
			return nil
		}
		pageToken = resp.NextPageToken
	}
}

// plainText reduces html-formatted comment text to plain text. Line breaks
// become newlines before tags are stripped.
func (c *Client) plainText(s string) string {
	if c.textFormat != "html" {
		return s
	}
	s = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n").Replace(s)
	return html.UnescapeString(c.policy.Sanitize(s))
}
