// Package notify delivers matched listings and operator alerts through the
// Telegram Bot API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/LiuAnBoy/591-rent-helper-server/pkg/listing"
)

const apiBase = "https://api.telegram.org/bot"

// Telegram sends listing notifications to per-subscription chat targets and
// operator alerts to a fixed admin chat.
type Telegram struct {
	client    *retryablehttp.Client
	token     string
	adminChat string
}

// NewTelegram builds a sink for the given bot token. adminChat may be empty,
// which silently drops operator alerts.
func NewTelegram(token, adminChat string) *Telegram {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil
	return &Telegram{client: client, token: token, adminChat: adminChat}
}

// Send delivers one matched listing to a subscription's chat target.
func (t *Telegram) Send(ctx context.Context, target string, l *listing.Listing, subName string) error {
	return t.sendMessage(ctx, target, formatListing(l, subName))
}

// Alert reports an operator-facing failure to the admin chat.
func (t *Telegram) Alert(ctx context.Context, kind string, region int, details string) error {
	if t.adminChat == "" {
		return nil
	}
	text := fmt.Sprintf("⚠️ <b>%s</b>\nregion: %d\n%s", escape(kind), region, escape(details))
	return t.sendMessage(ctx, t.adminChat, text)
}

func (t *Telegram) sendMessage(ctx context.Context, chatID, text string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST",
		apiBase+t.token+"/sendMessage", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram send: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func formatListing(l *listing.Listing, subName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏠 <b>%s</b>\n", escape(l.Title))
	if subName != "" {
		fmt.Fprintf(&b, "條件: %s\n", escape(subName))
	}
	if l.Price != nil {
		fmt.Fprintf(&b, "💰 %d %s\n", *l.Price, escape(l.PriceUnit))
	}
	if l.KindName != "" {
		fmt.Fprintf(&b, "🏢 %s", escape(l.KindName))
		if l.LayoutStr != "" {
			fmt.Fprintf(&b, " / %s", escape(l.LayoutStr))
		}
		if l.Area != nil {
			fmt.Fprintf(&b, " / %.1f坪", *l.Area)
		}
		b.WriteString("\n")
	}
	if l.FloorStr != "" {
		fmt.Fprintf(&b, "🪜 %s\n", escape(l.FloorStr))
	}
	if l.Address != "" {
		fmt.Fprintf(&b, "📍 %s\n", escape(l.Address))
	}
	if l.SurroundingDesc != "" {
		fmt.Fprintf(&b, "🚇 %s\n", escape(l.SurroundingDesc))
	}
	fmt.Fprintf(&b, "🔗 %s", escape(l.URL))
	return b.String()
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
