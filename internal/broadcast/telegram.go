package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"ratefeed/internal/httpx"
)

const defaultTelegramURL = "https://api.telegram.org"

// TelegramNotifier posts messages to a chat through the Bot API.
type TelegramNotifier struct {
	baseURL    string
	token      string
	chatID     string
	httpClient httpx.Doer
}

type TelegramOption func(*TelegramNotifier)

func WithTelegramBaseURL(u string) TelegramOption {
	return func(n *TelegramNotifier) {
		if u != "" {
			n.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithTelegramHTTPClient(c httpx.Doer) TelegramOption {
	return func(n *TelegramNotifier) { n.httpClient = c }
}

func NewTelegramNotifier(token, chatID string, options ...TelegramOption) *TelegramNotifier {
	n := &TelegramNotifier{
		baseURL:    defaultTelegramURL,
		token:      token,
		chatID:     chatID,
		httpClient: http.DefaultClient,
	}
	for _, o := range options {
		o(n)
	}
	return n
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type botResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func (n *TelegramNotifier) Notify(ctx context.Context, m Message) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    n.chatID,
		Text:      EscapeMarkdownV2(m.Text),
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		return fmt.Errorf("telegram: encode: %w", err)
	}
	endpoint := n.baseURL + "/bot" + n.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		// url.Error carries the request URL, and with it the bot token
		var ue *url.Error
		if errors.As(err, &ue) {
			return fmt.Errorf("telegram: send: %s: %w", ue.Op, ue.Err)
		}
		return fmt.Errorf("telegram: send: %s", n.redact(err.Error()))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("telegram: read response: %w", err)
	}
	var br botResponse
	if err := json.Unmarshal(raw, &br); err != nil {
		return fmt.Errorf("telegram: status %d: decode response: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !br.OK {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, br.Description)
	}
	return nil
}

func (n *TelegramNotifier) redact(s string) string {
	if n.token == "" {
		return s
	}
	return strings.ReplaceAll(s, n.token, "<token>")
}
