package discord

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/vitos/trade_alert_relay/internal/domain"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://discord.com/api/v10"

// Client reads recent messages from a channel over the REST API.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(token string, logger *zap.Logger) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// SetBaseURL overrides the API root, used by tests.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// FetchLatest returns the most recent message of the channel, or nil
// when the channel is empty.
func (c *Client) FetchLatest(ctx context.Context, channelID string) (*domain.Message, error) {
	msgs, err := c.FetchRecent(ctx, channelID, 1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// FetchRecent returns up to limit messages, newest first, the order the
// API serves them in.
func (c *Client) FetchRecent(ctx context.Context, channelID string, limit int) ([]domain.Message, error) {
	url := fmt.Sprintf("%s/channels/%s/messages?limit=%d", c.baseURL, channelID, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages from channel %s: %w", channelID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("channel %s fetch status=%d", channelID, resp.StatusCode)
	}

	return parseMessages(body), nil
}

func parseMessages(body []byte) []domain.Message {
	var messages []domain.Message
	gjson.ParseBytes(body).ForEach(func(_, item gjson.Result) bool {
		messages = append(messages, parseMessage(item))
		return true
	})
	return messages
}

func parseMessage(item gjson.Result) domain.Message {
	msg := domain.Message{
		ID:              item.Get("id").String(),
		Content:         item.Get("content").String(),
		MentionEveryone: item.Get("mention_everyone").Bool(),
		Timestamp:       item.Get("timestamp").String(),
	}
	item.Get("embeds").ForEach(func(_, embed gjson.Result) bool {
		msg.Embeds = append(msg.Embeds, domain.Embed{
			Description: embed.Get("description").String(),
		})
		return true
	})
	return msg
}
