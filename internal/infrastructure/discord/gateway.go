package discord

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"github.com/vitos/trade_alert_relay/internal/domain"
	"go.uber.org/zap"
)

const defaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Gateway opcodes used here.
const (
	opDispatch  = 0
	opHeartbeat = 1
	opIdentify  = 2
	opHello     = 10
)

// messageContentIntent covers GUILDS, GUILD_MESSAGES and
// MESSAGE_CONTENT, enough to receive channel messages with their text.
const messageContentIntent = 1<<0 | 1<<9 | 1<<15

// Gateway is a push alternative to REST polling: it keeps a websocket
// session to the chat gateway and delivers MESSAGE_CREATE events for
// the subscribed channels to a callback.
type Gateway struct {
	token      string
	gatewayURL string
	channels   map[string]bool
	logger     *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	seq      int64
	callback func(channelID string, msg domain.Message)
}

func NewGateway(token string, channelIDs []string, logger *zap.Logger) *Gateway {
	channels := make(map[string]bool, len(channelIDs))
	for _, id := range channelIDs {
		channels[id] = true
	}
	return &Gateway{
		token:      token,
		gatewayURL: defaultGatewayURL,
		channels:   channels,
		logger:     logger,
	}
}

// OnMessage registers the message callback. Must be called before Run.
func (g *Gateway) OnMessage(callback func(channelID string, msg domain.Message)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callback = callback
}

// Run keeps the gateway session alive until the context is cancelled,
// reconnecting with a flat delay after any failure.
func (g *Gateway) Run(ctx context.Context) {
	for {
		if err := g.session(ctx); err != nil {
			g.logger.Error("Gateway session ended", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (g *Gateway) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.gatewayURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	g.mu.Lock()
	g.conn = conn
	g.seq = 0
	g.mu.Unlock()

	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		event := gjson.ParseBytes(message)
		if seq := event.Get("s"); seq.Exists() && seq.Int() > 0 {
			g.mu.Lock()
			g.seq = seq.Int()
			g.mu.Unlock()
		}

		switch event.Get("op").Int() {
		case opHello:
			interval := time.Duration(event.Get("d.heartbeat_interval").Int()) * time.Millisecond
			go g.heartbeatLoop(interval, heartbeatDone)
			if err := g.identify(); err != nil {
				return err
			}
		case opHeartbeat:
			g.sendHeartbeat()
		case opDispatch:
			if event.Get("t").String() == "MESSAGE_CREATE" {
				g.dispatchMessage(event.Get("d"))
			}
		}
	}
}

func (g *Gateway) identify() error {
	payload := map[string]interface{}{
		"op": opIdentify,
		"d": map[string]interface{}{
			"token":   g.token,
			"intents": messageContentIntent,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "trade_alert_relay",
				"device":  "trade_alert_relay",
			},
		},
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn.WriteJSON(payload)
}

func (g *Gateway) heartbeatLoop(interval time.Duration, done <-chan struct{}) {
	if interval <= 0 {
		interval = 41 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			g.sendHeartbeat()
		}
	}
}

func (g *Gateway) sendHeartbeat() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return
	}
	payload := map[string]interface{}{"op": opHeartbeat, "d": g.seq}
	if err := g.conn.WriteJSON(payload); err != nil {
		g.logger.Error("Heartbeat write failed", zap.Error(err))
	}
}

func (g *Gateway) dispatchMessage(data gjson.Result) {
	channelID := data.Get("channel_id").String()
	if len(g.channels) > 0 && !g.channels[channelID] {
		return
	}

	g.mu.Lock()
	callback := g.callback
	g.mu.Unlock()
	if callback == nil {
		return
	}

	callback(channelID, parseMessage(data))
}
