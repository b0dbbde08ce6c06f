package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vitos/trade_alert_relay/internal/domain"
	"go.uber.org/zap"
)

// NtfyNotifier posts a plain-text trade summary to an ntfy topic when
// an entry trade is submitted. Best effort: no retries, failures are
// swallowed after a log line.
type NtfyNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewNtfyNotifier(url string, logger *zap.Logger) *NtfyNotifier {
	return &NtfyNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

func (n *NtfyNotifier) Notify(ctx context.Context, instr *domain.OrderInstruction, label string, ectx *domain.EntryContext) {
	if n.url == "" {
		return
	}

	msg := fmt.Sprintf("Trade: %s %s %d", instr.Ticker, instr.Action, instr.Quantity)
	if instr.Price != "" {
		msg += fmt.Sprintf(" @ %s", instr.Price)
	}
	msg += fmt.Sprintf(" (%s)", label)
	if ectx != nil {
		var parts []string
		if ectx.Source != "" {
			parts = append(parts, fmt.Sprintf("source=%s", ectx.Source))
		}
		if ectx.Direction != "" {
			parts = append(parts, fmt.Sprintf("direction=%s", ectx.Direction))
		}
		if ectx.Score != "" {
			parts = append(parts, fmt.Sprintf("score=%s", ectx.Score))
		}
		if !ectx.Level.IsZero() {
			parts = append(parts, fmt.Sprintf("level=%s", ectx.Level.String()))
		}
		if ectx.Interval != 0 {
			parts = append(parts, fmt.Sprintf("interval=%d", ectx.Interval))
		}
		if ectx.Stop != "" {
			parts = append(parts, fmt.Sprintf("stop=%s", ectx.Stop))
		}
		if len(parts) > 0 {
			msg += " [" + strings.Join(parts, " ") + "]"
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, strings.NewReader(msg))
	if err != nil {
		n.logger.Error("Error building ntfy request", zap.Error(err))
		return
	}
	req.Header.Set("Title", "Trade Executed")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("Error sending ntfy notification", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	n.logger.Info("ntfy notification sent", zap.String("message", msg))
}
