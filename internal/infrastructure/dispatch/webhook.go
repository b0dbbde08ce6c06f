package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vitos/trade_alert_relay/internal/domain"
	"go.uber.org/zap"
)

// RetryPolicy bounds delivery attempts per destination. Backoff is a
// flat pause between attempts, not exponential.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, Backoff: time.Second}
}

// WebhookDispatcher posts order instructions to downstream execution
// webhooks. Exhausted retries are logged and journalled, never returned
// to the caller; no instruction is persisted for later replay.
type WebhookDispatcher struct {
	client     *http.Client
	policy     RetryPolicy
	sleep      func(time.Duration)
	defaultQty int
	notifier   domain.Notifier
	journal    domain.Journal
	logger     *zap.Logger
}

func NewWebhookDispatcher(policy RetryPolicy, defaultQty int, notifier domain.Notifier, journal domain.Journal, logger *zap.Logger) *WebhookDispatcher {
	if policy.Attempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &WebhookDispatcher{
		client:     &http.Client{Timeout: 15 * time.Second},
		policy:     policy,
		sleep:      time.Sleep,
		defaultQty: defaultQty,
		notifier:   notifier,
		journal:    journal,
		logger:     logger,
	}
}

// Deliver sends the instruction to every destination independently; one
// destination exhausting its retries does not block the others.
func (d *WebhookDispatcher) Deliver(ctx context.Context, instr *domain.OrderInstruction, urls []string, label string, entryTrade bool, ectx *domain.EntryContext) {
	if len(urls) == 0 {
		d.logger.Warn("No URLs provided", zap.String("label", label))
		return
	}

	payload := *instr
	if payload.Quantity == 0 {
		payload.Quantity = d.defaultQty
	}

	for _, url := range urls {
		if url == "" {
			d.logger.Warn("No URL provided", zap.String("label", label))
			continue
		}
		d.deliverOne(ctx, &payload, url, label, entryTrade, ectx)
	}
}

func (d *WebhookDispatcher) deliverOne(ctx context.Context, payload *domain.OrderInstruction, url, label string, entryTrade bool, ectx *domain.EntryContext) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("Failed to marshal instruction", zap.String("label", label), zap.Error(err))
		return
	}

	for attempt := 1; attempt <= d.policy.Attempts; attempt++ {
		err := d.post(ctx, url, body)
		if err == nil {
			d.logger.Info("Instruction submitted",
				zap.String("label", label),
				zap.String("url", url),
				zap.Int("quantity", payload.Quantity),
				zap.Int("attempt", attempt))
			d.record(ctx, payload, url, label, "delivered", attempt)
			if entryTrade && d.notifier != nil {
				d.notifier.Notify(ctx, payload, label, ectx)
			}
			return
		}

		d.logger.Error("Error submitting instruction",
			zap.String("label", label),
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < d.policy.Attempts {
			d.sleep(d.policy.Backoff)
		}
	}

	d.logger.Error("Instruction failed after all retries",
		zap.String("label", label),
		zap.String("url", url))
	d.record(ctx, payload, url, label, "failed", d.policy.Attempts)
}

func (d *WebhookDispatcher) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook status=%d", resp.StatusCode)
	}
	return nil
}

func (d *WebhookDispatcher) record(ctx context.Context, payload *domain.OrderInstruction, url, label, status string, attempts int) {
	if d.journal == nil {
		return
	}
	rec := &domain.DispatchRecord{
		Ticker:    payload.Ticker,
		Action:    payload.Action,
		Quantity:  payload.Quantity,
		Price:     payload.Price,
		OrderType: payload.OrderType,
		Label:     label,
		URL:       url,
		Status:    status,
		Attempts:  attempts,
		CreatedAt: time.Now(),
	}
	if err := d.journal.Record(ctx, rec); err != nil {
		d.logger.Error("Failed to journal dispatch", zap.String("label", label), zap.Error(err))
	}
}
