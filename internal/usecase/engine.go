package usecase

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/trade_alert_relay/internal/domain"
	"go.uber.org/zap"
)

const (
	// Personal quantity bounds for the primary slot; webhook quantity is
	// the configured constant instead.
	personalQtyMin = 5
	personalQtyMax = 15

	instructionTimeLayout = "2006-01-02 15:04:05.000000"
)

// primaryStopOffset is the derived stop distance after a target-1 hit
// or a 1/8 trim: 3 points unfavourable from the entry.
var primaryStopOffset = decimal.NewFromInt(3)

type PrimaryConfig struct {
	Ticker      string
	Quantity    int // webhook contracts on entry
	MinScore    int
	WebhookURLs []string
}

// PrimaryEngine runs the position lifecycle for the primary instrument
// slot: entries from scored alerts, trims, target hits and stop-loss
// events. All transitions on the slot are serialized through one mutex
// so the poll loop and HTTP handlers cannot race each other.
type PrimaryEngine struct {
	cfg          PrimaryConfig
	store        domain.PositionStore
	dispatcher   domain.Dispatcher
	fingerprints domain.Ledger
	logger       *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

func NewPrimaryEngine(cfg PrimaryConfig, store domain.PositionStore, dispatcher domain.Dispatcher, fingerprints domain.Ledger, logger *zap.Logger) *PrimaryEngine {
	if cfg.MinScore == 0 {
		cfg.MinScore = 5
	}
	return &PrimaryEngine{
		cfg:          cfg,
		store:        store,
		dispatcher:   dispatcher,
		fingerprints: fingerprints,
		logger:       logger,
		now:          time.Now,
	}
}

// HandleSignal routes a typed signal to its lifecycle transition.
func (e *PrimaryEngine) HandleSignal(ctx context.Context, sig domain.Signal, source domain.Source) {
	switch s := sig.(type) {
	case domain.EntrySignal:
		e.HandleEntry(ctx, s, source)
	case domain.TargetHitSignal:
		if s.Sequence == 2 {
			e.HandleTarget2Hit(ctx, s, source)
		} else {
			e.HandleTargetHit(ctx, s, source)
		}
	case domain.StopLossSignal:
		e.HandleStopLoss(ctx, s, source)
	case domain.TrimSignal:
		e.HandleTrim(ctx, s)
	case domain.StoppedSignal:
		e.HandleStopped(ctx)
	}
}

// HandleEntry opens the primary slot if it is empty and the signal
// score clears the minimum. Personal quantity is score*2 clamped to
// [5, 15]; webhook quantity is the configured constant.
func (e *PrimaryEngine) HandleEntry(ctx context.Context, sig domain.EntrySignal, source domain.Source) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store.HasOpen(ctx, domain.SlotPrimary) {
		e.logger.Info("Order already open, skipping new order submission")
		return
	}

	scoreValue, ok := parseScore(sig.Score)
	if !ok {
		e.logger.Warn("Invalid score format, skipping trade", zap.String("score", sig.Score))
		return
	}
	if scoreValue < e.cfg.MinScore {
		e.logger.Info("Score below minimum threshold, skipping trade",
			zap.Int("score", scoreValue),
			zap.Int("min", e.cfg.MinScore),
			zap.String("source", string(source)))
		return
	}

	personalQty := scoreValue * 2
	if personalQty < personalQtyMin {
		personalQty = personalQtyMin
	}
	if personalQty > personalQtyMax {
		personalQty = personalQtyMax
	}
	webhookQty := e.cfg.Quantity

	rec := &domain.PositionRecord{
		Action:    domain.ActionBuy,
		Direction: "long",
		Ticker:    e.cfg.Ticker,
		Interval:  sig.Interval,
		Level:     sig.Level,
		Score:     sig.Score,
		Price:     sig.Price,
		Time:      sig.Time,
		Source:    source,
		Quantities: domain.Quantities{
			Personal: personalQty,
			Webhook:  webhookQty,
		},
	}
	if err := e.store.Save(ctx, domain.SlotPrimary, rec); err != nil {
		e.logger.Error("Failed to save order", zap.Error(err))
		return
	}
	e.logger.Info("Order saved locally",
		zap.String("source", string(source)),
		zap.String("score", sig.Score),
		zap.Int("personal_qty", personalQty),
		zap.Int("webhook_qty", webhookQty))

	if webhookQty <= 0 {
		e.logger.Info("Skipping webhook submission, quantity must be > 0", zap.Int("quantity", webhookQty))
		return
	}
	instr := &domain.OrderInstruction{
		Ticker:    e.cfg.Ticker,
		Action:    domain.ActionBuy,
		Price:     sig.Price.String(),
		OrderType: domain.OrderTypeMarket,
		Quantity:  webhookQty,
	}
	e.dispatcher.Deliver(ctx, instr, e.cfg.WebhookURLs, "Long Triggered webhook", true, &domain.EntryContext{
		Source:    source,
		Direction: "long",
		Score:     sig.Score,
		Level:     sig.Level,
		Interval:  sig.Interval,
	})
}

// HandleTrim partially closes the open position by the given fraction.
// A fraction of 1 or more is a full close. An exact 1/8 trim also
// places a protective stop 3 points under the original entry for the
// remaining webhook quantity.
func (e *PrimaryEngine) HandleTrim(ctx context.Context, sig domain.TrimSignal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.store.HasOpen(ctx, domain.SlotPrimary) {
		e.logger.Info("No open order to trim")
		return
	}
	rec, err := e.store.Get(ctx, domain.SlotPrimary)
	if err != nil || rec == nil {
		e.logger.Warn("Could not retrieve order info", zap.Error(err))
		return
	}

	e.logger.Info("Trim message",
		zap.Int("numerator", sig.Numerator),
		zap.Int("denominator", sig.Denominator))

	personalClose := rec.Quantities.Personal * sig.Numerator / sig.Denominator
	webhookClose := rec.Quantities.Webhook * sig.Numerator / sig.Denominator

	if webhookClose >= 1 {
		instr := &domain.OrderInstruction{
			Ticker:    e.cfg.Ticker,
			Action:    rec.Action.Opposite(),
			OrderType: domain.OrderTypeMarket,
			Quantity:  webhookClose,
		}
		e.dispatcher.Deliver(ctx, instr, e.cfg.WebhookURLs, "Close webhook", false, nil)
	} else {
		e.logger.Info("Skipping webhook submission, quantity must be >= 1", zap.Int("quantity", webhookClose))
	}

	if sig.Numerator >= sig.Denominator {
		if err := e.store.Clear(ctx, domain.SlotPrimary); err != nil {
			e.logger.Error("Failed to clear order", zap.Error(err))
			return
		}
		e.logger.Info("Order fully closed and cleared")
		return
	}

	rec.Quantities.Personal -= personalClose
	rec.Quantities.Webhook -= webhookClose
	if err := e.store.Save(ctx, domain.SlotPrimary, rec); err != nil {
		e.logger.Error("Failed to update order", zap.Error(err))
		return
	}
	e.logger.Info("Order updated with remaining quantities",
		zap.Int("personal", rec.Quantities.Personal),
		zap.Int("webhook", rec.Quantities.Webhook))

	if sig.Numerator == 1 && sig.Denominator == 8 {
		e.placeTrimStop(ctx, rec)
	}
}

func (e *PrimaryEngine) placeTrimStop(ctx context.Context, rec *domain.PositionRecord) {
	remaining := rec.Quantities.Webhook
	if rec.Price.IsZero() {
		e.logger.Warn("Cannot place stop after 1/8 trim, original entry price not available")
		return
	}
	if remaining < 1 {
		e.logger.Info("Skipping stop order after 1/8 trim, quantity must be >= 1", zap.Int("quantity", remaining))
		return
	}
	stopPrice := rec.Price.Sub(primaryStopOffset)
	instr := &domain.OrderInstruction{
		Ticker:       e.cfg.Ticker,
		Action:       rec.Action.Opposite(),
		Time:         e.now().Format(instructionTimeLayout),
		OrderType:    domain.OrderTypeStop,
		StopPrice:    stopPrice.String(),
		QuantityType: domain.QuantityTypeFixed,
		Quantity:     remaining,
	}
	e.dispatcher.Deliver(ctx, instr, e.cfg.WebhookURLs, "1/8 trim stop order webhook", false, nil)
	e.logger.Info("Stop order placed after 1/8 trim",
		zap.String("stop_price", stopPrice.String()),
		zap.Int("quantity", remaining))
}

// HandleTargetHit closes half the open webhook quantity and trails the
// rest with a stop 3 points under the entry. Idempotent per content
// fingerprint, and gated on the stored source matching the event's.
func (e *PrimaryEngine) HandleTargetHit(ctx context.Context, sig domain.TargetHitSignal, source domain.Source) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.store.HasOpen(ctx, domain.SlotPrimary) {
		e.logger.Info("No open order to close for target hit")
		return
	}

	fp := Fingerprint(e.cfg.Ticker, sig.Target, sig.Entry, sig.Profit, sig.Time)
	if e.fingerprints.Seen(fp) {
		return
	}

	rec, err := e.store.Get(ctx, domain.SlotPrimary)
	if err != nil || rec == nil {
		e.logger.Warn("Could not retrieve order info for target hit", zap.Error(err))
		return
	}
	if rec.Source != source {
		e.logger.Info("Target 1 hit message ignored, order source mismatch",
			zap.String("order_source", string(rec.Source)),
			zap.String("event_source", string(source)))
		return
	}

	totalQty := rec.Quantities.Webhook
	closeQty := totalQty / 2
	remaining := totalQty - closeQty
	e.logger.Info("Target 1 hit, closing half",
		zap.Int("close_qty", closeQty),
		zap.Int("total_qty", totalQty),
		zap.Int("remaining", remaining))

	if closeQty >= 1 {
		instr := &domain.OrderInstruction{
			Ticker:    e.cfg.Ticker,
			Action:    rec.Action.Opposite(),
			Price:     sig.Target.String(),
			OrderType: domain.OrderTypeMarket,
			Quantity:  closeQty,
		}
		e.dispatcher.Deliver(ctx, instr, e.cfg.WebhookURLs, "Target hit close webhook", false, nil)
	} else {
		e.logger.Info("Skipping webhook submission, quantity must be >= 1", zap.Int("quantity", closeQty))
	}

	if remaining >= 1 {
		stopPrice := sig.Entry.Sub(primaryStopOffset)
		stop := &domain.OrderInstruction{
			Ticker:       e.cfg.Ticker,
			Action:       rec.Action.Opposite(),
			Time:         e.now().Format(instructionTimeLayout),
			OrderType:    domain.OrderTypeStop,
			StopPrice:    stopPrice.String(),
			QuantityType: domain.QuantityTypeFixed,
			Quantity:     remaining,
		}
		e.dispatcher.Deliver(ctx, stop, e.cfg.WebhookURLs, "Target hit stop order webhook", false, nil)
		e.logger.Info("Stop order placed",
			zap.String("stop_price", stopPrice.String()),
			zap.Int("quantity", remaining))

		rec.Quantities.Webhook = remaining
		if err := e.store.Save(ctx, domain.SlotPrimary, rec); err != nil {
			e.logger.Error("Failed to update order", zap.Error(err))
			return
		}
	} else {
		e.logger.Info("Skipping stop order submission, quantity must be >= 1", zap.Int("quantity", remaining))
		if err := e.store.Clear(ctx, domain.SlotPrimary); err != nil {
			e.logger.Error("Failed to clear order", zap.Error(err))
			return
		}
		e.logger.Info("Position fully closed due to target hit")
	}

	e.fingerprints.Mark(fp)
	e.logger.Info("Target 1 hit processed", zap.String("profit", sig.Profit.String()))
}

// HandleTarget2Hit exits the full remaining quantity and clears the
// slot unconditionally. Idempotent per content fingerprint.
func (e *PrimaryEngine) HandleTarget2Hit(ctx context.Context, sig domain.TargetHitSignal, source domain.Source) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.store.HasOpen(ctx, domain.SlotPrimary) {
		e.logger.Info("No open order to close for target 2 hit")
		return
	}

	fp := Fingerprint(e.cfg.Ticker, sig.Target, sig.Entry, sig.Profit, sig.Time)
	if e.fingerprints.Seen(fp) {
		return
	}

	rec, err := e.store.Get(ctx, domain.SlotPrimary)
	if err != nil || rec == nil {
		e.logger.Warn("Could not retrieve order info for target 2 hit", zap.Error(err))
		return
	}
	if rec.Source != source {
		e.logger.Info("Target 2 hit message ignored, order source mismatch",
			zap.String("order_source", string(rec.Source)),
			zap.String("event_source", string(source)))
		return
	}

	closeQty := rec.Quantities.Webhook
	if closeQty > 0 {
		instr := &domain.OrderInstruction{
			Ticker:    e.cfg.Ticker,
			Action:    domain.ActionExit,
			Price:     sig.Target.String(),
			OrderType: domain.OrderTypeMarket,
			Quantity:  closeQty,
		}
		e.dispatcher.Deliver(ctx, instr, e.cfg.WebhookURLs, "Target 2 close webhook", false, nil)
	} else {
		e.logger.Info("Skipping webhook submission, quantity must be > 0", zap.Int("quantity", closeQty))
	}

	if err := e.store.Clear(ctx, domain.SlotPrimary); err != nil {
		e.logger.Error("Failed to clear order", zap.Error(err))
		return
	}
	e.logger.Info("Remaining position closed due to target 2 hit", zap.String("profit", sig.Profit.String()))
	e.fingerprints.Mark(fp)
}

// HandleStopLoss exits the full remaining quantity and clears the slot.
// Covers both the detailed and the simple alert shapes.
func (e *PrimaryEngine) HandleStopLoss(ctx context.Context, sig domain.StopLossSignal, source domain.Source) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.store.HasOpen(ctx, domain.SlotPrimary) {
		e.logger.Info("No open order to close for stop loss hit")
		return
	}

	fp := Fingerprint(e.cfg.Ticker, sig.Exit, sig.Entry, sig.Loss, sig.Time)
	if e.fingerprints.Seen(fp) {
		e.logger.Info("Stop loss message already processed, skipping duplicate", zap.String("fingerprint", fp))
		return
	}

	rec, err := e.store.Get(ctx, domain.SlotPrimary)
	if err != nil || rec == nil {
		e.logger.Warn("Could not retrieve order info for stop loss hit", zap.Error(err))
		return
	}
	if rec.Source != source {
		e.logger.Info("Stop loss message ignored, order source mismatch",
			zap.String("order_source", string(rec.Source)),
			zap.String("event_source", string(source)))
		return
	}

	closeQty := rec.Quantities.Webhook
	if closeQty > 0 {
		instr := &domain.OrderInstruction{
			Ticker:    e.cfg.Ticker,
			Action:    domain.ActionExit,
			Price:     sig.Exit.String(),
			OrderType: domain.OrderTypeMarket,
			Quantity:  closeQty,
		}
		e.dispatcher.Deliver(ctx, instr, e.cfg.WebhookURLs, "Stop loss close webhook", false, nil)
	} else {
		e.logger.Info("Skipping webhook submission, quantity must be > 0", zap.Int("quantity", closeQty))
	}

	if err := e.store.Clear(ctx, domain.SlotPrimary); err != nil {
		e.logger.Error("Failed to clear order", zap.Error(err))
		return
	}
	e.logger.Info("Position closed due to stop loss hit", zap.String("loss", sig.Loss.String()))
	e.fingerprints.Mark(fp)
}

// HandleStopped flattens everything: clears the slot if open and sends
// an exit at the configured global quantity regardless of what was
// actually open.
func (e *PrimaryEngine) HandleStopped(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Info("Stopped message received, flattening")

	if e.store.HasOpen(ctx, domain.SlotPrimary) {
		if err := e.store.Clear(ctx, domain.SlotPrimary); err != nil {
			e.logger.Error("Failed to clear order", zap.Error(err))
		} else {
			e.logger.Info("Open order cleared")
		}
	}

	instr := &domain.OrderInstruction{
		Ticker:    e.cfg.Ticker,
		Action:    domain.ActionExit,
		OrderType: domain.OrderTypeMarket,
		Quantity:  e.cfg.Quantity,
	}
	e.dispatcher.Deliver(ctx, instr, e.cfg.WebhookURLs, "Stopped webhook", false, nil)
}

func parseScore(score string) (int, bool) {
	parts := strings.Split(score, "/")
	if len(parts) != 2 {
		return 0, false
	}
	value, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	if _, err := strconv.Atoi(parts[1]); err != nil {
		return 0, false
	}
	return value, true
}
