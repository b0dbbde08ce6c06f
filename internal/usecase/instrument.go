package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/trade_alert_relay/internal/domain"
	"go.uber.org/zap"
)

type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
)

// Instrument-level price offsets: entry stops sit 7 points against the
// position, the default target 14 points in favour.
var (
	instrumentStopOffset   = decimal.NewFromInt(7)
	instrumentTargetOffset = decimal.NewFromInt(14)
)

type InstrumentConfig struct {
	Name        string
	Slot        domain.Slot
	Ticker      string
	Quantity    int
	Source      domain.Source
	WebhookURLs []string
	// TrendGate blocks entries that run against the last announced
	// trend. Disabled by default.
	TrendGate bool
}

// InstrumentEngine runs the source-independent lifecycle for the gold
// and NQ slots: direct bullish/bearish entries with protective stops,
// an optional 50%-target partial close with a breakeven stop, and a
// full exit. Entries cancel working orders downstream first.
type InstrumentEngine struct {
	cfg        InstrumentConfig
	store      domain.PositionStore
	dispatcher domain.Dispatcher
	logger     *zap.Logger

	mu    sync.Mutex
	trend Trend
	now   func() time.Time
}

func NewInstrumentEngine(cfg InstrumentConfig, store domain.PositionStore, dispatcher domain.Dispatcher, logger *zap.Logger) *InstrumentEngine {
	return &InstrumentEngine{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// SetTrend records the latest trend announcement for this instrument.
func (e *InstrumentEngine) SetTrend(trend string) (Trend, error) {
	t := Trend(trend)
	if t != TrendBullish && t != TrendBearish {
		return "", fmt.Errorf("invalid trend value: %s, must be 'bearish' or 'bullish'", trend)
	}
	e.mu.Lock()
	e.trend = t
	e.mu.Unlock()
	e.logger.Info("Trend updated", zap.String("instrument", e.cfg.Name), zap.String("trend", string(t)))
	return t, nil
}

func (e *InstrumentEngine) Trend() Trend {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trend
}

// trendAligned reports whether the entry direction agrees with the last
// announced trend. An unset trend never blocks.
func (e *InstrumentEngine) trendAligned(action domain.Action) bool {
	if !e.cfg.TrendGate || e.trend == "" {
		return true
	}
	if action == domain.ActionBuy {
		return e.trend == TrendBullish
	}
	return e.trend == TrendBearish
}

// BullishEntry opens a long position. Returns false only when the
// trend gate blocked the entry; an already-open slot is a silent skip.
func (e *InstrumentEngine) BullishEntry(ctx context.Context, price decimal.Decimal, target50 string) bool {
	return e.enter(ctx, domain.ActionBuy, "long", price, target50)
}

// BearishEntry opens a short position.
func (e *InstrumentEngine) BearishEntry(ctx context.Context, price decimal.Decimal, target50 string) bool {
	return e.enter(ctx, domain.ActionSell, "short", price, target50)
}

func (e *InstrumentEngine) enter(ctx context.Context, action domain.Action, direction string, price decimal.Decimal, target50 string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store.HasOpen(ctx, e.cfg.Slot) {
		e.logger.Info("Order already open, skipping new order submission",
			zap.String("instrument", e.cfg.Name))
		return true
	}
	if !e.trendAligned(action) {
		e.logger.Info("Entry skipped, trend mismatch",
			zap.String("instrument", e.cfg.Name),
			zap.String("trend", string(e.trend)),
			zap.String("action", string(action)))
		return false
	}

	e.logger.Info("Entry received",
		zap.String("instrument", e.cfg.Name),
		zap.String("direction", direction),
		zap.String("price", price.String()))

	// Working orders from a previous position must not linger.
	cancel := &domain.OrderInstruction{
		Ticker: e.cfg.Ticker,
		Action: domain.ActionCancel,
	}
	e.dispatcher.Deliver(ctx, cancel, e.cfg.WebhookURLs, e.cfg.Name+" cancel webhook", false, nil)

	entry := &domain.OrderInstruction{
		Ticker:    e.cfg.Ticker,
		Action:    action,
		Price:     price.String(),
		Quantity:  e.cfg.Quantity,
		OrderType: domain.OrderTypeMarket,
	}
	e.dispatcher.Deliver(ctx, entry, e.cfg.WebhookURLs, e.cfg.Name+" "+direction+" entry webhook", true, &domain.EntryContext{
		Source:    e.cfg.Source,
		Direction: direction,
	})

	if target50 != "" {
		target := &domain.OrderInstruction{
			Ticker:    e.cfg.Ticker,
			Action:    action.Opposite(),
			Price:     target50,
			OrderType: domain.OrderTypeLimit,
			Quantity:  e.cfg.Quantity,
		}
		e.dispatcher.Deliver(ctx, target, e.cfg.WebhookURLs, e.cfg.Name+" target_50 webhook", false, nil)
	} else {
		defaultTarget := price.Add(instrumentTargetOffset)
		if action == domain.ActionSell {
			defaultTarget = price.Sub(instrumentTargetOffset)
		}
		e.logger.Info("No target provided, default target would sit 14 points out",
			zap.String("instrument", e.cfg.Name),
			zap.String("target", defaultTarget.String()))
	}

	stopPrice := price.Sub(instrumentStopOffset)
	if action == domain.ActionSell {
		stopPrice = price.Add(instrumentStopOffset)
	}
	stop := &domain.OrderInstruction{
		Ticker:       e.cfg.Ticker,
		Action:       action.Opposite(),
		Time:         e.now().Format(instructionTimeLayout),
		OrderType:    domain.OrderTypeStop,
		StopPrice:    stopPrice.String(),
		QuantityType: domain.QuantityTypeFixed,
		Quantity:     e.cfg.Quantity,
	}
	e.dispatcher.Deliver(ctx, stop, e.cfg.WebhookURLs, e.cfg.Name+" stop webhook", false, nil)

	stopStr := stopPrice.String()
	stopDec := stopPrice
	rec := &domain.PositionRecord{
		Action:    action,
		Direction: direction,
		Ticker:    e.cfg.Ticker,
		Price:     price,
		Source:    e.cfg.Source,
		Quantities: domain.Quantities{
			Webhook: e.cfg.Quantity,
		},
		Target50: target50,
		Stop:     &stopDec,
	}
	if err := e.store.Save(ctx, e.cfg.Slot, rec); err != nil {
		e.logger.Error("Failed to save order", zap.String("instrument", e.cfg.Name), zap.Error(err))
		return true
	}
	e.logger.Info("Order saved locally",
		zap.String("instrument", e.cfg.Name),
		zap.String("stop", stopStr))
	return true
}

// HalfTarget closes half the position (or an explicit quantity) and
// moves the stop on the remainder to breakeven at the entry price.
func (e *InstrumentEngine) HalfTarget(ctx context.Context, quantity int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Info("50% target hit received", zap.String("instrument", e.cfg.Name))

	if !e.store.HasOpen(ctx, e.cfg.Slot) {
		e.logger.Info("No open order to close for 50% target hit",
			zap.String("instrument", e.cfg.Name))
		return
	}
	rec, err := e.store.Get(ctx, e.cfg.Slot)
	if err != nil || rec == nil {
		e.logger.Warn("Could not retrieve order info for 50% target hit",
			zap.String("instrument", e.cfg.Name), zap.Error(err))
		return
	}

	opposite := rec.Action.Opposite()
	targetQty := quantity
	if targetQty <= 0 {
		targetQty = e.cfg.Quantity / 2
	}

	close := &domain.OrderInstruction{
		Ticker:   e.cfg.Ticker,
		Action:   opposite,
		Quantity: targetQty,
	}
	e.dispatcher.Deliver(ctx, close, e.cfg.WebhookURLs, e.cfg.Name+" 50% target hit webhook", false, nil)

	remaining := rec.Quantities.Webhook - targetQty
	if remaining > 0 {
		rec.Quantities.Webhook = remaining
		if err := e.store.Save(ctx, e.cfg.Slot, rec); err != nil {
			e.logger.Error("Failed to update order", zap.String("instrument", e.cfg.Name), zap.Error(err))
			return
		}
		e.logger.Info("Order updated with remaining quantity",
			zap.String("instrument", e.cfg.Name),
			zap.Int("remaining", remaining))

		stop := &domain.OrderInstruction{
			Ticker:       e.cfg.Ticker,
			Action:       opposite,
			Time:         e.now().Format(instructionTimeLayout),
			OrderType:    domain.OrderTypeStop,
			StopPrice:    rec.Price.String(),
			QuantityType: domain.QuantityTypeFixed,
			Quantity:     remaining,
		}
		e.dispatcher.Deliver(ctx, stop, e.cfg.WebhookURLs, e.cfg.Name+" 50% target stop order webhook", false, nil)
		e.logger.Info("Breakeven stop placed at entry price",
			zap.String("instrument", e.cfg.Name),
			zap.String("stop_price", rec.Price.String()),
			zap.Int("quantity", remaining))
	} else {
		if err := e.store.Clear(ctx, e.cfg.Slot); err != nil {
			e.logger.Error("Failed to clear order", zap.String("instrument", e.cfg.Name), zap.Error(err))
			return
		}
		e.logger.Info("Order cleared after 50% target hit", zap.String("instrument", e.cfg.Name))
	}
}

// Exit flattens the instrument and cancels working orders downstream,
// whether or not a position is tracked locally.
func (e *InstrumentEngine) Exit(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Info("Exit received", zap.String("instrument", e.cfg.Name))

	instr := &domain.OrderInstruction{
		Ticker: e.cfg.Ticker,
		Action: domain.ActionExit,
		Cancel: "true",
	}
	e.dispatcher.Deliver(ctx, instr, e.cfg.WebhookURLs, e.cfg.Name+" exit webhook", false, nil)

	if err := e.store.Clear(ctx, e.cfg.Slot); err != nil {
		e.logger.Error("Failed to clear order", zap.String("instrument", e.cfg.Name), zap.Error(err))
		return
	}
	e.logger.Info("Order cleared after exit", zap.String("instrument", e.cfg.Name))
}
