package usecase

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vitos/trade_alert_relay/internal/domain"
	"go.uber.org/zap"
)

func newGoldEngine(trendGate bool) (*InstrumentEngine, *memStore, *captureDispatcher) {
	store := newMemStore()
	disp := &captureDispatcher{}
	engine := NewInstrumentEngine(InstrumentConfig{
		Name:        "gold",
		Slot:        domain.SlotGold,
		Ticker:      "MGCG26",
		Quantity:    4,
		Source:      domain.SourceGoldWebhook,
		WebhookURLs: []string{"http://downstream"},
		TrendGate:   trendGate,
	}, store, disp, zap.NewNop())
	return engine, store, disp
}

func TestBullishEntryDispatchesCancelEntryStop(t *testing.T) {
	engine, store, disp := newGoldEngine(false)
	ctx := context.Background()
	price := decimal.RequireFromString("2045.30")

	ok := engine.BullishEntry(ctx, price, "")
	require.True(t, ok)

	require.Len(t, disp.deliveries, 3)
	require.Equal(t, domain.ActionCancel, disp.deliveries[0].instr.Action)

	entry := disp.deliveries[1]
	require.Equal(t, domain.ActionBuy, entry.instr.Action)
	require.Equal(t, "2045.30", entry.instr.Price)
	require.Equal(t, 4, entry.instr.Quantity)
	require.True(t, entry.entry)
	require.NotNil(t, entry.ectx)
	require.Equal(t, domain.SourceGoldWebhook, entry.ectx.Source)

	stop := disp.deliveries[2].instr
	require.Equal(t, domain.ActionSell, stop.Action)
	require.Equal(t, domain.OrderTypeStop, stop.OrderType)
	require.Equal(t, "2038.30", stop.StopPrice) // entry - 7

	rec, err := store.Get(ctx, domain.SlotGold)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, domain.ActionBuy, rec.Action)
	require.Equal(t, 4, rec.Quantities.Webhook)
	require.NotNil(t, rec.Stop)
	require.Equal(t, "2038.30", rec.Stop.String())
}

func TestBearishEntryMirrorsStopAboveEntry(t *testing.T) {
	engine, _, disp := newGoldEngine(false)
	ctx := context.Background()

	ok := engine.BearishEntry(ctx, decimal.RequireFromString("2045.30"), "")
	require.True(t, ok)

	stop := disp.deliveries[2].instr
	require.Equal(t, domain.ActionBuy, stop.Action)
	require.Equal(t, "2052.30", stop.StopPrice) // entry + 7
}

func TestEntryWithTargetAddsLimitOrder(t *testing.T) {
	engine, store, disp := newGoldEngine(false)
	ctx := context.Background()

	ok := engine.BullishEntry(ctx, decimal.RequireFromString("2045.30"), "2052.00")
	require.True(t, ok)

	require.Len(t, disp.deliveries, 4) // cancel, entry, target, stop
	target := disp.deliveries[2].instr
	require.Equal(t, domain.ActionSell, target.Action)
	require.Equal(t, domain.OrderTypeLimit, target.OrderType)
	require.Equal(t, "2052.00", target.Price)
	require.Equal(t, 4, target.Quantity)

	rec, _ := store.Get(ctx, domain.SlotGold)
	require.Equal(t, "2052.00", rec.Target50)
}

func TestEntrySkippedWhenSlotOpen(t *testing.T) {
	engine, store, disp := newGoldEngine(false)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.SlotGold, &domain.PositionRecord{
		Action: domain.ActionBuy,
		Ticker: "MGCG26",
	}))

	ok := engine.BullishEntry(ctx, decimal.RequireFromString("2045.30"), "")
	require.True(t, ok) // skip is not a trend rejection
	require.Empty(t, disp.deliveries)
}

func TestTrendGateBlocksOpposingEntry(t *testing.T) {
	engine, store, disp := newGoldEngine(true)
	ctx := context.Background()

	_, err := engine.SetTrend("bearish")
	require.NoError(t, err)

	ok := engine.BullishEntry(ctx, decimal.RequireFromString("2045.30"), "")
	require.False(t, ok)
	require.Empty(t, disp.deliveries)
	require.False(t, store.HasOpen(ctx, domain.SlotGold))

	// Aligned direction passes.
	ok = engine.BearishEntry(ctx, decimal.RequireFromString("2045.30"), "")
	require.True(t, ok)
	require.NotEmpty(t, disp.deliveries)
}

func TestTrendGateDisabledIgnoresTrend(t *testing.T) {
	engine, _, disp := newGoldEngine(false)
	ctx := context.Background()

	_, err := engine.SetTrend("bearish")
	require.NoError(t, err)

	ok := engine.BullishEntry(ctx, decimal.RequireFromString("2045.30"), "")
	require.True(t, ok)
	require.Len(t, disp.deliveries, 3)
}

func TestSetTrendRejectsUnknownValue(t *testing.T) {
	engine, _, _ := newGoldEngine(false)

	_, err := engine.SetTrend("sideways")
	require.Error(t, err)
	require.Empty(t, engine.Trend())
}

func TestHalfTargetDefaultQuantityAndBreakevenStop(t *testing.T) {
	engine, store, disp := newGoldEngine(false)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.SlotGold, &domain.PositionRecord{
		Action:     domain.ActionBuy,
		Ticker:     "MGCG26",
		Price:      decimal.RequireFromString("2045.30"),
		Quantities: domain.Quantities{Webhook: 4},
	}))

	engine.HalfTarget(ctx, 0)

	require.Len(t, disp.deliveries, 2)
	require.Equal(t, domain.ActionSell, disp.deliveries[0].instr.Action)
	require.Equal(t, 2, disp.deliveries[0].instr.Quantity) // cfg quantity / 2

	stop := disp.deliveries[1].instr
	require.Equal(t, domain.OrderTypeStop, stop.OrderType)
	require.Equal(t, "2045.30", stop.StopPrice) // breakeven at entry
	require.Equal(t, 2, stop.Quantity)

	rec, _ := store.Get(ctx, domain.SlotGold)
	require.Equal(t, 2, rec.Quantities.Webhook)
}

func TestHalfTargetFullQuantityClears(t *testing.T) {
	engine, store, disp := newGoldEngine(false)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.SlotGold, &domain.PositionRecord{
		Action:     domain.ActionBuy,
		Ticker:     "MGCG26",
		Price:      decimal.RequireFromString("2045.30"),
		Quantities: domain.Quantities{Webhook: 4},
	}))

	engine.HalfTarget(ctx, 4)

	require.Len(t, disp.deliveries, 1)
	require.False(t, store.HasOpen(ctx, domain.SlotGold))
}

func TestHalfTargetWithoutPositionIsNoOp(t *testing.T) {
	engine, _, disp := newGoldEngine(false)

	engine.HalfTarget(context.Background(), 0)
	require.Empty(t, disp.deliveries)
}

func TestExitCancelsAndClears(t *testing.T) {
	engine, store, disp := newGoldEngine(false)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.SlotGold, &domain.PositionRecord{
		Action: domain.ActionSell,
		Ticker: "MGCG26",
	}))

	engine.Exit(ctx)

	require.Len(t, disp.deliveries, 1)
	instr := disp.deliveries[0].instr
	require.Equal(t, domain.ActionExit, instr.Action)
	require.Equal(t, "true", instr.Cancel)
	require.False(t, store.HasOpen(ctx, domain.SlotGold))
}

func TestExitWithEmptySlotStillDispatches(t *testing.T) {
	engine, _, disp := newGoldEngine(false)

	engine.Exit(context.Background())
	require.Len(t, disp.deliveries, 1)
}
