package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vitos/trade_alert_relay/internal/domain"
	"github.com/vitos/trade_alert_relay/internal/usecase"
	"go.uber.org/zap"
)

type instrumentCall struct {
	method   string
	price    string
	target50 string
	quantity int
}

type fakeInstrument struct {
	calls     []instrumentCall
	trend     usecase.Trend
	rejectDir string // direction whose entry the fake refuses
}

func (f *fakeInstrument) BullishEntry(ctx context.Context, price decimal.Decimal, target50 string) bool {
	f.calls = append(f.calls, instrumentCall{method: "bullish", price: price.String(), target50: target50})
	return f.rejectDir != "bullish"
}

func (f *fakeInstrument) BearishEntry(ctx context.Context, price decimal.Decimal, target50 string) bool {
	f.calls = append(f.calls, instrumentCall{method: "bearish", price: price.String(), target50: target50})
	return f.rejectDir != "bearish"
}

func (f *fakeInstrument) HalfTarget(ctx context.Context, quantity int) {
	f.calls = append(f.calls, instrumentCall{method: "half_target", quantity: quantity})
}

func (f *fakeInstrument) Exit(ctx context.Context) {
	f.calls = append(f.calls, instrumentCall{method: "exit"})
}

func (f *fakeInstrument) SetTrend(trend string) (usecase.Trend, error) {
	t := usecase.Trend(trend)
	if t != usecase.TrendBullish && t != usecase.TrendBearish {
		return "", errInvalidTrend
	}
	f.trend = t
	return t, nil
}

func (f *fakeInstrument) Trend() usecase.Trend { return f.trend }

var errInvalidTrend = errors.New("invalid trend value: sideways, must be 'bearish' or 'bullish'")

type fakeAlertRelay struct {
	texts []string
	kind  domain.SignalKind
	match bool
}

func (f *fakeAlertRelay) ProcessText(ctx context.Context, text string, source domain.Source) (domain.SignalKind, bool) {
	f.texts = append(f.texts, text)
	return f.kind, f.match
}

type fakeStore struct {
	open map[domain.Slot]bool
}

func (f *fakeStore) HasOpen(ctx context.Context, slot domain.Slot) bool { return f.open[slot] }
func (f *fakeStore) Get(ctx context.Context, slot domain.Slot) (*domain.PositionRecord, error) {
	return nil, nil
}
func (f *fakeStore) Save(ctx context.Context, slot domain.Slot, rec *domain.PositionRecord) error {
	return nil
}
func (f *fakeStore) Clear(ctx context.Context, slot domain.Slot) error { return nil }

type fixture struct {
	server *Server
	gold   *fakeInstrument
	nq     *fakeInstrument
	relay  *fakeAlertRelay
	store  *fakeStore
}

func newFixture() *fixture {
	gold := &fakeInstrument{}
	nq := &fakeInstrument{}
	relay := &fakeAlertRelay{}
	store := &fakeStore{open: make(map[domain.Slot]bool)}
	return &fixture{
		server: NewServer(0, gold, nq, relay, store, zap.NewNop()),
		gold:   gold,
		nq:     nq,
		relay:  relay,
		store:  store,
	}
}

func (f *fixture) post(t *testing.T, path, body string) statusEnvelope {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var env statusEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestGoldEntryRequiresAction(t *testing.T) {
	f := newFixture()
	env := f.post(t, "/gold", `{}`)
	require.Equal(t, "error", env.Status)
	require.Equal(t, "Action is required", env.Message)
	require.Empty(t, f.gold.calls)
}

func TestGoldEntryRequiresPrice(t *testing.T) {
	f := newFixture()
	env := f.post(t, "/gold", `{"action":"bullish_entry"}`)
	require.Equal(t, "error", env.Status)
	require.Equal(t, "Price is required for bullish_entry action", env.Message)
}

func TestGoldEntryRejectsBadPrice(t *testing.T) {
	f := newFixture()
	env := f.post(t, "/gold", `{"action":"bullish_entry","price":"not-a-number"}`)
	require.Equal(t, "error", env.Status)
	require.Contains(t, env.Message, "Invalid price value")
}

func TestGoldBullishEntrySucceeds(t *testing.T) {
	f := newFixture()
	env := f.post(t, "/gold", `{"action":"bullish_entry","price":"2045.30","target_50":"2052.00"}`)
	require.Equal(t, "success", env.Status)
	require.Equal(t, "Gold bullish entry processed successfully", env.Message)

	require.Len(t, f.gold.calls, 1)
	call := f.gold.calls[0]
	require.Equal(t, "bullish", call.method)
	require.Equal(t, "2045.30", call.price)
	require.Equal(t, "2052.00", call.target50)
	require.Empty(t, f.nq.calls)
}

func TestNQBearishEntryRoutesToNQEngine(t *testing.T) {
	f := newFixture()
	env := f.post(t, "/nq", `{"action":"bearish_entry","price":"18100.25"}`)
	require.Equal(t, "success", env.Status)
	require.Equal(t, "NQ bearish entry processed successfully", env.Message)

	require.Len(t, f.nq.calls, 1)
	require.Equal(t, "bearish", f.nq.calls[0].method)
	require.Empty(t, f.gold.calls)
}

func TestGoldEntryReportsTrendRejection(t *testing.T) {
	f := newFixture()
	f.gold.rejectDir = "bullish"

	env := f.post(t, "/gold", `{"action":"bullish_entry","price":"2045.30"}`)
	require.Equal(t, "success", env.Status)
	require.Equal(t, "Gold bullish entry skipped due to trend mismatch", env.Message)
}

func TestGoldHalfTargetPassesQuantity(t *testing.T) {
	f := newFixture()
	env := f.post(t, "/gold", `{"action":"target_50","quantity":2}`)
	require.Equal(t, "success", env.Status)
	require.Equal(t, "Gold 50% target processed successfully", env.Message)

	require.Len(t, f.gold.calls, 1)
	require.Equal(t, "half_target", f.gold.calls[0].method)
	require.Equal(t, 2, f.gold.calls[0].quantity)
}

func TestGoldExit(t *testing.T) {
	f := newFixture()
	env := f.post(t, "/gold", `{"action":"exit"}`)
	require.Equal(t, "success", env.Status)
	require.Equal(t, "Gold exit processed successfully", env.Message)
	require.Equal(t, "exit", f.gold.calls[0].method)
}

func TestGoldUnknownAction(t *testing.T) {
	f := newFixture()
	env := f.post(t, "/gold", `{"action":"hedge"}`)
	require.Equal(t, "error", env.Status)
	require.Contains(t, env.Message, "Unknown action: hedge")
}

func TestGoldTrendSetAndRejected(t *testing.T) {
	f := newFixture()

	env := f.post(t, "/gold-trend", `{"trend":"bearish"}`)
	require.Equal(t, "success", env.Status)
	require.Equal(t, "Gold trend set to bearish", env.Message)
	require.Equal(t, "bearish", env.Trend)
	require.Equal(t, usecase.TrendBearish, f.gold.trend)

	env = f.post(t, "/gold-trend", `{"trend":"sideways"}`)
	require.Equal(t, "error", env.Status)
	require.Contains(t, env.Message, "invalid trend value")

	env = f.post(t, "/gold-trend", `{}`)
	require.Equal(t, "error", env.Status)
	require.Equal(t, "Trend is required", env.Message)
}

func TestFBDRequiresEmbeds(t *testing.T) {
	f := newFixture()

	env := f.post(t, "/fbd", `{}`)
	require.Equal(t, "error", env.Status)
	require.Equal(t, "No embeds found in payload", env.Message)

	env = f.post(t, "/fbd", `{"embeds":[{}]}`)
	require.Equal(t, "error", env.Status)
	require.Equal(t, "No description found in embed", env.Message)
}

func TestFBDForwardsDescription(t *testing.T) {
	f := newFixture()
	f.relay.kind = domain.KindTargetHit
	f.relay.match = true

	env := f.post(t, "/fbd", `{"embeds":[{"description":"Target 1: **5860.50**"}]}`)
	require.Equal(t, "success", env.Status)
	require.Equal(t, "Target 1 Hit message processed successfully", env.Message)
	require.Equal(t, []string{"Target 1: **5860.50**"}, f.relay.texts)
}

func TestFBDNoPatternMatched(t *testing.T) {
	f := newFixture()

	env := f.post(t, "/fbd", `{"embeds":[{"description":"just chatting"}]}`)
	require.Equal(t, "info", env.Status)
	require.Equal(t, "No Long Triggered, Target 1, Target 2, or Stop Loss pattern matched", env.Message)
}

func TestStatusReportsSlotsAndTrend(t *testing.T) {
	f := newFixture()
	f.store.open[domain.SlotPrimary] = true
	f.gold.trend = usecase.TrendBullish

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Slots map[string]struct {
			Open bool `json:"open"`
		} `json:"slots"`
		GoldTrend string `json:"gold_trend"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Slots["primary"].Open)
	require.False(t, resp.Slots["gold"].Open)
	require.False(t, resp.Slots["nq"].Open)
	require.Equal(t, "bullish", resp.GoldTrend)
}

func TestWrongMethodIsRejected(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodGet, "/gold", nil)
	rr := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
