package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vitos/trade_alert_relay/internal/domain"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), time.Hour, zap.NewNop())
	require.NoError(t, err)
	return store
}

func sampleRecord() *domain.PositionRecord {
	return &domain.PositionRecord{
		Action:    domain.ActionBuy,
		Direction: "long",
		Ticker:    "MES",
		Interval:  5,
		Level:     decimal.RequireFromString("5850.25"),
		Score:     "7/10",
		Price:     decimal.RequireFromString("5851.50"),
		Time:      "2024-03-14 09:31:00",
		Source:    domain.SourceSecondChannel,
		Quantities: domain.Quantities{
			Personal: 14,
			Webhook:  15,
		},
	}
}

func TestSaveGetClearRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.False(t, store.HasOpen(ctx, domain.SlotPrimary))
	rec, err := store.Get(ctx, domain.SlotPrimary)
	require.NoError(t, err)
	require.Nil(t, rec)

	require.NoError(t, store.Save(ctx, domain.SlotPrimary, sampleRecord()))
	require.True(t, store.HasOpen(ctx, domain.SlotPrimary))

	rec, err = store.Get(ctx, domain.SlotPrimary)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "MES", rec.Ticker)
	require.Equal(t, "7/10", rec.Score)
	require.Equal(t, 15, rec.Quantities.Webhook)
	require.True(t, rec.Price.Equal(decimal.RequireFromString("5851.50")))
	require.Equal(t, domain.SourceSecondChannel, rec.Source)

	require.NoError(t, store.Clear(ctx, domain.SlotPrimary))
	require.False(t, store.HasOpen(ctx, domain.SlotPrimary))
}

func TestSlotsAreIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.SlotGold, sampleRecord()))

	require.True(t, store.HasOpen(ctx, domain.SlotGold))
	require.False(t, store.HasOpen(ctx, domain.SlotPrimary))
	require.False(t, store.HasOpen(ctx, domain.SlotNQ))

	require.NoError(t, store.Clear(ctx, domain.SlotGold))
	require.False(t, store.HasOpen(ctx, domain.SlotGold))
}

func TestExpiredRecordIsReapedOnAccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.SlotPrimary, sampleRecord()))

	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.False(t, store.HasOpen(ctx, domain.SlotPrimary))

	// The file itself is gone, not just hidden.
	_, err := os.Stat(filepath.Join(store.dir, slotFiles[domain.SlotPrimary]))
	require.True(t, os.IsNotExist(err))
}

func TestCorruptFileTreatedAsEmpty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	path := filepath.Join(store.dir, slotFiles[domain.SlotPrimary])
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	require.False(t, store.HasOpen(ctx, domain.SlotPrimary))
	rec, err := store.Get(ctx, domain.SlotPrimary)
	require.NoError(t, err)
	require.Nil(t, rec)

	// And the slot is writable again.
	require.NoError(t, store.Save(ctx, domain.SlotPrimary, sampleRecord()))
	require.True(t, store.HasOpen(ctx, domain.SlotPrimary))
}

func TestClearEmptySlotIsNoError(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Clear(context.Background(), domain.SlotNQ))
}

func TestStopPointerSurvivesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stop := decimal.RequireFromString("2038.30")
	rec := sampleRecord()
	rec.Stop = &stop
	rec.Target50 = "2052.00"
	require.NoError(t, store.Save(ctx, domain.SlotGold, rec))

	got, err := store.Get(ctx, domain.SlotGold)
	require.NoError(t, err)
	require.NotNil(t, got.Stop)
	require.True(t, got.Stop.Equal(stop))
	require.Equal(t, "2052.00", got.Target50)
}
