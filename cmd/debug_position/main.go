package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vitos/trade_alert_relay/internal/domain"
	"github.com/vitos/trade_alert_relay/internal/infrastructure/storage"
	"go.uber.org/zap"
)

func main() {
	stateDir := flag.String("state", "state", "state directory")
	clearSlot := flag.String("clear", "", "slot to clear (primary, gold, nq)")
	flag.Parse()

	store, err := storage.NewFileStore(*stateDir, time.Hour, zap.NewNop())
	if err != nil {
		fmt.Printf("Failed to init position store: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if *clearSlot != "" {
		slot := domain.Slot(*clearSlot)
		if err := store.Clear(ctx, slot); err != nil {
			fmt.Printf("Failed to clear slot %s: %v\n", slot, err)
			os.Exit(1)
		}
		fmt.Printf("Slot %s cleared\n", slot)
		return
	}

	for _, slot := range []domain.Slot{domain.SlotPrimary, domain.SlotGold, domain.SlotNQ} {
		rec, err := store.Get(ctx, slot)
		if err != nil {
			fmt.Printf("- %s: read error: %v\n", slot, err)
			continue
		}
		if rec == nil {
			fmt.Printf("- %s: empty\n", slot)
			continue
		}
		fmt.Printf("- %s: %s %s @ %s, webhook qty %d, source %s\n",
			slot, rec.Action, rec.Ticker, rec.Price, rec.Quantities.Webhook, rec.Source)
	}
}
