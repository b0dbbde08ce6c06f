package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vitos/trade_alert_relay/internal/domain"
	"github.com/vitos/trade_alert_relay/internal/infrastructure/dispatch"
	"github.com/vitos/trade_alert_relay/internal/infrastructure/logger"
)

// Fires a single test instruction at a webhook so a destination can be
// verified without waiting for a live alert.
func main() {
	url := flag.String("url", "", "destination webhook URL")
	ticker := flag.String("ticker", "MES", "instrument ticker")
	action := flag.String("action", "buy", "order action")
	quantity := flag.Int("quantity", 1, "order quantity")
	price := flag.String("price", "", "optional price")
	flag.Parse()

	if *url == "" {
		fmt.Println("Usage: check_dispatch -url <webhook-url> [-ticker MES] [-action buy] [-quantity 1]")
		os.Exit(1)
	}

	log, err := logger.NewLogger("debug")
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dispatcher := dispatch.NewWebhookDispatcher(dispatch.DefaultRetryPolicy(), *quantity, nil, nil, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	instr := &domain.OrderInstruction{
		Ticker:    *ticker,
		Action:    domain.Action(*action),
		Price:     *price,
		OrderType: domain.OrderTypeMarket,
		Quantity:  *quantity,
	}
	dispatcher.Deliver(ctx, instr, []string{*url}, "check_dispatch", false, nil)
}
