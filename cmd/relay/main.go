package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/trade_alert_relay/internal/domain"
	"github.com/vitos/trade_alert_relay/internal/infrastructure/discord"
	"github.com/vitos/trade_alert_relay/internal/infrastructure/dispatch"
	"github.com/vitos/trade_alert_relay/internal/infrastructure/logger"
	"github.com/vitos/trade_alert_relay/internal/infrastructure/storage"
	"github.com/vitos/trade_alert_relay/internal/usecase"
	"github.com/vitos/trade_alert_relay/internal/web"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	State struct {
		Dir           string `yaml:"dir"`
		ExpiryMinutes int    `yaml:"expiry_minutes"`
		JournalPath   string `yaml:"journal_path"`
	} `yaml:"state"`
	Dedup struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"dedup"`
	Dispatch struct {
		Attempts  int    `yaml:"attempts"`
		BackoffMs int    `yaml:"backoff_ms"`
		NtfyURL   string `yaml:"ntfy_url"`
	} `yaml:"dispatch"`
	Discord struct {
		Token      string `yaml:"token"`
		Token2     string `yaml:"token_2"`
		ChannelID  string `yaml:"channel_id"`
		ChannelID2 string `yaml:"channel_id_2"`
		PollMs     int    `yaml:"poll_ms"`
		Gateway    bool   `yaml:"gateway"`
	} `yaml:"discord"`
	Primary struct {
		Ticker      string   `yaml:"ticker"`
		Quantity    int      `yaml:"quantity"`
		MinScore    int      `yaml:"min_score"`
		WebhookURLs []string `yaml:"webhook_urls"`
	} `yaml:"primary"`
	Gold struct {
		Ticker      string   `yaml:"ticker"`
		Quantity    int      `yaml:"quantity"`
		WebhookURLs []string `yaml:"webhook_urls"`
		TrendGate   bool     `yaml:"trend_gate"`
	} `yaml:"gold"`
	NQ struct {
		Ticker      string   `yaml:"ticker"`
		Quantity    int      `yaml:"quantity"`
		WebhookURLs []string `yaml:"webhook_urls"`
	} `yaml:"nq"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. Load Config
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	expiry := time.Duration(cfg.State.ExpiryMinutes) * time.Minute
	if expiry <= 0 {
		expiry = time.Hour
	}
	stateDir := cfg.State.Dir
	if stateDir == "" {
		stateDir = "state"
	}
	store, err := storage.NewFileStore(stateDir, expiry, log)
	if err != nil {
		log.Fatal("Failed to init position store", zap.Error(err))
	}

	journalPath := cfg.State.JournalPath
	if journalPath == "" {
		journalPath = "relay.db"
	}
	journal, err := storage.NewSQLiteJournal(journalPath)
	if err != nil {
		log.Fatal("Failed to init journal", zap.Error(err))
	}
	defer journal.Close()

	// 4. Init Dispatch
	policy := dispatch.RetryPolicy{
		Attempts: cfg.Dispatch.Attempts,
		Backoff:  time.Duration(cfg.Dispatch.BackoffMs) * time.Millisecond,
	}
	notifier := dispatch.NewNtfyNotifier(cfg.Dispatch.NtfyURL, log)
	dispatcher := dispatch.NewWebhookDispatcher(policy, cfg.Primary.Quantity, notifier, journal, log)

	// 5. Init Pipeline
	messageLedger := usecase.NewMemoryLedger(cfg.Dedup.Capacity)
	fingerprintLedger := usecase.NewMemoryLedger(cfg.Dedup.Capacity)
	extractor := usecase.NewExtractor()

	primary := usecase.NewPrimaryEngine(usecase.PrimaryConfig{
		Ticker:      cfg.Primary.Ticker,
		Quantity:    cfg.Primary.Quantity,
		MinScore:    cfg.Primary.MinScore,
		WebhookURLs: cfg.Primary.WebhookURLs,
	}, store, dispatcher, fingerprintLedger, log)

	gold := usecase.NewInstrumentEngine(usecase.InstrumentConfig{
		Name:        "gold",
		Slot:        domain.SlotGold,
		Ticker:      cfg.Gold.Ticker,
		Quantity:    cfg.Gold.Quantity,
		Source:      domain.SourceGoldWebhook,
		WebhookURLs: cfg.Gold.WebhookURLs,
		TrendGate:   cfg.Gold.TrendGate,
	}, store, dispatcher, log)

	nq := usecase.NewInstrumentEngine(usecase.InstrumentConfig{
		Name:        "nq",
		Slot:        domain.SlotNQ,
		Ticker:      cfg.NQ.Ticker,
		Quantity:    cfg.NQ.Quantity,
		Source:      domain.SourceNQWebhook,
		WebhookURLs: cfg.NQ.WebhookURLs,
	}, store, dispatcher, log)

	relay := usecase.NewRelayService(extractor, messageLedger, primary, journal, log)

	// 6. Init Web Server
	server := web.NewServer(cfg.Server.Port, gold, nq, relay, store, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Web server failed", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 7. Upstream read: gateway push or REST polling
	if cfg.Discord.Gateway {
		sources := map[string]domain.Source{
			cfg.Discord.ChannelID:  domain.SourceDiscordMessage,
			cfg.Discord.ChannelID2: domain.SourceSecondChannel,
		}
		gateway := discord.NewGateway(cfg.Discord.Token, []string{cfg.Discord.ChannelID, cfg.Discord.ChannelID2}, log)
		gateway.OnMessage(func(channelID string, msg domain.Message) {
			source, ok := sources[channelID]
			if !ok {
				return
			}
			relay.ProcessMessage(ctx, msg, source)
		})
		go gateway.Run(ctx)
	} else {
		primaryClient := discord.NewClient(cfg.Discord.Token, log)
		secondClient := discord.NewClient(cfg.Discord.Token2, log)
		go pollLoop(ctx, cfg, primaryClient, secondClient, relay, log)
	}

	// 8. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
}

// pollLoop fetches the latest message(s) from both channels on a fixed
// interval and feeds them through the relay pipeline. The message-id
// ledger keeps refetched messages from being processed twice.
func pollLoop(ctx context.Context, cfg *Config, primarySource, secondSource domain.MessageSource, relay *usecase.RelayService, log *zap.Logger) {
	interval := time.Duration(cfg.Discord.PollMs) * time.Millisecond
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if cfg.Discord.ChannelID != "" {
			msg, err := primarySource.FetchLatest(ctx, cfg.Discord.ChannelID)
			if err != nil {
				log.Error("Error fetching message", zap.String("channel", cfg.Discord.ChannelID), zap.Error(err))
			} else if msg != nil {
				relay.ProcessMessage(ctx, *msg, domain.SourceDiscordMessage)
			}
		}

		if cfg.Discord.ChannelID2 != "" {
			msgs, err := secondSource.FetchRecent(ctx, cfg.Discord.ChannelID2, 2)
			if err != nil {
				log.Error("Error fetching messages from second channel", zap.Error(err))
			} else {
				// API serves newest first; process oldest first.
				for i := len(msgs) - 1; i >= 0; i-- {
					relay.ProcessMessage(ctx, msgs[i], domain.SourceSecondChannel)
				}
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
