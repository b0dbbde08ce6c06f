package usecase

import (
	"context"
	"time"

	"github.com/vitos/trade_alert_relay/internal/domain"
	"go.uber.org/zap"
)

// RelayService is the single pipeline both entry points feed: raw text
// in, extracted signal through the dedup ledger, lifecycle transition
// out. The poll loop hands it whole messages; the alert-relay endpoint
// hands it bare embed text.
type RelayService struct {
	extractor *Extractor
	messages  domain.Ledger // upstream message ids
	primary   *PrimaryEngine
	journal   domain.Journal
	logger    *zap.Logger
}

func NewRelayService(extractor *Extractor, messages domain.Ledger, primary *PrimaryEngine, journal domain.Journal, logger *zap.Logger) *RelayService {
	return &RelayService{
		extractor: extractor,
		messages:  messages,
		primary:   primary,
		journal:   journal,
		logger:    logger,
	}
}

// ProcessMessage runs one upstream message through the pipeline. The
// message id gates reprocessing; the id is marked whether or not
// anything matched, so a message is only ever examined once.
func (s *RelayService) ProcessMessage(ctx context.Context, msg domain.Message, source domain.Source) {
	if msg.ID != "" && s.messages.Seen(msg.ID) {
		return
	}

	sig, ok := s.extractor.Extract(msg)
	if ok {
		s.logger.Info("Signal extracted",
			zap.String("kind", string(sig.Kind())),
			zap.String("message_id", msg.ID),
			zap.String("source", string(source)))
		s.handle(ctx, sig, source)
	}

	if msg.ID != "" {
		s.messages.Mark(msg.ID)
	}
}

// ProcessText runs bare alert text (no carrying message, no broadcast
// flag) through the pipeline and reports which shape matched.
func (s *RelayService) ProcessText(ctx context.Context, text string, source domain.Source) (domain.SignalKind, bool) {
	sig, ok := s.extractor.ExtractText(text)
	if !ok {
		return "", false
	}
	s.logger.Info("Signal extracted",
		zap.String("kind", string(sig.Kind())),
		zap.String("source", string(source)))
	s.handle(ctx, sig, source)
	return sig.Kind(), true
}

func (s *RelayService) handle(ctx context.Context, sig domain.Signal, source domain.Source) {
	if es, ok := sig.(domain.ESOrderSignal); ok {
		s.recordESOrder(ctx, es)
		return
	}
	s.primary.HandleSignal(ctx, sig, source)
}

// recordESOrder journals the manual ES order marker. No downstream
// instruction is derived from it.
func (s *RelayService) recordESOrder(ctx context.Context, sig domain.ESOrderSignal) {
	s.logger.Info("ES order marker received",
		zap.String("direction", sig.Direction),
		zap.Int("level", sig.Level),
		zap.String("category", sig.Category),
		zap.Int("stop", sig.Stop))
	if s.journal == nil {
		return
	}
	action := domain.ActionBuy
	if sig.Direction == "short" {
		action = domain.ActionSell
	}
	rec := &domain.DispatchRecord{
		Ticker:    "ES",
		Action:    action,
		Quantity:  0,
		Label:     "ES order marker " + sig.Category,
		Status:    "recorded",
		CreatedAt: time.Now(),
	}
	if err := s.journal.Record(ctx, rec); err != nil {
		s.logger.Error("Failed to journal ES order marker", zap.Error(err))
	}
}
